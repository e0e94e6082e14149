package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/core/ocr"
	"github.com/joseph-ayodele/precedent2txt/internal/entity"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, source, dest string) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, source)
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return 4, os.WriteFile(dest, []byte("%PDF"), 0o644)
}

type fakeCounter struct {
	n   int
	err error
}

func (c fakeCounter) CountPages(context.Context, string) (int, error) { return c.n, c.err }

type fakeRecognizer struct {
	method     string
	needsCount bool
	ex         ocr.Extraction
	err        error
	gotJob     ocr.Job
	calls      int
}

func (r *fakeRecognizer) Method() string       { return r.method }
func (r *fakeRecognizer) NeedsPageCount() bool { return r.needsCount }
func (r *fakeRecognizer) Recognize(_ context.Context, job ocr.Job) (ocr.Extraction, error) {
	r.calls++
	r.gotJob = job
	return r.ex, r.err
}

type harness struct {
	tmp, out string
	fetcher  *fakeFetcher
	rec      *fakeRecognizer
	sink     *MemorySink
}

func newHarness(t *testing.T, rec *fakeRecognizer, counter ocr.PageCounter, opts Options) (*harness, *Processor) {
	t.Helper()
	h := &harness{tmp: t.TempDir(), out: t.TempDir(), fetcher: &fakeFetcher{}, rec: rec, sink: &MemorySink{}}
	opts.TmpDir, opts.OutputDir = h.tmp, h.out
	return h, NewProcessor(nil, h.fetcher, counter, rec, h.sink, opts)
}

func textLayer(raw string) *fakeRecognizer {
	return &fakeRecognizer{method: "text-layer", ex: ocr.Extraction{Method: "text-layer", Raw: raw, PageCount: 1}}
}

func record(name string) entity.CaseRecord {
	return entity.CaseRecord{Name: name, CaseNumber: "R1(ワ)1", SourceURL: "https://example.test/" + name + ".pdf"}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestProcessCase_TextLayerEndToEnd(t *testing.T) {
	h, p := newHarness(t, textLayer("Hello\nWorld\n\nFoo\nBar\n"), nil, Options{ReuseCache: true})

	res := p.ProcessCase(context.Background(), record("c1"))
	require.NoError(t, res.Err)
	assert.Equal(t, constants.CaseStatusDone, res.Status)
	assert.True(t, res.Downloaded)
	assert.Equal(t, "HelloWorld\nFooBar", readFile(t, filepath.Join(h.out, "c1.txt")))
	assert.Equal(t, filepath.Join(h.tmp, "c1"), h.rec.gotJob.Base)
	assert.Empty(t, res.SidecarPath)
	_, err := os.Stat(filepath.Join(h.tmp, "c1_err.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, []string{
		EventCaseNumber, EventWriteStart,
		EventState, EventFetchStart, EventFetchEnd,
		EventState, EventState, EventWriteEnd,
	}, h.sink.Types("c1"))
}

func TestProcessCase_TextCacheHitSkips(t *testing.T) {
	h, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: true})
	require.NoError(t, os.WriteFile(filepath.Join(h.out, "c1.txt"), []byte("done"), 0o644))

	rec := record("c1")
	rec.SourceURL = "" // the link is only needed when the case actually runs
	res := p.ProcessCase(context.Background(), rec)

	assert.Equal(t, constants.CaseStatusSkippedCached, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, h.fetcher.calls)
	assert.Zero(t, h.rec.calls)
	assert.Equal(t, "done", readFile(t, filepath.Join(h.out, "c1.txt")))
	assert.Contains(t, h.sink.Types("c1"), EventTextCacheHit)
}

func TestProcessCase_ForceRerun(t *testing.T) {
	h, p := newHarness(t, textLayer("fresh"), nil, Options{ReuseCache: true, ForceRerun: true})
	require.NoError(t, os.WriteFile(filepath.Join(h.out, "c1.txt"), []byte("old"), 0o644))

	res := p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusDone, res.Status)
	assert.Equal(t, "fresh", readFile(t, filepath.Join(h.out, "c1.txt")))
}

func TestProcessCase_PDFCache(t *testing.T) {
	t.Run("reuse hits cache", func(t *testing.T) {
		h, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: true})
		require.NoError(t, os.WriteFile(filepath.Join(h.tmp, "c1.pdf"), []byte("%PDF"), 0o644))

		res := p.ProcessCase(context.Background(), record("c1"))
		assert.Equal(t, constants.CaseStatusDone, res.Status)
		assert.False(t, res.Downloaded)
		assert.Empty(t, h.fetcher.calls)
		assert.Contains(t, h.sink.Types("c1"), EventPDFCacheHit)
	})
	t.Run("no reuse always fetches", func(t *testing.T) {
		h, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: false})
		require.NoError(t, os.WriteFile(filepath.Join(h.tmp, "c1.pdf"), []byte("%PDF"), 0o644))

		res := p.ProcessCase(context.Background(), record("c1"))
		assert.True(t, res.Downloaded)
		assert.Len(t, h.fetcher.calls, 1)
	})
}

func TestProcessCase_SchemaFailures(t *testing.T) {
	_, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: true})

	rec := record("c1")
	rec.CaseNumber = ""
	res := p.ProcessCase(context.Background(), rec)
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, common.ErrSchema))

	rec = record("c2")
	rec.SourceURL = ""
	res = p.ProcessCase(context.Background(), rec)
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, common.ErrSchema))
	assert.Contains(t, res.Err.Error(), "full_pdf_link")

	rec = record("c3")
	rec.Err = common.SchemaError("bad record")
	res = p.ProcessCase(context.Background(), rec)
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
}

func TestProcessCase_RejectsEscapingNames(t *testing.T) {
	for _, name := range []string{"", "..", "../evil", "a/b", `a\b`, "/abs"} {
		t.Run(name, func(t *testing.T) {
			h, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: true})

			res := p.ProcessCase(context.Background(), record(name))
			assert.Equal(t, constants.CaseStatusFailed, res.Status)
			assert.True(t, errors.Is(res.Err, common.ErrSchema))
			assert.Empty(t, h.fetcher.calls)
			assert.Zero(t, h.rec.calls)
			assert.Empty(t, res.OutputPath)
		})
	}
}

func TestProcessCase_FetchFailure(t *testing.T) {
	h, p := newHarness(t, textLayer("x"), nil, Options{ReuseCache: true})
	h.fetcher.err = common.NetworkError("GET x", errors.New("connection refused"))

	res := p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, common.ErrNetwork))
	assert.Zero(t, h.rec.calls)
	_, err := os.Stat(filepath.Join(h.out, "c1.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, h.sink.Types("c1"), EventFailed)
}

func TestProcessCase_OCRNeedsPageCount(t *testing.T) {
	rec := &fakeRecognizer{method: "ocr", needsCount: true}
	_, p := newHarness(t, rec, fakeCounter{n: 3}, Options{ReuseCache: true})

	res := p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusDone, res.Status)
	assert.Equal(t, 3, rec.gotJob.Pages)
	assert.Equal(t, "ocr", res.Method)
}

func TestProcessCase_PageCountFailureIsFatal(t *testing.T) {
	rec := &fakeRecognizer{method: "ocr", needsCount: true}
	h, p := newHarness(t, rec, fakeCounter{err: common.ParseError("page count not found", nil)}, Options{ReuseCache: true})

	res := p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, common.ErrParse))
	assert.Zero(t, rec.calls)
	assert.NotContains(t, h.sink.Types("c1"), EventWriteEnd)
}

func TestProcessCase_DiagnosticsGoToSidecar(t *testing.T) {
	rec := textLayer("")
	rec.ex.Diagnostics = []ocr.Diagnostic{
		{Code: common.CodeToolInvocation, Message: "pdftotext: exit status 1: Syntax Error\n"},
		{Code: common.CodeMissingArtifact, Message: "'tmp/c1.txt': No such file or directory"},
	}
	h, p := newHarness(t, rec, nil, Options{ReuseCache: true})

	res := p.ProcessCase(context.Background(), record("c1"))
	require.NoError(t, res.Err)
	assert.Equal(t, constants.CaseStatusDone, res.Status)
	sidecar := filepath.Join(h.tmp, "c1_err.txt")
	assert.Equal(t, sidecar, res.SidecarPath)
	assert.Equal(t, "pdftotext: exit status 1: Syntax Error\n'tmp/c1.txt': No such file or directory\n", readFile(t, sidecar))
	assert.Equal(t, "", readFile(t, filepath.Join(h.out, "c1.txt")))

	// a clean rerun clears the stale sidecar
	rec.ex.Diagnostics = nil
	rec.ex.Raw = "ok"
	p.opts.ForceRerun = true
	res = p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusDone, res.Status)
	_, err := os.Stat(sidecar)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessCase_RecognizerErrorFailsCase(t *testing.T) {
	rec := textLayer("")
	rec.err = context.DeadlineExceeded
	_, p := newHarness(t, rec, nil, Options{ReuseCache: true})

	res := p.ProcessCase(context.Background(), record("c1"))
	assert.Equal(t, constants.CaseStatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestTruncateLine(t *testing.T) {
	assert.Equal(t, "first ...", truncateLine("first\nsecond"))

	got := truncateLine(strings.Repeat("判", 200))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("判", 170)+"...(truncated)", got)
}
