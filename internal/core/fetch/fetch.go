package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/utils"
)

const errorBodyLimit = 64 << 10

// Fetcher downloads one document per call. There are no retries.
type Fetcher struct {
	logger          *slog.Logger
	client          *http.Client
	userAgent       string
	acceptAnyStatus bool

	gcsOnce sync.Once
	gcs     *storage.Client
	gcsErr  error
}

type Option func(*Fetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithAcceptAnyStatus writes the body even for non-2xx responses.
func WithAcceptAnyStatus(accept bool) Option {
	return func(f *Fetcher) { f.acceptAnyStatus = accept }
}

func New(logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		logger:    logger,
		client:    &http.Client{Timeout: 2 * time.Minute},
		userAgent: "precedent2txt",
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch copies source to dest and returns the number of bytes written.
// Supported sources: http(s)://, gs://bucket/object, file:// and plain local paths.
func (f *Fetcher) Fetch(ctx context.Context, source, dest string) (int64, error) {
	u, err := url.Parse(source)
	if err != nil {
		return 0, common.NetworkError(fmt.Sprintf("parse source %q", source), err)
	}
	start := time.Now()
	var n int64
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		n, err = f.fetchHTTP(ctx, source, dest)
	case "gs":
		n, err = f.fetchGCS(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), dest)
	case "file":
		n, err = f.copyLocal(u.Path, dest)
	case "":
		n, err = f.copyLocal(source, dest)
	default:
		return 0, common.NetworkError(fmt.Sprintf("unsupported source scheme %q", u.Scheme), nil)
	}
	if err != nil {
		f.logger.Error("fetch.failed", "source", source, "error", err)
		return n, err
	}
	f.logger.Debug("fetch.ok", "source", source, "dest", dest, "bytes", n, "duration_ms", time.Since(start).Milliseconds())
	return n, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, common.NetworkError("build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, common.NetworkError(fmt.Sprintf("GET %s", source), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if !f.acceptAnyStatus {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			msg := fmt.Sprintf("GET %s: %s", source, resp.Status)
			if strings.Contains(resp.Header.Get("Content-Type"), "html") {
				if title := htmlTitle(body); title != "" {
					msg += fmt.Sprintf(" (%s)", title)
				}
			}
			return 0, common.NetworkError(msg, nil)
		}
		f.logger.Warn("fetch.status ignored", "source", source, "status", resp.StatusCode)
	}
	return writeFrom(dest, resp.Body)
}

func (f *Fetcher) fetchGCS(ctx context.Context, bucket, object, dest string) (int64, error) {
	if bucket == "" || object == "" {
		return 0, common.NetworkError(fmt.Sprintf("invalid gs source gs://%s/%s", bucket, object), nil)
	}
	f.gcsOnce.Do(func() {
		// The client outlives the case that created it.
		f.gcs, f.gcsErr = storage.NewClient(context.WithoutCancel(ctx))
	})
	if f.gcsErr != nil {
		return 0, common.NetworkError("create storage client", f.gcsErr)
	}
	r, err := f.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, common.NetworkError(fmt.Sprintf("open gs://%s/%s", bucket, object), err)
	}
	defer func() { _ = r.Close() }()
	return writeFrom(dest, r)
}

// Close releases the storage client created by the first gs:// fetch, if any.
func (f *Fetcher) Close() error {
	if f.gcs == nil {
		return nil
	}
	return f.gcs.Close()
}

func (f *Fetcher) copyLocal(path, dest string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, common.NetworkError(fmt.Sprintf("open %s", path), err)
	}
	defer func() { _ = src.Close() }()
	return writeFrom(dest, src)
}

// readErrRecorder remembers read failures so they can be told apart from disk failures.
type readErrRecorder struct {
	r   io.Reader
	err error
}

func (e *readErrRecorder) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		e.err = err
	}
	return n, err
}

func writeFrom(dest string, r io.Reader) (int64, error) {
	rec := &readErrRecorder{r: r}
	n, err := utils.WriteFileAtomic(dest, rec, 0o644)
	if err != nil {
		if rec.err != nil {
			return n, common.NetworkError("read body", rec.err)
		}
		return n, common.IOError(fmt.Sprintf("write %s", dest), err)
	}
	return n, nil
}

// htmlTitle returns the trimmed text of the first <title> element, if any.
func htmlTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var walk func(n *html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.TrimSpace(b.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := walk(c); t != "" {
				return t
			}
		}
		return ""
	}
	return walk(doc)
}
