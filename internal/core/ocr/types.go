package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// Diagnostic is one non-fatal problem recorded while extracting a case.
type Diagnostic struct {
	Code    string // common.CodeToolInvocation | common.CodeMissingArtifact
	Page    int    // 0 when not tied to a page
	Tool    string
	Message string
}

func (d Diagnostic) String() string {
	if d.Page > 0 {
		return fmt.Sprintf("page %d: %s", d.Page, d.Message)
	}
	return d.Message
}

// toolDiagnostic turns a failed or noisy invocation into a diagnostic.
// It returns false when the tool exited cleanly with an empty stderr.
func toolDiagnostic(tool string, page int, stderr []byte, err error) (Diagnostic, bool) {
	msg := string(stderr)
	switch {
	case err != nil && msg != "":
		msg = fmt.Sprintf("%s: %v: %s", tool, err, msg)
	case err != nil:
		msg = fmt.Sprintf("%s: %v", tool, err)
	case msg == "":
		return Diagnostic{}, false
	}
	d := errDiagnostic(page, common.ToolInvocationError(msg, nil))
	d.Tool = tool
	return d, true
}

func missingDiagnostic(page int, path string) Diagnostic {
	return Diagnostic{Code: common.CodeMissingArtifact, Page: page, Message: common.MissingArtifactError(path).Message}
}

func errDiagnostic(page int, err error) Diagnostic {
	msg := err.Error()
	var ae *common.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return Diagnostic{Code: common.CodeOf(err), Page: page, Message: msg}
}

// PageArtifact tracks the files belonging to one page of an OCR run.
// The crop happens in place, so RasterPath and CroppedPath name the same file.
type PageArtifact struct {
	Index       int
	RasterPath  string
	CroppedPath string
	TextPath    string
}

// Job is what a Recognizer needs to know about the case it works on.
type Job struct {
	PDFPath string // {tmp}/{name}.pdf
	Base    string // {tmp}/{name}, the stem for every intermediate file
	Pages   int    // set by the caller when NeedsPageCount is true
}

// Extraction is raw recognizer output, before joining.
// Exactly one of Raw or PageFiles is used.
type Extraction struct {
	Method      string
	Raw         string
	PageFiles   []string
	Pages       []PageArtifact
	PageCount   int
	Diagnostics []Diagnostic
}

// Outcome is the joined text plus every diagnostic collected for the case.
type Outcome struct {
	Method      string
	Text        string
	Pages       int
	Diagnostics []Diagnostic
}

// Recognizer turns a cached PDF into raw text.
type Recognizer interface {
	Method() string
	NeedsPageCount() bool
	Recognize(ctx context.Context, job Job) (Extraction, error)
}
