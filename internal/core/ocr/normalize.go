package ocr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// Whitespace and digits include full-width forms (U+3000, U+FF10..U+FF19),
// which Japanese judgments use for page numbers.
const ws = `[\s\p{Z}]`

// reBoilerplate matches a bare page number such as "- 12 -" or "42",
// or any line ending in whitespace. The second alternative is a loose
// heuristic and can drop real content that was emitted with trailing spaces.
var reBoilerplate = regexp.MustCompile(`^` + ws + `*-?` + ws + `*\p{Nd}+` + ws + `*-?` + ws + `*$|` + ws + `+$`)

// IsBoilerplate reports whether line is pagination noise.
func IsBoilerplate(line string) bool {
	return reBoilerplate.MatchString(line)
}

// FilterBoilerplate drops boilerplate lines and terminates every kept line with "\n".
func FilterBoilerplate(text string) string {
	var b strings.Builder
	for _, line := range splitLines(text) {
		if IsBoilerplate(line) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// JoinText reflows fragmented lines into paragraphs.
// Lines are trimmed and fused with no separator; a run of blank lines becomes
// a single "\n" before the next non-blank line, including the first one.
func JoinText(text string) string {
	var b strings.Builder
	pendingBreak := false
	for _, line := range splitLines(text) {
		t := strings.TrimSpace(line)
		if t == "" {
			pendingBreak = true
			continue
		}
		if pendingBreak {
			b.WriteByte('\n')
			pendingBreak = false
		}
		b.WriteString(t)
	}
	return b.String()
}

// JoinFiles trims each file, concatenates them in order without a separator,
// and reflows the result with JoinText. Unreadable files are skipped and reported.
func JoinFiles(paths []string) (string, []Diagnostic) {
	var b strings.Builder
	var diags []Diagnostic
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				diags = append(diags, missingDiagnostic(0, p))
			} else {
				diags = append(diags, Diagnostic{Code: common.CodeIO, Message: fmt.Sprintf("read %s: %v", p, err)})
			}
			continue
		}
		b.WriteString(strings.TrimSpace(string(data)))
	}
	return JoinText(b.String()), diags
}

// Join applies the joiner to a recognizer's raw output.
func Join(ex Extraction) Outcome {
	out := Outcome{
		Method:      ex.Method,
		Pages:       ex.PageCount,
		Diagnostics: append([]Diagnostic(nil), ex.Diagnostics...),
	}
	if ex.PageFiles != nil {
		text, diags := JoinFiles(ex.PageFiles)
		out.Text = text
		out.Diagnostics = append(out.Diagnostics, diags...)
		return out
	}
	out.Text = JoinText(ex.Raw)
	return out
}

// splitLines splits on "\n", strips a trailing "\r" from each line and does not
// yield an empty final element for text ending in a newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}
