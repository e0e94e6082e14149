package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

const pdfinfoReport = `Title:          判決
Producer:       Acrobat Distiller
Pages:          12
Encrypted:      no
Page size:      595 x 842 pts (A4)
`

func TestParsePageCount(t *testing.T) {
	n, err := ParsePageCount([]byte(pdfinfoReport))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = ParsePageCount([]byte("Pages:3"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestParsePageCount_Errors(t *testing.T) {
	for _, report := range []string{"", "Title: x\n", "Pages: none", "Pages: 99999999999999999999"} {
		_, err := ParsePageCount([]byte(report))
		assert.True(t, errors.Is(err, common.ErrParse), "report %q: %v", report, err)
	}
}

func TestPdfinfoCounter(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return []byte(pdfinfoReport), nil, nil
	}}
	c := NewPdfinfoCounter("pdfinfo", r, nil)

	n, err := c.CountPages(context.Background(), "tmp/case.pdf")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, []string{"pdfinfo tmp/case.pdf"}, r.commandLines())
}

func TestPdfinfoCounter_ToolFailureIsParseError(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Syntax Error: Couldn't find trailer dictionary"), errors.New("exit status 1")
	}}
	_, err := NewPdfinfoCounter("", r, nil).CountPages(context.Background(), "broken.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrParse))
	assert.True(t, common.IsFatal(err))
}

func TestNewPageCounter(t *testing.T) {
	assert.IsType(t, PdfcpuCounter{}, NewPageCounter("pdfcpu", "", nil, nil))
	assert.IsType(t, &PdfinfoCounter{}, NewPageCounter("pdfinfo", "", nil, nil))
}

func TestPdfcpuCounter_MissingFile(t *testing.T) {
	_, err := PdfcpuCounter{}.CountPages(context.Background(), "does-not-exist.pdf")
	assert.True(t, errors.Is(err, common.ErrParse))
}
