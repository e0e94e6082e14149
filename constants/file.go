package constants

import (
	"fmt"
	"strings"
)

// Artifact naming inside the temp and output directories.
const (
	PDFExt      = ".pdf"
	TextExt     = ".txt"
	ImageExt    = ".jpg"
	ErrorSuffix = "_err.txt"
)

// AllowedExtensions holds the extensions accepted by the standalone page counter.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// PageBase returns "{base}-{page}", the stem shared by a page's image and text.
func PageBase(base string, page int) string {
	return fmt.Sprintf("%s-%d", base, page)
}
