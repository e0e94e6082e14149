package constants

import (
	"strings"
)

// Mode selects the recognition strategy used to turn a PDF into raw text.
type Mode string

const (
	ModeTextLayer Mode = "text-layer"
	ModeOCR       Mode = "ocr"
)

var allModes = []Mode{
	ModeTextLayer,
	ModeOCR,
}

func ModesAsStringSlice() []string {
	result := make([]string, len(allModes))
	for i, m := range allModes {
		result[i] = string(m)
	}
	return result
}

// ParseMode maps user input (including legacy names) onto a Mode.
func ParseMode(input string) (Mode, bool) {
	if input == "" {
		return ModeTextLayer, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Mode{
		"p2t":       ModeTextLayer,
		"pdftotext": ModeTextLayer,
		"text":      ModeTextLayer,
		"textlayer": ModeTextLayer,
		"tesseract": ModeOCR,
	}

	if m, ok := synonyms[normalized]; ok {
		return m, true
	}

	for _, m := range allModes {
		if normalized == string(m) {
			return m, true
		}
	}

	return ModeTextLayer, false
}
