package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	for _, ok := range []string{"a_case", "H30(行ヒ)100_2019_4_9", "..x", "a..b"} {
		assert.Nil(t, FileName("name", ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "../x", "a/b", "/abs", `a\b`, "a\x00b"} {
		assert.NotNil(t, FileName("name", bad), bad)
	}
	assert.NotNil(t, FileName("name", 3))

	v := NewValidator().Field("name", "../x", FileName)
	assert.Contains(t, v.ErrorMessage(), "path separators")
}
