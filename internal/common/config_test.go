package common

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/precedent2txt/constants"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PRECEDENT_TMP", "PRECEDENT_MODE", "LEDGER_DSN", "BATCH_WORKERS", "OCR_LANG", "CROP_GEOMETRY", "TOOL_TIMEOUT", "DO_NOT_USE_CACHE"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()

	assert.Equal(t, "tmp", cfg.Batch.TmpDir)
	assert.Equal(t, constants.ModeTextLayer, cfg.Batch.Mode)
	assert.True(t, cfg.Batch.ReuseCache)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, DefaultLang, cfg.OCR.Lang)
	assert.Equal(t, DefaultCropGeometry, cfg.OCR.CropGeometry)
	assert.Equal(t, 10*time.Minute, cfg.Tools.Timeout)
	assert.Equal(t, filepath.Join("tmp", "ledger.db"), cfg.Ledger.DSN)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("PRECEDENT_TMP", "/var/cases")
	t.Setenv("PRECEDENT_MODE", "tesseract")
	t.Setenv("BATCH_WORKERS", "4")
	t.Setenv("DO_NOT_USE_CACHE", "true")
	t.Setenv("TOOL_TIMEOUT", "90s")
	t.Setenv("LEDGER_DSN", "postgres://u:p@db/ledger")

	cfg := LoadConfig()
	assert.Equal(t, constants.ModeOCR, cfg.Batch.Mode)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.False(t, cfg.Batch.ReuseCache)
	assert.Equal(t, 90*time.Second, cfg.Tools.Timeout)
	assert.Equal(t, "postgres://u:p@db/ledger", cfg.Ledger.DSN)
}

func TestLoadConfig_BadNumbersFallBack(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "many")
	t.Setenv("CASE_TIMEOUT", "soon")
	cfg := LoadConfig()
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Batch.CaseTimeout)
}

func TestValidate(t *testing.T) {
	for _, k := range []string{"OCR_ENGINE", "PAGE_COUNTER", "BATCH_WORKERS", "PRECEDENT_MODE"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	cfg.Batch.Input = "cases.json"
	require.NoError(t, cfg.Validate())

	cfg.Batch.Workers = 0
	cfg.OCR.Engine = "paddle"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, CodeConfig, CodeOf(err))
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "ocr_engine")
}
