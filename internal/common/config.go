package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/precedent2txt/constants"
)

// Config holds all application configuration
type Config struct {
	Batch  BatchConfig
	Tools  ToolsConfig
	OCR    OCRConfig
	Fetch  FetchConfig
	Ledger LedgerConfig
}

// BatchConfig holds per-run settings, mostly set from CLI flags
type BatchConfig struct {
	Input       string
	TmpDir      string
	OutputDir   string
	Mode        constants.Mode
	ReuseCache  bool // inverse of --do-not-use-cache
	ForceRerun  bool
	Workers     int
	CaseTimeout time.Duration
	ReportXLSX  string
}

// ToolsConfig holds external binary names or absolute paths
type ToolsConfig struct {
	Pdfinfo   string
	Pdftoppm  string
	Pdftotext string
	Convert   string
	Tesseract string
	Timeout   time.Duration // per invocation; 0 disables
}

// OCRConfig holds recognition-related configuration
type OCRConfig struct {
	Lang         string
	Engine       string // tesseract | gosseract
	TessdataDir  string
	CropGeometry string
	PageCounter  string // pdfinfo | pdfcpu
}

// FetchConfig holds document download configuration
type FetchConfig struct {
	Timeout         time.Duration
	AcceptAnyStatus bool
	UserAgent       string
}

// LedgerConfig holds run-ledger database configuration
type LedgerConfig struct {
	DSN         string // "" disables the ledger
	MaxConns    int32
	DialTimeout time.Duration
}

const (
	DefaultCropGeometry = "1000x1475+150+150"
	DefaultLang         = "jpn"
	ledgerFileName      = "ledger.db"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	tmp := getEnv("PRECEDENT_TMP", "tmp")
	mode, _ := constants.ParseMode(getEnv("PRECEDENT_MODE", string(constants.ModeTextLayer)))
	return &Config{
		Batch: BatchConfig{
			TmpDir:      tmp,
			OutputDir:   getEnv("PRECEDENT_OUTPUT", "."),
			Mode:        mode,
			ReuseCache:  !getEnvAsBool("DO_NOT_USE_CACHE", false),
			ForceRerun:  getEnvAsBool("FORCE_RE_RUN", false),
			Workers:     getEnvAsInt("BATCH_WORKERS", 1),
			CaseTimeout: getEnvAsDuration("CASE_TIMEOUT", 30*time.Minute),
		},
		Tools: ToolsConfig{
			Pdfinfo:   getEnv("PDFINFO_BIN", "pdfinfo"),
			Pdftoppm:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Convert:   getEnv("CONVERT_BIN", "convert"),
			Tesseract: getEnv("TESSERACT_BIN", "tesseract"),
			Timeout:   getEnvAsDuration("TOOL_TIMEOUT", 10*time.Minute),
		},
		OCR: OCRConfig{
			Lang:         getEnv("OCR_LANG", DefaultLang),
			Engine:       getEnv("OCR_ENGINE", "tesseract"),
			TessdataDir:  getEnv("TESSDATA_PREFIX", ""),
			CropGeometry: getEnv("CROP_GEOMETRY", DefaultCropGeometry),
			PageCounter:  getEnv("PAGE_COUNTER", "pdfinfo"),
		},
		Fetch: FetchConfig{
			Timeout:         getEnvAsDuration("FETCH_TIMEOUT", 2*time.Minute),
			AcceptAnyStatus: getEnvAsBool("ACCEPT_ANY_STATUS", false),
			UserAgent:       getEnv("FETCH_USER_AGENT", "precedent2txt"),
		},
		Ledger: LedgerConfig{
			DSN:         getEnv("LEDGER_DSN", filepath.Join(tmp, ledgerFileName)),
			MaxConns:    getEnvAsInt32("LEDGER_MAX_CONNS", 4),
			DialTimeout: getEnvAsDuration("LEDGER_DIAL_TIMEOUT", 3*time.Second),
		},
	}
}

// DefaultLedgerDSN is the ledger location used when only --tmp changes.
func DefaultLedgerDSN(tmpDir string) string {
	return filepath.Join(tmpDir, ledgerFileName)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("input", c.Batch.Input, Required).
		Field("tmp", c.Batch.TmpDir, Required).
		Field("output", c.Batch.OutputDir, Required).
		Field("mode", string(c.Batch.Mode), OneOf(constants.ModesAsStringSlice()...)).
		Field("workers", c.Batch.Workers, Positive).
		Field("ocr_engine", c.OCR.Engine, OneOf("tesseract", "gosseract")).
		Field("page_counter", c.OCR.PageCounter, OneOf("pdfinfo", "pdfcpu")).
		Field("ocr_lang", c.OCR.Lang, Required).
		Field("crop_geometry", c.OCR.CropGeometry, Required)
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
