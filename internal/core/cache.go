package core

import (
	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/utils"
)

// CacheState is what the filesystem says about a case before it runs.
type CacheState struct {
	PDFCached    bool
	TextProduced bool
}

// CacheDecision tells the processor which stages to run.
type CacheDecision struct {
	ShouldDownload bool
	ShouldRun      bool
}

// ResolveCache decides whether to fetch and whether to extract. It does no I/O.
func ResolveCache(reuseCache, forceRerun, pdfCacheExists, outputTextExists bool) CacheDecision {
	return CacheDecision{
		ShouldDownload: !reuseCache || !pdfCacheExists,
		ShouldRun:      forceRerun || !outputTextExists,
	}
}

// StatCacheState checks whether the cached PDF and the final text exist.
func StatCacheState(pdfPath, textPath string) (CacheState, error) {
	pdf, err := utils.Exists(pdfPath)
	if err != nil {
		return CacheState{}, common.IOError("stat cached pdf", err)
	}
	txt, err := utils.Exists(textPath)
	if err != nil {
		return CacheState{}, common.IOError("stat output text", err)
	}
	return CacheState{PDFCached: pdf, TextProduced: txt}, nil
}
