package ingest

import (
	"context"

	"github.com/joseph-ayodele/precedent2txt/internal/entity"
)

// Loader is the behavior the batch command depends on.
type Loader interface {
	// LoadFile reads and validates every case record in the document at path.
	LoadFile(ctx context.Context, path string) ([]entity.CaseRecord, error)
}
