package entity

import (
	"time"

	"github.com/google/uuid"
)

// CaseRun is one ledger row: the outcome of processing a case within a batch run.
type CaseRun struct {
	RunID        uuid.UUID  `json:"run_id"`
	CaseName     string     `json:"case_name"`
	CaseNumber   string     `json:"case_number"`
	Mode         string     `json:"mode"`
	Status       string     `json:"status"`
	ErrorKind    *string    `json:"error_kind,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Diagnostics  []string   `json:"diagnostics,omitempty"`
	Pages        int        `json:"pages"`
	TextBytes    int        `json:"text_bytes"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
