package constants

// CaseStatus is the canonical state of a case as it moves through the pipeline.
type CaseStatus string

// Stable values (store these exact strings in the ledger).
const (
	CaseStatusPending       CaseStatus = "PENDING"
	CaseStatusSkippedCached CaseStatus = "SKIPPED_CACHED" // terminal: output text already present
	CaseStatusDownloading   CaseStatus = "DOWNLOADING"
	CaseStatusCounting      CaseStatus = "COUNTING" // ocr mode only
	CaseStatusExtracting    CaseStatus = "EXTRACTING"
	CaseStatusJoining       CaseStatus = "JOINING"
	CaseStatusDone          CaseStatus = "DONE"   // terminal
	CaseStatusFailed        CaseStatus = "FAILED" // terminal
)

// Terminal reports whether no further transition is possible.
func (s CaseStatus) Terminal() bool {
	switch s {
	case CaseStatusSkippedCached, CaseStatusDone, CaseStatusFailed:
		return true
	}
	return false
}
