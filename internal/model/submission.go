package model

import "time"

// Submission statuses recorded in the journal.
const (
	SubmissionPending   = "pending"
	SubmissionConfirmed = "confirmed"
	SubmissionFailed    = "failed"
	SubmissionUnknown   = "unknown"
)

// Submission records a transaction sent to the ledger and its latest known outcome.
type Submission struct {
	Hash        string    `json:"hash"`
	Contract    string    `json:"contract"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Ledger      uint32    `json:"ledger,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the submission reached a final outcome.
func (s Submission) Terminal() bool {
	return s.Status == SubmissionConfirmed || s.Status == SubmissionFailed
}
