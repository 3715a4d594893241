// Package usage defines the append-only usage log written once per request.
package usage

import "time"

// Outcomes recorded for a request.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Entry is one metered request. Entries are write-once; the pipeline creates
// exactly one per terminal state.
type Entry struct {
	ID         string
	CallerID   string
	ServiceID  string
	LookupKey  string
	Outcome    string
	Credits    int64
	Source     string
	StatusCode int
	DurationMS int64
	CreatedAt  time.Time
}
