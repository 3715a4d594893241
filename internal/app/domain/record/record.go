// Package record defines persisted verification records.
package record

import (
	"encoding/json"
	"time"
)

// SourceLocal tags records answered from the local store. Externally fetched
// records carry the originating provider's identifier instead.
const SourceLocal = "local"

// Record is one resolved verification result. Identity is
// (ServiceID, LookupKey); the store holds at most one record per identity.
type Record struct {
	ServiceID string
	LookupKey string
	Payload   json.RawMessage
	Source    string
	FetchedAt time.Time
}

// FreshWithin reports whether the record was fetched inside the given TTL.
// A zero TTL means records never expire.
func (r Record) FreshWithin(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	if r.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(r.FetchedAt) < ttl
}
