// Package catalog defines the service catalog entries the gateway can serve.
package catalog

import "time"

// Service describes one verification vertical (RC lookup, PAN verification,
// GST lookup, ...). Definitions are immutable after load except for Active.
type Service struct {
	ID          string
	Name        string
	Category    string
	Active      bool
	Cost        int64
	LookupParam string
	Fallbacks   []string
	TTL         time.Duration
	Refresh     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy safe to hand to a request; the fallback chain slice is
// duplicated so registry updates cannot race an in-flight request.
func (s Service) Clone() Service {
	out := s
	out.Fallbacks = append([]string(nil), s.Fallbacks...)
	return out
}
