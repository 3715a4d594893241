// Package grant defines API key grants: which caller a key belongs to and
// which services it may invoke.
package grant

import "time"

// Wildcard entitles a key to every service in the catalog.
const Wildcard = "*"

// Grant is an issued API key. Only the SHA-256 hash of the key is stored; the
// prefix is kept for display.
type Grant struct {
	ID         string
	KeyHash    string
	KeyPrefix  string
	CallerID   string
	Services   []string
	Active     bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Entitles reports whether the grant covers the given service.
func (g Grant) Entitles(serviceID string) bool {
	for _, s := range g.Services {
		if s == Wildcard || s == serviceID {
			return true
		}
	}
	return false
}
