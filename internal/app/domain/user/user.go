// Package user defines dashboard/admin users who manage keys and credits.
package user

import "time"

// Roles assignable to a user.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User is an operator of the gateway's management surface. Callers of the
// verification API authenticate with API keys, not user credentials.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
