// Package storage declares the persistence interfaces the gateway depends on.
// Implementations live in the memory and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/domain/usage"
	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a balance write loses an optimistic
// concurrency race; callers retry with a fresh read.
var ErrVersionConflict = errors.New("version conflict")

// GrantStore persists API key grants.
type GrantStore interface {
	CreateGrant(ctx context.Context, g grant.Grant) (grant.Grant, error)
	GetGrantByHash(ctx context.Context, keyHash string) (grant.Grant, error)
	TouchGrant(ctx context.Context, id string, at time.Time) error
}

// ServiceStore persists the service catalog.
type ServiceStore interface {
	UpsertService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	GetService(ctx context.Context, id string) (catalog.Service, error)
	ListServices(ctx context.Context) ([]catalog.Service, error)
	SetServiceActive(ctx context.Context, id string, active bool) (catalog.Service, error)
}

// CreditStore persists credit accounts and their transaction trail.
type CreditStore interface {
	CreateCreditAccount(ctx context.Context, acct credit.Account) (credit.Account, error)
	GetCreditAccount(ctx context.Context, callerID string) (credit.Account, error)
	// UpdateCreditBalance writes a new balance if the stored version still
	// matches expectedVersion; otherwise it returns ErrVersionConflict.
	UpdateCreditBalance(ctx context.Context, callerID string, balance, expectedVersion int64) (credit.Account, error)
	CreateCreditTransaction(ctx context.Context, tx credit.Transaction) (credit.Transaction, error)
	ListCreditTransactions(ctx context.Context, callerID string, limit int) ([]credit.Transaction, error)
}

// RecordStore persists verification records keyed by (service, lookup key).
type RecordStore interface {
	GetRecord(ctx context.Context, serviceID, lookupKey string) (record.Record, error)
	// PutRecord inserts or overwrites the record for its identity.
	PutRecord(ctx context.Context, rec record.Record) (record.Record, error)
	// ListRecords returns up to limit records for a service, oldest fetch
	// first, so refresh work visits the stalest data before the rest.
	ListRecords(ctx context.Context, serviceID string, limit int) ([]record.Record, error)
}

// UsageStore persists the append-only usage log.
type UsageStore interface {
	AppendUsage(ctx context.Context, e usage.Entry) (usage.Entry, error)
	ListUsageByCaller(ctx context.Context, callerID string, limit int) ([]usage.Entry, error)
	ListUsage(ctx context.Context, limit int) ([]usage.Entry, error)
}

// UserStore persists management users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}
