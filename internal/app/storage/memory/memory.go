// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/domain/usage"
	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
)

// Store implements every storage interface on top of maps.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	grants         map[string]grant.Grant // key hash -> grant
	grantsByID     map[string]string      // id -> key hash
	services       map[string]catalog.Service
	creditAccounts map[string]credit.Account
	creditTxs      map[string][]credit.Transaction
	records        map[string]record.Record // serviceID + "\x00" + key
	usageEntries   []usage.Entry
	usersByEmail   map[string]user.User
}

var _ storage.GrantStore = (*Store)(nil)
var _ storage.ServiceStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.RecordStore = (*Store)(nil)
var _ storage.UsageStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		grants:         make(map[string]grant.Grant),
		grantsByID:     make(map[string]string),
		services:       make(map[string]catalog.Service),
		creditAccounts: make(map[string]credit.Account),
		creditTxs:      make(map[string][]credit.Transaction),
		records:        make(map[string]record.Record),
		usersByEmail:   make(map[string]user.User),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func recordKey(serviceID, lookupKey string) string {
	return serviceID + "\x00" + lookupKey
}

// GrantStore implementation ---------------------------------------------------

func (s *Store) CreateGrant(_ context.Context, g grant.Grant) (grant.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.KeyHash == "" {
		return grant.Grant{}, fmt.Errorf("grant key hash required")
	}
	if _, exists := s.grants[g.KeyHash]; exists {
		return grant.Grant{}, fmt.Errorf("grant for key already exists")
	}
	if g.ID == "" {
		g.ID = s.nextIDLocked()
	}
	g.CreatedAt = time.Now().UTC()
	g.Services = append([]string(nil), g.Services...)

	s.grants[g.KeyHash] = g
	s.grantsByID[g.ID] = g.KeyHash
	return cloneGrant(g), nil
}

func (s *Store) GetGrantByHash(_ context.Context, keyHash string) (grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[keyHash]
	if !ok {
		return grant.Grant{}, storage.ErrNotFound
	}
	return cloneGrant(g), nil
}

func (s *Store) TouchGrant(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.grantsByID[id]
	if !ok {
		return storage.ErrNotFound
	}
	g := s.grants[hash]
	g.LastUsedAt = at
	s.grants[hash] = g
	return nil
}

// ServiceStore implementation -------------------------------------------------

func (s *Store) UpsertService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == "" {
		return catalog.Service{}, fmt.Errorf("service id required")
	}
	now := time.Now().UTC()
	if existing, ok := s.services[svc.ID]; ok {
		svc.CreatedAt = existing.CreatedAt
	} else {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now
	s.services[svc.ID] = svc.Clone()
	return svc.Clone(), nil
}

func (s *Store) GetService(_ context.Context, id string) (catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return catalog.Service{}, storage.ErrNotFound
	}
	return svc.Clone(), nil
}

func (s *Store) ListServices(_ context.Context) ([]catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetServiceActive(_ context.Context, id string, active bool) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[id]
	if !ok {
		return catalog.Service{}, storage.ErrNotFound
	}
	svc.Active = active
	svc.UpdatedAt = time.Now().UTC()
	s.services[id] = svc
	return svc.Clone(), nil
}

// CreditStore implementation --------------------------------------------------

func (s *Store) CreateCreditAccount(_ context.Context, acct credit.Account) (credit.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.CallerID == "" {
		return credit.Account{}, fmt.Errorf("caller id required")
	}
	if _, exists := s.creditAccounts[acct.CallerID]; exists {
		return credit.Account{}, fmt.Errorf("credit account %s already exists", acct.CallerID)
	}
	now := time.Now().UTC()
	acct.Version = 1
	acct.CreatedAt = now
	acct.UpdatedAt = now
	s.creditAccounts[acct.CallerID] = acct
	return acct, nil
}

func (s *Store) GetCreditAccount(_ context.Context, callerID string) (credit.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.creditAccounts[callerID]
	if !ok {
		return credit.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (s *Store) UpdateCreditBalance(_ context.Context, callerID string, balance, expectedVersion int64) (credit.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.creditAccounts[callerID]
	if !ok {
		return credit.Account{}, storage.ErrNotFound
	}
	if acct.Version != expectedVersion {
		return credit.Account{}, storage.ErrVersionConflict
	}
	if balance < 0 {
		return credit.Account{}, fmt.Errorf("balance cannot go negative")
	}
	acct.Balance = balance
	acct.Version++
	acct.UpdatedAt = time.Now().UTC()
	s.creditAccounts[callerID] = acct
	return acct, nil
}

func (s *Store) CreateCreditTransaction(_ context.Context, tx credit.Transaction) (credit.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.creditTxs[tx.CallerID] = append(s.creditTxs[tx.CallerID], tx)
	return tx, nil
}

func (s *Store) ListCreditTransactions(_ context.Context, callerID string, limit int) ([]credit.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.creditTxs[callerID]
	if limit <= 0 || limit > len(txs) {
		limit = len(txs)
	}
	out := make([]credit.Transaction, limit)
	copy(out, txs[len(txs)-limit:])
	return out, nil
}

// RecordStore implementation --------------------------------------------------

func (s *Store) GetRecord(_ context.Context, serviceID, lookupKey string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(serviceID, lookupKey)]
	if !ok {
		return record.Record{}, storage.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) PutRecord(_ context.Context, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ServiceID == "" || rec.LookupKey == "" {
		return record.Record{}, fmt.Errorf("record identity required")
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	s.records[recordKey(rec.ServiceID, rec.LookupKey)] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

func (s *Store) ListRecords(_ context.Context, serviceID string, limit int) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Record
	for _, rec := range s.records {
		if rec.ServiceID == serviceID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UsageStore implementation ---------------------------------------------------

func (s *Store) AppendUsage(_ context.Context, e usage.Entry) (usage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.usageEntries = append(s.usageEntries, e)
	return e, nil
}

func (s *Store) ListUsageByCaller(_ context.Context, callerID string, limit int) ([]usage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.Entry
	for i := len(s.usageEntries) - 1; i >= 0; i-- {
		if s.usageEntries[i].CallerID != callerID {
			continue
		}
		out = append(out, s.usageEntries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListUsage(_ context.Context, limit int) ([]usage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.usageEntries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]usage.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.usageEntries[i])
	}
	return out, nil
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return user.User{}, fmt.Errorf("email required")
	}
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", email)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	u.Email = email
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.usersByEmail[email] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func cloneGrant(g grant.Grant) grant.Grant {
	g.Services = append([]string(nil), g.Services...)
	return g
}

func cloneRecord(r record.Record) record.Record {
	r.Payload = append([]byte(nil), r.Payload...)
	return r
}
