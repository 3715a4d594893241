// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/domain/usage"
	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
)

// Store implements the storage interfaces over a *sql.DB handle.
type Store struct {
	db *sql.DB
}

var _ storage.GrantStore = (*Store)(nil)
var _ storage.ServiceStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.RecordStore = (*Store)(nil)
var _ storage.UsageStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the given DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- GrantStore -------------------------------------------------------------

func (s *Store) CreateGrant(ctx context.Context, g grant.Grant) (grant.Grant, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_key_grants (id, key_hash, key_prefix, caller_id, services, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.KeyHash, g.KeyPrefix, g.CallerID, pq.Array(g.Services), g.Active, g.CreatedAt)
	if err != nil {
		return grant.Grant{}, err
	}
	return g, nil
}

func (s *Store) GetGrantByHash(ctx context.Context, keyHash string) (grant.Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, key_prefix, caller_id, services, active, created_at, last_used_at
		FROM api_key_grants
		WHERE key_hash = $1
	`, keyHash)

	var (
		g        grant.Grant
		lastUsed sql.NullTime
	)
	if err := row.Scan(&g.ID, &g.KeyHash, &g.KeyPrefix, &g.CallerID,
		pq.Array(&g.Services), &g.Active, &g.CreatedAt, &lastUsed); err != nil {
		return grant.Grant{}, mapNotFound(err)
	}
	if lastUsed.Valid {
		g.LastUsedAt = lastUsed.Time
	}
	return g, nil
}

func (s *Store) TouchGrant(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_key_grants SET last_used_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ServiceStore -----------------------------------------------------------

func (s *Store) UpsertService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	now := time.Now().UTC()
	svc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, name, category, active, cost, lookup_param, fallbacks, ttl_seconds, refresh, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			active = EXCLUDED.active,
			cost = EXCLUDED.cost,
			lookup_param = EXCLUDED.lookup_param,
			fallbacks = EXCLUDED.fallbacks,
			ttl_seconds = EXCLUDED.ttl_seconds,
			refresh = EXCLUDED.refresh,
			updated_at = EXCLUDED.updated_at
	`, svc.ID, svc.Name, svc.Category, svc.Active, svc.Cost, svc.LookupParam,
		pq.Array(svc.Fallbacks), int64(svc.TTL.Seconds()), svc.Refresh, now)
	if err != nil {
		return catalog.Service{}, err
	}
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id string) (catalog.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, active, cost, lookup_param, fallbacks, ttl_seconds, refresh, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (s *Store) ListServices(ctx context.Context) ([]catalog.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, active, cost, lookup_param, fallbacks, ttl_seconds, refresh, created_at, updated_at
		FROM services
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

func (s *Store) SetServiceActive(ctx context.Context, id string, active bool) (catalog.Service, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE services SET active = $2, updated_at = $3 WHERE id = $1
	`, id, active, time.Now().UTC())
	if err != nil {
		return catalog.Service{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return catalog.Service{}, storage.ErrNotFound
	}
	return s.GetService(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (catalog.Service, error) {
	var (
		svc        catalog.Service
		ttlSeconds int64
	)
	if err := row.Scan(&svc.ID, &svc.Name, &svc.Category, &svc.Active, &svc.Cost,
		&svc.LookupParam, pq.Array(&svc.Fallbacks), &ttlSeconds, &svc.Refresh,
		&svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return catalog.Service{}, mapNotFound(err)
	}
	svc.TTL = time.Duration(ttlSeconds) * time.Second
	return svc, nil
}

// --- CreditStore ------------------------------------------------------------

func (s *Store) CreateCreditAccount(ctx context.Context, acct credit.Account) (credit.Account, error) {
	now := time.Now().UTC()
	acct.Version = 1
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_accounts (caller_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, acct.CallerID, acct.Balance, acct.Version, now)
	if err != nil {
		return credit.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetCreditAccount(ctx context.Context, callerID string) (credit.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT caller_id, balance, version, created_at, updated_at
		FROM credit_accounts
		WHERE caller_id = $1
	`, callerID)

	var acct credit.Account
	if err := row.Scan(&acct.CallerID, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return credit.Account{}, mapNotFound(err)
	}
	return acct, nil
}

func (s *Store) UpdateCreditBalance(ctx context.Context, callerID string, balance, expectedVersion int64) (credit.Account, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		UPDATE credit_accounts
		SET balance = $2, version = version + 1, updated_at = $3
		WHERE caller_id = $1 AND version = $4 AND $2 >= 0
		RETURNING caller_id, balance, version, created_at, updated_at
	`, callerID, balance, now, expectedVersion)

	var acct credit.Account
	if err := row.Scan(&acct.CallerID, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing account from a lost race.
			if _, getErr := s.GetCreditAccount(ctx, callerID); getErr != nil {
				return credit.Account{}, getErr
			}
			return credit.Account{}, storage.ErrVersionConflict
		}
		return credit.Account{}, err
	}
	return acct, nil
}

func (s *Store) CreateCreditTransaction(ctx context.Context, tx credit.Transaction) (credit.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, caller_id, tx_type, amount, balance_after, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tx.ID, tx.CallerID, tx.TxType, tx.Amount, tx.BalanceAfter, tx.ReferenceID, tx.CreatedAt)
	if err != nil {
		return credit.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, callerID string, limit int) ([]credit.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caller_id, tx_type, amount, balance_after, reference_id, created_at
		FROM credit_transactions
		WHERE caller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, callerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []credit.Transaction
	for rows.Next() {
		var tx credit.Transaction
		if err := rows.Scan(&tx.ID, &tx.CallerID, &tx.TxType, &tx.Amount,
			&tx.BalanceAfter, &tx.ReferenceID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// --- RecordStore ------------------------------------------------------------

func (s *Store) GetRecord(ctx context.Context, serviceID, lookupKey string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT service_id, lookup_key, payload, source, fetched_at
		FROM verification_records
		WHERE service_id = $1 AND lookup_key = $2
	`, serviceID, lookupKey)

	var rec record.Record
	if err := row.Scan(&rec.ServiceID, &rec.LookupKey, &rec.Payload, &rec.Source, &rec.FetchedAt); err != nil {
		return record.Record{}, mapNotFound(err)
	}
	return rec, nil
}

func (s *Store) PutRecord(ctx context.Context, rec record.Record) (record.Record, error) {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_records (service_id, lookup_key, payload, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (service_id, lookup_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			source = EXCLUDED.source,
			fetched_at = EXCLUDED.fetched_at
	`, rec.ServiceID, rec.LookupKey, []byte(rec.Payload), rec.Source, rec.FetchedAt)
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, serviceID string, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, lookup_key, payload, source, fetched_at
		FROM verification_records
		WHERE service_id = $1
		ORDER BY fetched_at ASC
		LIMIT $2
	`, serviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []record.Record
	for rows.Next() {
		var rec record.Record
		if err := rows.Scan(&rec.ServiceID, &rec.LookupKey, &rec.Payload, &rec.Source, &rec.FetchedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// --- UsageStore -------------------------------------------------------------

func (s *Store) AppendUsage(ctx context.Context, e usage.Entry) (usage.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_log (id, caller_id, service_id, lookup_key, outcome, credits, source, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.CallerID, e.ServiceID, e.LookupKey, e.Outcome, e.Credits, e.Source,
		e.StatusCode, e.DurationMS, e.CreatedAt)
	if err != nil {
		return usage.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListUsageByCaller(ctx context.Context, callerID string, limit int) ([]usage.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listUsage(ctx, `
		SELECT id, caller_id, service_id, lookup_key, outcome, credits, source, status_code, duration_ms, created_at
		FROM usage_log
		WHERE caller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, callerID, limit)
}

func (s *Store) ListUsage(ctx context.Context, limit int) ([]usage.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listUsage(ctx, `
		SELECT id, caller_id, service_id, lookup_key, outcome, credits, source, status_code, duration_ms, created_at
		FROM usage_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *Store) listUsage(ctx context.Context, query string, args ...interface{}) ([]usage.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []usage.Entry
	for rows.Next() {
		var e usage.Entry
		if err := rows.Scan(&e.ID, &e.CallerID, &e.ServiceID, &e.LookupKey, &e.Outcome,
			&e.Credits, &e.Source, &e.StatusCode, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.Active, now)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, active, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)

	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapNotFound(err)
	}
	return u, nil
}
