package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestUpdateCreditBalanceVersionConflict(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	// The CAS update matches nothing because the version moved on.
	mock.ExpectQuery("UPDATE credit_accounts").
		WillReturnError(sql.ErrNoRows)
	// The follow-up read finds the account, so this is a conflict, not a miss.
	mock.ExpectQuery("SELECT caller_id, balance, version").
		WillReturnRows(sqlmock.NewRows(
			[]string{"caller_id", "balance", "version", "created_at", "updated_at"}).
			AddRow("caller-1", int64(10), int64(3), now, now))

	_, err := store.UpdateCreditBalance(context.Background(), "caller-1", 8, 2)
	if err != storage.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateCreditBalanceMissingAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE credit_accounts").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT caller_id, balance, version").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateCreditBalance(context.Background(), "ghost", 8, 1)
	if err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCreditBalanceSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("UPDATE credit_accounts").
		WithArgs("caller-1", int64(8), sqlmock.AnyArg(), int64(2)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"caller_id", "balance", "version", "created_at", "updated_at"}).
			AddRow("caller-1", int64(8), int64(3), now, now))

	acct, err := store.UpdateCreditBalance(context.Background(), "caller-1", 8, 2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if acct.Balance != 8 || acct.Version != 3 {
		t.Fatalf("account = %+v", acct)
	}
}

func TestGetGrantByHashNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, key_hash").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetGrantByHash(context.Background(), "deadbeef")
	if err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT service_id, lookup_key").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRecord(context.Background(), "rc", "X")
	if err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	if _, err := store.CreateGrant(ctx, grant.Grant{
		KeyHash: "hash-" + time.Now().Format("150405.000000000"), CallerID: "it-caller",
		Services: []string{"*"}, Active: true,
	}); err != nil {
		t.Fatalf("create grant: %v", err)
	}

	if _, err := store.UpsertService(ctx, catalog.Service{
		ID: "it-rc", Name: "RC", Active: true, Cost: 1, LookupParam: "rc_number",
		Fallbacks: []string{"p1"}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("upsert service: %v", err)
	}

	callerID := "it-" + time.Now().Format("150405.000000000")
	acct, err := store.CreateCreditAccount(ctx, credit.Account{CallerID: callerID, Balance: 10})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := store.UpdateCreditBalance(ctx, callerID, 8, acct.Version); err != nil {
		t.Fatalf("update balance: %v", err)
	}

	if _, err := store.PutRecord(ctx, record.Record{
		ServiceID: "it-rc", LookupKey: "K", Payload: []byte(`{"a":1}`), Source: "p1",
	}); err != nil {
		t.Fatalf("put record: %v", err)
	}
	if _, err := store.GetRecord(ctx, "it-rc", "K"); err != nil {
		t.Fatalf("get record: %v", err)
	}
}
