package ledger

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/storage/memory"
	"github.com/soni0021/apiservices-backend/internal/errors"
)

func newTestLedger(t *testing.T, callerID string, balance int64) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, nil)
	if balance > 0 {
		if _, err := svc.Topup(context.Background(), callerID, balance, "seed"); err != nil {
			t.Fatalf("seed topup: %v", err)
		}
	}
	return svc, store
}

func TestReserveAndCommit(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 10)
	ctx := context.Background()

	token, err := svc.Reserve(ctx, "caller-1", "rc", 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reservation token")
	}

	acct, err := svc.Balance(ctx, "caller-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Balance != 7 {
		t.Fatalf("balance after reserve = %d, want 7", acct.Balance)
	}

	svc.Commit(ctx, token)

	acct, err = svc.Balance(ctx, "caller-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Balance != 7 {
		t.Fatalf("balance after commit = %d, want 7", acct.Balance)
	}

	txs, err := svc.Transactions(ctx, "caller-1", 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	// seed topup + charge
	if len(txs) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(txs))
	}
}

func TestReleaseRefunds(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 5)
	ctx := context.Background()

	token, err := svc.Reserve(ctx, "caller-1", "pan", 5)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}

	acct, err := svc.Balance(ctx, "caller-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Balance != 5 {
		t.Fatalf("balance after release = %d, want 5", acct.Balance)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 5)
	ctx := context.Background()

	token, err := svc.Reserve(ctx, "caller-1", "pan", 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Release(ctx, token); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.Release(ctx, token); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := svc.Release(ctx, "no-such-token"); err != nil {
		t.Fatalf("unknown token release: %v", err)
	}

	acct, _ := svc.Balance(ctx, "caller-1")
	if acct.Balance != 5 {
		t.Fatalf("balance refunded twice: got %d, want 5", acct.Balance)
	}
}

func TestCommitAfterReleaseDoesNothing(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 5)
	ctx := context.Background()

	token, _ := svc.Reserve(ctx, "caller-1", "pan", 2)
	if err := svc.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	svc.Commit(ctx, token)

	acct, _ := svc.Balance(ctx, "caller-1")
	if acct.Balance != 5 {
		t.Fatalf("balance = %d, want 5", acct.Balance)
	}
}

func TestReserveInsufficientCredits(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 2)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "caller-1", "rc", 3)
	if !errors.IsCode(err, errors.CodeInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}

	// A caller with no account at all gets the same error.
	_, err = svc.Reserve(ctx, "stranger", "rc", 1)
	if !errors.IsCode(err, errors.CodeInsufficientCredits) {
		t.Fatalf("expected insufficient credits for unknown caller, got %v", err)
	}
}

func TestZeroCostReservation(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 1)
	ctx := context.Background()

	token, err := svc.Reserve(ctx, "caller-1", "free", 0)
	if err != nil {
		t.Fatalf("zero-cost reserve: %v", err)
	}
	svc.Commit(ctx, token)

	acct, _ := svc.Balance(ctx, "caller-1")
	if acct.Balance != 1 {
		t.Fatalf("balance = %d, want 1", acct.Balance)
	}
}

func TestConcurrentReservesNeverOverspend(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := svc.Reserve(ctx, "caller-1", "rc", 1)
			if err == nil {
				granted <- token
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for token := range granted {
		count++
		svc.Commit(ctx, token)
	}
	if count != 50 {
		t.Fatalf("granted %d reservations, want exactly 50", count)
	}

	acct, _ := svc.Balance(ctx, "caller-1")
	if acct.Balance != 0 {
		t.Fatalf("final balance = %d, want 0", acct.Balance)
	}
}

// flakyCreditStore fails balance writes while tripped.
type flakyCreditStore struct {
	*memory.Store
	tripped bool
}

func (s *flakyCreditStore) UpdateCreditBalance(ctx context.Context, callerID string, balance, version int64) (credit.Account, error) {
	if s.tripped {
		return credit.Account{}, stderrors.New("store down")
	}
	return s.Store.UpdateCreditBalance(ctx, callerID, balance, version)
}

func TestReleaseRetriesAfterStoreFailure(t *testing.T) {
	store := &flakyCreditStore{Store: memory.New()}
	svc := New(store, nil)
	ctx := context.Background()

	if _, err := svc.Topup(ctx, "caller-1", 10, "seed"); err != nil {
		t.Fatalf("seed topup: %v", err)
	}
	token, err := svc.Reserve(ctx, "caller-1", "rc", 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	store.tripped = true
	if err := svc.Release(ctx, token); err == nil {
		t.Fatal("expected release to fail while the store is down")
	}

	// The reservation is still reconcilable once the store recovers.
	store.tripped = false
	if err := svc.Release(ctx, token); err != nil {
		t.Fatalf("retry release: %v", err)
	}

	acct, err := svc.Balance(ctx, "caller-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.Balance != 10 {
		t.Fatalf("balance = %d, want 10 after the retried refund", acct.Balance)
	}
}

func TestTopupValidation(t *testing.T) {
	svc, _ := newTestLedger(t, "caller-1", 0)

	if _, err := svc.Topup(context.Background(), "caller-1", 0, ""); !errors.IsCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected invalid request for zero topup, got %v", err)
	}
	if _, err := svc.Topup(context.Background(), "caller-1", -5, ""); !errors.IsCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected invalid request for negative topup, got %v", err)
	}
}
