// Package ledger meters caller credit balances. Credits are decremented at
// reservation time; a failed resolution releases them back, a successful one
// commits the pending charge.
package ledger

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soni0021/apiservices-backend/internal/app/domain/credit"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// conflictRetries bounds optimistic-concurrency retries against the store.
const conflictRetries = 3

// Service handles all balance operations. Operations for the same caller
// serialize on a per-caller mutex; the store's account version additionally
// guards against lost updates from other gateway instances.
type Service struct {
	store storage.CreditStore
	log   *logger.Logger

	mu           sync.Mutex
	locks        map[string]*sync.Mutex
	reservations map[string]*credit.Reservation
}

// New constructs a credit ledger.
func New(store storage.CreditStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{
		store:        store,
		log:          log,
		locks:        make(map[string]*sync.Mutex),
		reservations: make(map[string]*credit.Reservation),
	}
}

func (s *Service) lockFor(callerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[callerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[callerID] = l
	}
	return l
}

// Balance returns the caller's account.
func (s *Service) Balance(ctx context.Context, callerID string) (credit.Account, error) {
	return s.store.GetCreditAccount(ctx, callerID)
}

// Transactions returns the caller's recent balance movements.
func (s *Service) Transactions(ctx context.Context, callerID string, limit int) ([]credit.Transaction, error) {
	return s.store.ListCreditTransactions(ctx, callerID, limit)
}

// Reserve holds amount credits for an in-flight request and returns a token
// representing the pending charge. The balance is decremented immediately so
// concurrent requests cannot overspend.
func (s *Service) Reserve(ctx context.Context, callerID, serviceID string, amount int64) (string, error) {
	if amount < 0 {
		return "", errors.InvalidRequest("reservation amount cannot be negative")
	}

	l := s.lockFor(callerID)
	l.Lock()
	defer l.Unlock()

	acct, err := s.debit(ctx, callerID, amount)
	if err != nil {
		return "", err
	}

	res := &credit.Reservation{
		Token:     uuid.NewString(),
		CallerID:  callerID,
		ServiceID: serviceID,
		Amount:    amount,
		Status:    credit.ReservationPending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.reservations[res.Token] = res
	s.mu.Unlock()

	s.log.WithField("caller_id", callerID).
		WithField("service", serviceID).
		WithField("amount", amount).
		WithField("balance", acct.Balance).
		Debug("credits reserved")
	return res.Token, nil
}

// Commit finalizes a reservation. Funds were already decremented at reserve
// time, so commit cannot fail the request; it records the charge for the
// transaction trail. Unknown tokens are ignored.
func (s *Service) Commit(ctx context.Context, token string) {
	res := s.takeReservation(token)
	if res == nil {
		return
	}

	l := s.lockFor(res.CallerID)
	l.Lock()
	defer l.Unlock()

	res.Status = credit.ReservationCommitted

	acct, err := s.store.GetCreditAccount(ctx, res.CallerID)
	if err != nil {
		s.log.WithError(err).WithField("caller_id", res.CallerID).Warn("commit: account read failed")
		return
	}
	if _, err := s.store.CreateCreditTransaction(ctx, credit.Transaction{
		CallerID:     res.CallerID,
		TxType:       credit.TxTypeCharge,
		Amount:       -res.Amount,
		BalanceAfter: acct.Balance,
		ReferenceID:  res.ServiceID,
	}); err != nil {
		s.log.WithError(err).WithField("caller_id", res.CallerID).Warn("commit: record transaction failed")
	}
}

// Release refunds a reservation after a failed resolution. It is idempotent:
// releasing an unknown or already-settled token is a no-op. When the refund
// write fails the reservation is re-queued so a retry can reconcile it.
func (s *Service) Release(ctx context.Context, token string) error {
	res := s.takeReservation(token)
	if res == nil {
		return nil
	}

	l := s.lockFor(res.CallerID)
	l.Lock()
	defer l.Unlock()

	acct, err := s.creditBack(ctx, res.CallerID, res.Amount)
	if err != nil {
		s.mu.Lock()
		s.reservations[res.Token] = res
		s.mu.Unlock()
		return err
	}
	res.Status = credit.ReservationReleased
	if _, err := s.store.CreateCreditTransaction(ctx, credit.Transaction{
		CallerID:     res.CallerID,
		TxType:       credit.TxTypeRefund,
		Amount:       res.Amount,
		BalanceAfter: acct.Balance,
		ReferenceID:  res.ServiceID,
	}); err != nil {
		s.log.WithError(err).WithField("caller_id", res.CallerID).Warn("release: record transaction failed")
	}
	return nil
}

// Topup adds credits to a caller, creating the account on first use.
func (s *Service) Topup(ctx context.Context, callerID string, amount int64, reference string) (credit.Account, error) {
	if amount <= 0 {
		return credit.Account{}, errors.InvalidRequest("topup amount must be positive")
	}

	l := s.lockFor(callerID)
	l.Lock()
	defer l.Unlock()

	acct, err := s.store.GetCreditAccount(ctx, callerID)
	if stderrors.Is(err, storage.ErrNotFound) {
		acct, err = s.store.CreateCreditAccount(ctx, credit.Account{CallerID: callerID})
	}
	if err != nil {
		return credit.Account{}, err
	}

	acct, err = s.writeBalance(ctx, callerID, acct, acct.Balance+amount)
	if err != nil {
		return credit.Account{}, err
	}
	if _, err := s.store.CreateCreditTransaction(ctx, credit.Transaction{
		CallerID:     callerID,
		TxType:       credit.TxTypeTopup,
		Amount:       amount,
		BalanceAfter: acct.Balance,
		ReferenceID:  reference,
	}); err != nil {
		s.log.WithError(err).WithField("caller_id", callerID).Warn("topup: record transaction failed")
	}
	return acct, nil
}

func (s *Service) takeReservation(token string) *credit.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[token]
	if !ok || res.Status != credit.ReservationPending {
		return nil
	}
	delete(s.reservations, token)
	return res
}

// debit subtracts amount, failing with InsufficientCredits when the balance
// cannot cover it. Caller must hold the per-caller lock.
func (s *Service) debit(ctx context.Context, callerID string, amount int64) (credit.Account, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		acct, err := s.store.GetCreditAccount(ctx, callerID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return credit.Account{}, errors.InsufficientCredits(amount, 0)
			}
			return credit.Account{}, errors.Internal("account read failed", err)
		}
		if acct.Balance < amount {
			return credit.Account{}, errors.InsufficientCredits(amount, acct.Balance)
		}

		updated, err := s.store.UpdateCreditBalance(ctx, callerID, acct.Balance-amount, acct.Version)
		if err == nil {
			return updated, nil
		}
		if !stderrors.Is(err, storage.ErrVersionConflict) {
			return credit.Account{}, errors.Internal("balance update failed", err)
		}
		lastErr = err
	}
	return credit.Account{}, errors.LedgerConflict(callerID).WithDetails("cause", lastErr.Error())
}

// creditBack adds amount to the balance. Caller must hold the per-caller lock.
func (s *Service) creditBack(ctx context.Context, callerID string, amount int64) (credit.Account, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		acct, err := s.store.GetCreditAccount(ctx, callerID)
		if err != nil {
			return credit.Account{}, errors.Internal("account read failed", err)
		}
		updated, err := s.store.UpdateCreditBalance(ctx, callerID, acct.Balance+amount, acct.Version)
		if err == nil {
			return updated, nil
		}
		if !stderrors.Is(err, storage.ErrVersionConflict) {
			return credit.Account{}, errors.Internal("balance update failed", err)
		}
		lastErr = err
	}
	return credit.Account{}, errors.LedgerConflict(callerID).WithDetails("cause", lastErr.Error())
}

func (s *Service) writeBalance(ctx context.Context, callerID string, acct credit.Account, balance int64) (credit.Account, error) {
	updated, err := s.store.UpdateCreditBalance(ctx, callerID, balance, acct.Version)
	if err == nil {
		return updated, nil
	}
	if stderrors.Is(err, storage.ErrVersionConflict) {
		// Holder of the per-caller lock raced an external writer; re-read once.
		fresh, readErr := s.store.GetCreditAccount(ctx, callerID)
		if readErr != nil {
			return credit.Account{}, readErr
		}
		return s.store.UpdateCreditBalance(ctx, callerID, fresh.Balance+(balance-acct.Balance), fresh.Version)
	}
	return credit.Account{}, err
}
