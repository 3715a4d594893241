// Package credit defines caller credit accounts and their transaction trail.
package credit

import "time"

// Transaction types recorded against an account.
const (
	TxTypeTopup  = "topup"
	TxTypeCharge = "charge"
	TxTypeRefund = "refund"
)

// Account tracks a caller's prepaid balance. Version increases on every
// balance write and guards against lost updates under concurrency.
type Account struct {
	CallerID  string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an append-only record of a balance movement.
type Transaction struct {
	ID           string
	CallerID     string
	TxType       string
	Amount       int64
	BalanceAfter int64
	ReferenceID  string
	CreatedAt    time.Time
}

// Reservation statuses.
const (
	ReservationPending   = "pending"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// Reservation represents credits held for an in-flight request. Funds are
// decremented at reserve time; Release puts them back, Commit finalizes.
type Reservation struct {
	Token     string
	CallerID  string
	ServiceID string
	Amount    int64
	Status    string
	CreatedAt time.Time
}
