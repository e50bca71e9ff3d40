package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LedgerAccrual = "accrual"
	LedgerReserve = "reserve"
	LedgerSpend   = "spend"
	LedgerRelease = "release"
	LedgerExpire  = "expire"
)

// Wallet holds user points for one accrual period
// Invariant kept by every mutation: 0 <= Reserved <= Balance
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Balance   int64
	Reserved  int64
	Period    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Points that may be reserved by a new order
func (w Wallet) Available() int64 {
	return w.Balance - w.Reserved
}

// LedgerEntry is an append-only record of a points movement
type LedgerEntry struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	TenantID    uuid.UUID
	OrderID     *uuid.UUID
	Type        string
	Amount      int64
	Description string
	CreatedAt   time.Time
}
