// Package domain holds the sale service's view of the storefront: snapshots
// of the remote resources it orchestrates and the Sale record it owns.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Good is a point-in-time snapshot of an inventory item, as returned by the
// inventory service. The orchestrator never mutates it directly.
type Good struct {
	ID          int64
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Count       int64
}

// Account is a point-in-time snapshot of a customer wallet.
type Account struct {
	ID       int64
	FullName string
	Username string
	Balance  decimal.Decimal
}

// Sale is the immutable ledger record of one completed purchase. UnitPrice is
// the price observed at validation time, not re-read after the mutations, so
// a mid-transaction price change never affects what the buyer was charged.
type Sale struct {
	ID        string
	GoodID    int64
	AccountID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Total is the amount debited for this sale.
func (s Sale) Total() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(s.Quantity))
}
