// Package orchestrator sequences the multi-resource purchase workflow: check
// stock, check balance, deduct stock, debit the wallet, record the sale.
//
// The mutations are not wrapped in a distributed transaction. Instead they
// run as a saga: when a later step fails, earlier successful steps are
// compensated (restock, credit back) and the attempt is journaled so an
// operator can reconcile the cases where a compensation itself failed.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/sale/domain"
	"github.com/storefront-labs/storefront/internal/sale/journal"
)

// InventoryClient is the port to the service owning the goods table.
// Decrement must be atomic at the owner: "decrement by N if current >= N,
// else fail" — the orchestrator never does read-modify-write on the count.
type InventoryClient interface {
	GetByName(ctx context.Context, name string) (domain.Good, error)
	GetByID(ctx context.Context, id int64) (domain.Good, error)
	Decrement(ctx context.Context, id, quantity int64) error
	Restock(ctx context.Context, id, quantity int64) error
}

// AccountClient is the port to the service owning customer wallets. Debit
// re-validates sufficiency at the owner before applying.
type AccountClient interface {
	GetByID(ctx context.Context, id int64) (domain.Account, error)
	Debit(ctx context.Context, id int64, amount decimal.Decimal) error
	Credit(ctx context.Context, id int64, amount decimal.Decimal) error
}

// Ledger is the append-only record of completed sales.
type Ledger interface {
	Append(ctx context.Context, sale domain.Sale) error
}

// IdentityVerifier checks the structural half of authentication: signature
// and expiry. Whether the embedded id is a known account is a separate
// lookup against the account owner.
type IdentityVerifier interface {
	Verify(credential string) (auth.Principal, error)
}

// AuditLog receives a human-readable record of each completed sale.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Purchaser executes purchases end-to-end. It holds no mutable state of its
// own; all state lives in the owning resources, so concurrent purchases for
// different principals need no coordination here.
type Purchaser struct {
	verifier  IdentityVerifier
	inventory InventoryClient
	accounts  AccountClient
	ledger    Ledger
	journal   journal.Recorder
	audit     AuditLog
	clock     clock.Clock
	newID     func() string
}

func NewPurchaser(
	verifier IdentityVerifier,
	inventory InventoryClient,
	accounts AccountClient,
	ledger Ledger,
	rec journal.Recorder,
	audit AuditLog,
	clk clock.Clock,
) *Purchaser {
	return &Purchaser{
		verifier:  verifier,
		inventory: inventory,
		accounts:  accounts,
		ledger:    ledger,
		journal:   rec,
		audit:     audit,
		clock:     clk,
		newID:     uuid.NewString,
	}
}

// PurchaseInput is the ephemeral per-request command. Quantity defaults to 1
// when zero.
type PurchaseInput struct {
	Credential string
	GoodName   string
	Quantity   int64
}

// Purchase runs one purchase attempt.
//
// Preconditions are evaluated on snapshots read before any mutation, in a
// fixed order (stock first, then funds), so a failed precondition is fully
// side-effect free and repeating it against unchanged state yields the same
// error. The unit price recorded is the price observed here, not re-read
// after the mutations.
//
// Failures map onto the sentinels in the domain package; the caller can
// distinguish every kind with errors.Is.
func (p *Purchaser) Purchase(ctx context.Context, in PurchaseInput) (domain.Sale, error) {
	if in.Credential == "" {
		return domain.Sale{}, domain.ErrUnauthenticated
	}
	principal, err := p.verifier.Verify(in.Credential)
	if err != nil {
		return domain.Sale{}, domain.ErrInvalidCredential
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return domain.Sale{}, domain.ErrInvalidQuantity
	}

	account, err := p.accounts.GetByID(ctx, principal.ID)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("%w: account %d", domain.ErrAccountNotFound, principal.ID)
	}

	good, err := p.inventory.GetByName(ctx, in.GoodName)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("%w: %q", domain.ErrGoodNotFound, in.GoodName)
	}

	// Precondition order is fixed: stock first, then funds.
	if good.Count < quantity {
		return domain.Sale{}, fmt.Errorf("%w: %q has %d, requested %d", domain.ErrOutOfStock, good.Name, good.Count, quantity)
	}
	total := good.Price.Mul(decimal.NewFromInt(quantity))
	if account.Balance.LessThan(total) {
		return domain.Sale{}, fmt.Errorf("%w: balance %s, needed %s", domain.ErrInsufficientFunds, account.Balance, total)
	}

	sale := domain.Sale{
		ID:        p.newID(),
		GoodID:    good.ID,
		AccountID: account.ID,
		Quantity:  quantity,
		UnitPrice: good.Price,
		CreatedAt: p.clock.Now(),
	}

	steps := []Step{
		NewDecrementStockStep(p.inventory, good.ID, quantity),
		NewDebitAccountStep(p.accounts, account.ID, total),
		NewRecordSaleStep(p.ledger, sale),
	}

	// The sale ID doubles as the saga ID so the journal can be joined with
	// the ledger and correlated with the trace.
	saga := NewSaga(sale.ID, steps, p.payload(principal, good, quantity), p.journal)
	if err := saga.Start(ctx); err != nil {
		return domain.Sale{}, err
	}

	p.auditSale(ctx, sale, good, account)
	return sale, nil
}

// payload serialises the attempt input for the STARTED journal entry.
func (p *Purchaser) payload(principal auth.Principal, good domain.Good, quantity int64) string {
	b, err := json.Marshal(map[string]any{
		"account_id": principal.ID,
		"good_id":    good.ID,
		"good_name":  good.Name,
		"quantity":   quantity,
		"unit_price": good.Price.String(),
	})
	if err != nil {
		return ""
	}
	return string(b)
}

// auditSale is best effort: a dead log sink must not fail a completed sale.
func (p *Purchaser) auditSale(ctx context.Context, sale domain.Sale, good domain.Good, account domain.Account) {
	if p.audit == nil {
		return
	}
	msg := fmt.Sprintf("New sale of item %s to customer %s for $%s", good.Name, account.Username, sale.Total())
	if err := p.audit.Append(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to write audit entry", "sale_id", sale.ID, "error", err)
	}
}
