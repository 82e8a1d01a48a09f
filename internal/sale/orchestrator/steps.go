package orchestrator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/sale/domain"
)

// --- DecrementStockStep ---

// DecrementStockStep reserves stock by asking the inventory service for an
// atomic conditional decrement. Compensation restocks the same quantity.
type DecrementStockStep struct {
	client   InventoryClient
	goodID   int64
	quantity int64
}

func NewDecrementStockStep(client InventoryClient, goodID, quantity int64) *DecrementStockStep {
	return &DecrementStockStep{
		client:   client,
		goodID:   goodID,
		quantity: quantity,
	}
}

func (s *DecrementStockStep) Name() string { return "Decrement_Stock_Step" }

func (s *DecrementStockStep) Execute(ctx context.Context) error {
	if err := s.client.Decrement(ctx, s.goodID, s.quantity); err != nil {
		return fmt.Errorf("decrement stock for good %d: %w", s.goodID, err)
	}
	return nil
}

func (s *DecrementStockStep) Compensate(ctx context.Context) error {
	return s.client.Restock(ctx, s.goodID, s.quantity)
}

// --- DebitAccountStep ---

// DebitAccountStep debits the purchase total from the customer wallet.
// The account service re-validates sufficiency before applying the debit.
// Compensation credits the amount back.
type DebitAccountStep struct {
	client    AccountClient
	accountID int64
	amount    decimal.Decimal
}

func NewDebitAccountStep(client AccountClient, accountID int64, amount decimal.Decimal) *DebitAccountStep {
	return &DebitAccountStep{
		client:    client,
		accountID: accountID,
		amount:    amount,
	}
}

func (s *DebitAccountStep) Name() string { return "Debit_Account_Step" }

func (s *DebitAccountStep) Execute(ctx context.Context) error {
	if err := s.client.Debit(ctx, s.accountID, s.amount); err != nil {
		return fmt.Errorf("debit account %d: %w", s.accountID, err)
	}
	return nil
}

func (s *DebitAccountStep) Compensate(ctx context.Context) error {
	return s.client.Credit(ctx, s.accountID, s.amount)
}

// --- RecordSaleStep ---

// RecordSaleStep appends the completed sale to the ledger. It is the last
// step, so its compensation is a no-op: if the append fails, the earlier
// steps are rolled back and no record exists to undo.
type RecordSaleStep struct {
	ledger Ledger
	sale   domain.Sale
}

func NewRecordSaleStep(ledger Ledger, sale domain.Sale) *RecordSaleStep {
	return &RecordSaleStep{
		ledger: ledger,
		sale:   sale,
	}
}

func (s *RecordSaleStep) Name() string { return "Record_Sale_Step" }

func (s *RecordSaleStep) Execute(ctx context.Context) error {
	// The ledger is a local store, not a client that maps its own failures,
	// so the taxonomy wrapping happens here.
	if err := s.ledger.Append(ctx, s.sale); err != nil {
		return fmt.Errorf("%w: record sale %s: %w", domain.ErrLedgerWriteFailed, s.sale.ID, err)
	}
	return nil
}

func (s *RecordSaleStep) Compensate(ctx context.Context) error {
	return nil
}
