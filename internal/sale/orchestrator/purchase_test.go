package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/sale/domain"
	"github.com/storefront-labs/storefront/internal/sale/ledger"
)

// --- fakes ---

type fakeVerifier struct {
	principal auth.Principal
	err       error
	calls     int
}

func (f *fakeVerifier) Verify(credential string) (auth.Principal, error) {
	f.calls++
	return f.principal, f.err
}

type fakeInventory struct {
	goods map[string]domain.Good

	getCalls       int
	decrementCalls int
	restockCalls   int

	decrementErr error
}

func (f *fakeInventory) GetByName(ctx context.Context, name string) (domain.Good, error) {
	f.getCalls++
	good, ok := f.goods[name]
	if !ok {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	return good, nil
}

func (f *fakeInventory) GetByID(ctx context.Context, id int64) (domain.Good, error) {
	f.getCalls++
	for _, good := range f.goods {
		if good.ID == id {
			return good, nil
		}
	}
	return domain.Good{}, domain.ErrGoodNotFound
}

func (f *fakeInventory) List(ctx context.Context) ([]domain.Good, error) {
	return nil, nil
}

func (f *fakeInventory) Decrement(ctx context.Context, id, quantity int64) error {
	f.decrementCalls++
	if f.decrementErr != nil {
		return f.decrementErr
	}
	for name, good := range f.goods {
		if good.ID == id {
			if good.Count < quantity {
				return domain.ErrOutOfStock
			}
			good.Count -= quantity
			f.goods[name] = good
			return nil
		}
	}
	return domain.ErrInventoryUpdateFailed
}

func (f *fakeInventory) Restock(ctx context.Context, id, quantity int64) error {
	f.restockCalls++
	for name, good := range f.goods {
		if good.ID == id {
			good.Count += quantity
			f.goods[name] = good
			return nil
		}
	}
	return domain.ErrInventoryUpdateFailed
}

func (f *fakeInventory) count(name string) int64 {
	return f.goods[name].Count
}

type fakeAccounts struct {
	accounts map[int64]domain.Account

	getCalls    int
	debitCalls  int
	creditCalls int

	debitErr error
}

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	f.getCalls++
	account, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeAccounts) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	f.debitCalls++
	if f.debitErr != nil {
		return f.debitErr
	}
	account, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountDebitFailed
	}
	if account.Balance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(amount)
	f.accounts[id] = account
	return nil
}

func (f *fakeAccounts) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	f.creditCalls++
	account, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountDebitFailed
	}
	account.Balance = account.Balance.Add(amount)
	f.accounts[id] = account
	return nil
}

type fakeLedger struct {
	sales []domain.Sale
	err   error
}

func (f *fakeLedger) Append(ctx context.Context, sale domain.Sale) error {
	if f.err != nil {
		return f.err
	}
	f.sales = append(f.sales, sale)
	return nil
}

type fakeAudit struct {
	messages []string
}

func (f *fakeAudit) Append(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

// --- fixture ---

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	purchaser *Purchaser
	verifier  *fakeVerifier
	inventory *fakeInventory
	accounts  *fakeAccounts
	ledger    *fakeLedger
	audit     *fakeAudit
}

func newFixture(goodCount int64, goodPrice, balance string) *fixture {
	f := &fixture{
		verifier: &fakeVerifier{principal: auth.Principal{ID: 7, Kind: auth.KindCustomer}},
		inventory: &fakeInventory{goods: map[string]domain.Good{
			"Laptop": {ID: 3, Name: "Laptop", Category: "electronics", Price: price(goodPrice), Count: goodCount},
		}},
		accounts: &fakeAccounts{accounts: map[int64]domain.Account{
			7: {ID: 7, FullName: "Jane Doe", Username: "jane", Balance: price(balance)},
		}},
		ledger: &fakeLedger{},
		audit:  &fakeAudit{},
	}
	f.purchaser = NewPurchaser(
		f.verifier, f.inventory, f.accounts, f.ledger, nil, f.audit,
		clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	)
	return f
}

func (f *fixture) purchase(t *testing.T, goodName string, quantity int64) (domain.Sale, error) {
	t.Helper()
	return f.purchaser.Purchase(context.Background(), PurchaseInput{
		Credential: "token",
		GoodName:   goodName,
		Quantity:   quantity,
	})
}

// --- tests ---

func TestPurchaseSuccess(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")

	sale, err := f.purchase(t, "Laptop", 1)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	if got := sale.UnitPrice.String(); got != "999.99" {
		t.Errorf("unit price = %s, want 999.99", got)
	}
	if sale.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", sale.Quantity)
	}
	if got := f.inventory.count("Laptop"); got != 9 {
		t.Errorf("remaining count = %d, want 9", got)
	}
	if got := f.accounts.accounts[7].Balance.String(); got != "500.01" {
		t.Errorf("remaining balance = %s, want 500.01", got)
	}
	if len(f.ledger.sales) != 1 {
		t.Fatalf("ledger records = %d, want 1", len(f.ledger.sales))
	}
	if got := f.ledger.sales[0].UnitPrice.String(); got != "999.99" {
		t.Errorf("recorded price = %s, want 999.99", got)
	}
	if len(f.audit.messages) != 1 {
		t.Errorf("audit messages = %d, want 1", len(f.audit.messages))
	}
}

func TestPurchaseQuantityDefaultsToOne(t *testing.T) {
	f := newFixture(10, "10.00", "100.00")

	sale, err := f.purchase(t, "Laptop", 0)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if sale.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", sale.Quantity)
	}
}

func TestPurchaseMultipleQuantityDebitsTotal(t *testing.T) {
	f := newFixture(10, "10.00", "100.00")

	sale, err := f.purchase(t, "Laptop", 3)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if got := sale.Total().String(); got != "30" {
		t.Errorf("total = %s, want 30", got)
	}
	if got := f.accounts.accounts[7].Balance.String(); got != "70" {
		t.Errorf("remaining balance = %s, want 70", got)
	}
	if got := f.inventory.count("Laptop"); got != 7 {
		t.Errorf("remaining count = %d, want 7", got)
	}
}

func TestPurchaseOutOfStock(t *testing.T) {
	f := newFixture(0, "999.99", "1500.00")

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}

	// Precondition failures are fully side-effect free.
	if f.inventory.decrementCalls != 0 {
		t.Errorf("decrement calls = %d, want 0", f.inventory.decrementCalls)
	}
	if f.accounts.debitCalls != 0 {
		t.Errorf("debit calls = %d, want 0", f.accounts.debitCalls)
	}
	if len(f.ledger.sales) != 0 {
		t.Errorf("ledger records = %d, want 0", len(f.ledger.sales))
	}
	if got := f.inventory.count("Laptop"); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	f := newFixture(10, "999.99", "500.00")

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	if f.inventory.decrementCalls != 0 {
		t.Errorf("decrement calls = %d, want 0", f.inventory.decrementCalls)
	}
	if f.accounts.debitCalls != 0 {
		t.Errorf("debit calls = %d, want 0", f.accounts.debitCalls)
	}
	if len(f.ledger.sales) != 0 {
		t.Errorf("ledger records = %d, want 0", len(f.ledger.sales))
	}
}

func TestPurchasePreconditionFailureIsRepeatable(t *testing.T) {
	f := newFixture(0, "999.99", "1500.00")

	for i := 0; i < 2; i++ {
		_, err := f.purchase(t, "Laptop", 1)
		if !errors.Is(err, domain.ErrOutOfStock) {
			t.Fatalf("attempt %d: err = %v, want ErrOutOfStock", i+1, err)
		}
	}
}

func TestPurchaseNoCredential(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")

	_, err := f.purchaser.Purchase(context.Background(), PurchaseInput{
		GoodName: "Laptop",
		Quantity: 1,
	})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}

	// Rejected before any resource access.
	if f.verifier.calls != 0 {
		t.Errorf("verifier calls = %d, want 0", f.verifier.calls)
	}
	if f.inventory.getCalls != 0 {
		t.Errorf("inventory calls = %d, want 0", f.inventory.getCalls)
	}
	if f.accounts.getCalls != 0 {
		t.Errorf("account calls = %d, want 0", f.accounts.getCalls)
	}
}

func TestPurchaseInvalidCredential(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")
	f.verifier.err = auth.ErrInvalidCredential

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if f.inventory.getCalls != 0 || f.accounts.getCalls != 0 {
		t.Error("resource lookups made despite invalid credential")
	}
}

func TestPurchaseUnknownAccount(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")
	f.verifier.principal = auth.Principal{ID: 99, Kind: auth.KindCustomer}

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestPurchaseUnknownGood(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")

	_, err := f.purchase(t, "Toaster", 1)
	if !errors.Is(err, domain.ErrGoodNotFound) {
		t.Fatalf("err = %v, want ErrGoodNotFound", err)
	}
	if f.accounts.debitCalls != 0 || f.inventory.decrementCalls != 0 {
		t.Error("mutations applied despite unknown good")
	}
}

func TestPurchaseNegativeQuantity(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")

	_, err := f.purchase(t, "Laptop", -2)
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestPurchaseDebitFailureCompensatesInventory(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")
	f.accounts.debitErr = fmt.Errorf("%w: %w", domain.ErrAccountDebitFailed, context.DeadlineExceeded)

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrAccountDebitFailed) {
		t.Fatalf("err = %v, want ErrAccountDebitFailed", err)
	}

	// The decrement happened and was then compensated.
	if f.inventory.decrementCalls != 1 {
		t.Errorf("decrement calls = %d, want 1", f.inventory.decrementCalls)
	}
	if f.inventory.restockCalls != 1 {
		t.Errorf("restock calls = %d, want 1", f.inventory.restockCalls)
	}
	if got := f.inventory.count("Laptop"); got != 10 {
		t.Errorf("count after compensation = %d, want 10", got)
	}
	if len(f.ledger.sales) != 0 {
		t.Errorf("ledger records = %d, want 0", len(f.ledger.sales))
	}
	if len(f.audit.messages) != 0 {
		t.Errorf("audit messages = %d, want 0", len(f.audit.messages))
	}
}

func TestPurchaseLedgerFailureCompensatesBothMutations(t *testing.T) {
	f := newFixture(10, "999.99", "1500.00")
	// A raw store error, not the sentinel: the orchestrator owns the mapping.
	f.ledger.err = errors.New("disk full")

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrLedgerWriteFailed) {
		t.Fatalf("err = %v, want ErrLedgerWriteFailed", err)
	}

	if f.accounts.creditCalls != 1 {
		t.Errorf("credit calls = %d, want 1", f.accounts.creditCalls)
	}
	if f.inventory.restockCalls != 1 {
		t.Errorf("restock calls = %d, want 1", f.inventory.restockCalls)
	}
	if got := f.inventory.count("Laptop"); got != 10 {
		t.Errorf("count after compensation = %d, want 10", got)
	}
	if got := f.accounts.accounts[7].Balance.String(); got != "1500" {
		t.Errorf("balance after compensation = %s, want 1500", got)
	}
}

func TestPurchaseRealLedgerFailureMapsToLedgerWriteFailed(t *testing.T) {
	// Same failure driven through the real sqlite-backed store, the way the
	// production wiring runs it. Closing the database first makes every
	// append fail at the SQL layer.
	f := newFixture(10, "999.99", "1500.00")
	store, err := ledger.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	store.Close()

	f.purchaser = NewPurchaser(
		f.verifier, f.inventory, f.accounts, store, nil, f.audit,
		clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	)

	_, err = f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrLedgerWriteFailed) {
		t.Fatalf("err = %v, want ErrLedgerWriteFailed", err)
	}

	// Both earlier steps were rolled back.
	if f.accounts.creditCalls != 1 {
		t.Errorf("credit calls = %d, want 1", f.accounts.creditCalls)
	}
	if f.inventory.restockCalls != 1 {
		t.Errorf("restock calls = %d, want 1", f.inventory.restockCalls)
	}
	if got := f.inventory.count("Laptop"); got != 10 {
		t.Errorf("count after compensation = %d, want 10", got)
	}
}

func TestPurchaseConcurrentStockRace(t *testing.T) {
	// The snapshot said one unit was left, but another purchase consumed it
	// between validation and the conditional decrement.
	f := newFixture(1, "999.99", "1500.00")
	f.inventory.decrementErr = domain.ErrOutOfStock

	_, err := f.purchase(t, "Laptop", 1)
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}
	if f.accounts.debitCalls != 0 {
		t.Errorf("debit calls = %d, want 0", f.accounts.debitCalls)
	}
}
