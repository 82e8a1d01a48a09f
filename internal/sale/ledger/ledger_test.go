package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/sale/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSale(id string, accountID int64, created time.Time) domain.Sale {
	return domain.Sale{
		ID:        id,
		GoodID:    3,
		AccountID: accountID,
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("999.99"),
		CreatedAt: created,
	}
}

func TestAppendAndListByAccount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := testSale("s-1", 7, base)
	second := testSale("s-2", 7, base.Add(time.Hour))
	other := testSale("s-3", 8, base)

	for _, sale := range []domain.Sale{second, first, other} {
		if err := store.Append(ctx, sale); err != nil {
			t.Fatalf("Append(%s): %v", sale.ID, err)
		}
	}

	sales, err := store.ListByAccount(ctx, 7)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("sales = %d, want 2", len(sales))
	}
	// Oldest first.
	if sales[0].ID != "s-1" || sales[1].ID != "s-2" {
		t.Errorf("order = [%s %s], want [s-1 s-2]", sales[0].ID, sales[1].ID)
	}
	if got := sales[0].UnitPrice.String(); got != "999.99" {
		t.Errorf("unit price = %s, want 999.99", got)
	}
	if got := sales[0].Total().String(); got != "1999.98" {
		t.Errorf("total = %s, want 1999.98", got)
	}
	if !sales[0].CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", sales[0].CreatedAt, base)
	}
}

func TestAppendSameSaleTwiceFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sale := testSale("s-1", 7, time.Now().UTC())
	if err := store.Append(ctx, sale); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := store.Append(ctx, sale); err == nil {
		t.Fatal("second Append of same sale ID: want error, got nil")
	}
}

func TestListByAccountEmpty(t *testing.T) {
	store := openTestStore(t)

	sales, err := store.ListByAccount(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(sales) != 0 {
		t.Errorf("sales = %d, want 0", len(sales))
	}
}
