package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
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

func seedGood(t *testing.T, store *Store, name string, count int64) Good {
	t.Helper()
	good, err := store.Create(context.Background(), Good{
		Name:        name,
		Category:    CategoryElectronics,
		Price:       decimal.RequireFromString("999.99"),
		Description: "a test good",
		Count:       count,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return good
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := seedGood(t, store, "Laptop", 10)
	if created.ID == 0 {
		t.Fatal("Create assigned no id")
	}

	byID, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Name != "Laptop" || byID.Count != 10 || byID.Price.String() != "999.99" {
		t.Errorf("GetByID = %+v", byID)
	}

	byName, err := store.GetByName(ctx, "Laptop")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("GetByName id = %d, want %d", byName.ID, created.ID)
	}
}

func TestCreateRejectsInvalidGoods(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		good Good
		want error
	}{
		{"empty name", Good{Category: CategoryFood, Price: decimal.New(1, 0)}, ErrNameRequired},
		{"bad category", Good{Name: "x", Category: "toys", Price: decimal.New(1, 0)}, ErrInvalidCategory},
		{"negative price", Good{Name: "x", Category: CategoryFood, Price: decimal.New(-1, 0)}, ErrInvalidPrice},
		{"negative count", Good{Name: "x", Category: CategoryFood, Price: decimal.New(1, 0), Count: -1}, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.good); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateDuplicateName(t *testing.T) {
	store := openTestStore(t)
	seedGood(t, store, "Laptop", 10)

	_, err := store.Create(context.Background(), Good{
		Name:     "Laptop",
		Category: CategoryElectronics,
		Price:    decimal.New(1, 0),
	})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestDecrementTakesStock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 10)

	if err := store.Decrement(ctx, good.ID, 3); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	after, err := store.GetByID(ctx, good.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Count != 7 {
		t.Errorf("count = %d, want 7", after.Count)
	}
}

func TestDecrementInsufficientStock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 2)

	err := store.Decrement(ctx, good.ID, 3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// The failed decrement left the count untouched.
	after, _ := store.GetByID(ctx, good.ID)
	if after.Count != 2 {
		t.Errorf("count = %d, want 2", after.Count)
	}
}

func TestDecrementUnknownGood(t *testing.T) {
	store := openTestStore(t)

	err := store.Decrement(context.Background(), 99, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 5)

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Decrement(ctx, good.ID, 1)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else if !errors.Is(err, ErrInsufficientStock) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 5 {
		t.Errorf("successful decrements = %d, want exactly 5", won)
	}

	after, _ := store.GetByID(ctx, good.ID)
	if after.Count != 0 {
		t.Errorf("final count = %d, want 0", after.Count)
	}
}

func TestRestockUndoesDecrement(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 10)

	if err := store.Decrement(ctx, good.ID, 4); err != nil {
		t.Fatal(err)
	}
	if err := store.Restock(ctx, good.ID, 4); err != nil {
		t.Fatalf("Restock: %v", err)
	}

	after, _ := store.GetByID(ctx, good.ID)
	if after.Count != 10 {
		t.Errorf("count = %d, want 10", after.Count)
	}
}

func TestUpdateDoesNotTouchCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 10)

	good.Name = "Laptop Pro"
	good.Price = decimal.RequireFromString("1299.99")
	good.Count = 0 // must be ignored
	if err := store.Update(ctx, good); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, _ := store.GetByID(ctx, good.ID)
	if after.Name != "Laptop Pro" || after.Price.String() != "1299.99" {
		t.Errorf("after update = %+v", after)
	}
	if after.Count != 10 {
		t.Errorf("count = %d, want 10 (updates must not move stock)", after.Count)
	}
}

func TestDeleteRemovesGood(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	good := seedGood(t, store, "Laptop", 10)

	if err := store.Delete(ctx, good.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetByID(ctx, good.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, good.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByName(t *testing.T) {
	store := openTestStore(t)
	seedGood(t, store, "Zucchini", 1)
	seedGood(t, store, "Apple", 1)

	goods, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(goods) != 2 || goods[0].Name != "Apple" || goods[1].Name != "Zucchini" {
		t.Errorf("goods = %+v", goods)
	}
}
