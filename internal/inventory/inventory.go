// Package inventory owns the goods table: the catalog entries and their
// stock counts. Stock mutations are atomic conditional updates so concurrent
// purchases can never oversell.
package inventory

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: good not found")
	ErrNameRequired      = errors.New("inventory: name is required")
	ErrDuplicateName     = errors.New("inventory: good name already taken")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrInvalidCategory   = errors.New("inventory: invalid category")
	ErrInvalidPrice      = errors.New("inventory: price must not be negative")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be positive")
)

// Categories the catalog accepts.
const (
	CategoryFood        = "food"
	CategoryClothes     = "clothes"
	CategoryAccessories = "accessories"
	CategoryElectronics = "electronics"
)

// ValidCategory reports whether c is one of the accepted categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryFood, CategoryClothes, CategoryAccessories, CategoryElectronics:
		return true
	}
	return false
}

// Good is one catalog entry.
type Good struct {
	ID          int64
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Count       int64
}

// Validate checks the invariants a good must satisfy before it is stored.
func (g Good) Validate() error {
	if g.Name == "" {
		return ErrNameRequired
	}
	if !ValidCategory(g.Category) {
		return ErrInvalidCategory
	}
	if g.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if g.Count < 0 {
		return ErrInvalidQuantity
	}
	return nil
}
