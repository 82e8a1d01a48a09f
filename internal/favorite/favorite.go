// Package favorite owns the two per-customer good lists: favorites, which
// reject duplicates, and the wishlist, which is a plain add/remove list.
package favorite

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("favorite: not found")
	ErrDuplicate = errors.New("favorite: good already in favorites")
)

// Item is one entry on either list.
type Item struct {
	ID         int64
	CustomerID int64
	GoodID     int64
	AddedAt    time.Time
}
