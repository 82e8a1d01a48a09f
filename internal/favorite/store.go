package favorite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

// Favorites carry a uniqueness constraint per (customer, good); the
// wishlist deliberately does not.
const schema = `
CREATE TABLE IF NOT EXISTS favorites (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id  INTEGER NOT NULL,
    good_id      INTEGER NOT NULL,
    added_at     TEXT    NOT NULL,
    UNIQUE (customer_id, good_id)
);

CREATE TABLE IF NOT EXISTS wishlist (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id  INTEGER NOT NULL,
    good_id      INTEGER NOT NULL,
    added_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_favorites_customer ON favorites(customer_id, added_at);
CREATE INDEX IF NOT EXISTS idx_wishlist_customer ON wishlist(customer_id, added_at);
`

// Store is the SQLite-backed favorites and wishlist tables.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a fresh in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sqlitedb.OpenMemory(schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddFavorite puts a good on the customer's favorites. Adding the same good
// twice fails.
func (s *Store) AddFavorite(ctx context.Context, item Item) (Item, error) {
	return s.add(ctx, "favorites", item)
}

// AddWish puts a good on the customer's wishlist.
func (s *Store) AddWish(ctx context.Context, item Item) (Item, error) {
	return s.add(ctx, "wishlist", item)
}

func (s *Store) add(ctx context.Context, table string, item Item) (Item, error) {
	q := `INSERT INTO ` + table + ` (customer_id, good_id, added_at) VALUES (?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q, item.CustomerID, item.GoodID, sqlitedb.FormatTime(item.AddedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Item{}, fmt.Errorf("%w: good %d", ErrDuplicate, item.GoodID)
		}
		return Item{}, fmt.Errorf("favorite: add to %s: %w", table, err)
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return Item{}, fmt.Errorf("favorite: add to %s: %w", table, err)
	}
	return item, nil
}

// ListFavorites returns the customer's favorites, oldest first.
func (s *Store) ListFavorites(ctx context.Context, customerID int64) ([]Item, error) {
	return s.list(ctx, "favorites", customerID)
}

// ListWishes returns the customer's wishlist, oldest first.
func (s *Store) ListWishes(ctx context.Context, customerID int64) ([]Item, error) {
	return s.list(ctx, "wishlist", customerID)
}

func (s *Store) list(ctx context.Context, table string, customerID int64) ([]Item, error) {
	q := `SELECT id, customer_id, good_id, added_at FROM ` + table +
		` WHERE customer_id = ? ORDER BY added_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("favorite: list %s: %w", table, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var added string
		if err := rows.Scan(&item.ID, &item.CustomerID, &item.GoodID, &added); err != nil {
			return nil, fmt.Errorf("favorite: scan %s: %w", table, err)
		}
		item.AddedAt, err = sqlitedb.ParseTime(added)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveFavorite takes a good off the customer's favorites.
func (s *Store) RemoveFavorite(ctx context.Context, customerID, goodID int64) error {
	return s.remove(ctx, "favorites", customerID, goodID)
}

// RemoveWish takes a good off the customer's wishlist. If the good was
// wished for more than once, every entry goes.
func (s *Store) RemoveWish(ctx context.Context, customerID, goodID int64) error {
	return s.remove(ctx, "wishlist", customerID, goodID)
}

func (s *Store) remove(ctx context.Context, table string, customerID, goodID int64) error {
	q := `DELETE FROM ` + table + ` WHERE customer_id = ? AND good_id = ?`

	res, err := s.db.ExecContext(ctx, q, customerID, goodID)
	if err != nil {
		return fmt.Errorf("favorite: remove from %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("favorite: remove from %s: %w", table, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
