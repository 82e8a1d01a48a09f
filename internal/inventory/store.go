package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS goods (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT    NOT NULL UNIQUE,
    category    TEXT    NOT NULL,
    price       TEXT    NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    count       INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_goods_category ON goods(category);
`

// Store is the SQLite-backed goods table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the goods database at the given path.
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

// Create inserts a new good and returns it with the assigned id.
func (s *Store) Create(ctx context.Context, good Good) (Good, error) {
	if err := good.Validate(); err != nil {
		return Good{}, err
	}

	const q = `
		INSERT INTO goods (name, category, price, description, count)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q, good.Name, good.Category, good.Price.String(), good.Description, good.Count)
	if err != nil {
		if isUniqueViolation(err) {
			return Good{}, fmt.Errorf("%w: %q", ErrDuplicateName, good.Name)
		}
		return Good{}, fmt.Errorf("inventory: create good: %w", err)
	}
	good.ID, err = res.LastInsertId()
	if err != nil {
		return Good{}, fmt.Errorf("inventory: create good: %w", err)
	}
	return good, nil
}

// GetByID returns one good by its id.
func (s *Store) GetByID(ctx context.Context, id int64) (Good, error) {
	return s.get(ctx, "id = ?", id)
}

// GetByName returns one good by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (Good, error) {
	return s.get(ctx, "name = ?", name)
}

func (s *Store) get(ctx context.Context, where string, arg any) (Good, error) {
	q := `SELECT id, name, category, price, description, count FROM goods WHERE ` + where

	var good Good
	var price string
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&good.ID, &good.Name, &good.Category, &price, &good.Description, &good.Count)
	if err == sql.ErrNoRows {
		return Good{}, ErrNotFound
	}
	if err != nil {
		return Good{}, fmt.Errorf("inventory: get good: %w", err)
	}

	good.Price, err = decimal.NewFromString(price)
	if err != nil {
		return Good{}, fmt.Errorf("inventory: parse price %q: %w", price, err)
	}
	return good, nil
}

// List returns the whole catalog ordered by name.
func (s *Store) List(ctx context.Context) ([]Good, error) {
	const q = `SELECT id, name, category, price, description, count FROM goods ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("inventory: list goods: %w", err)
	}
	defer rows.Close()

	var goods []Good
	for rows.Next() {
		var good Good
		var price string
		if err := rows.Scan(&good.ID, &good.Name, &good.Category, &price, &good.Description, &good.Count); err != nil {
			return nil, fmt.Errorf("inventory: scan good: %w", err)
		}
		good.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("inventory: parse price %q: %w", price, err)
		}
		goods = append(goods, good)
	}
	return goods, rows.Err()
}

// Update replaces the catalog fields of an existing good. The stock count is
// not touched here; it only moves through Decrement and Restock.
func (s *Store) Update(ctx context.Context, good Good) error {
	if err := good.Validate(); err != nil {
		return err
	}

	const q = `
		UPDATE goods
		SET    name = ?, category = ?, price = ?, description = ?
		WHERE  id = ?`

	res, err := s.db.ExecContext(ctx, q, good.Name, good.Category, good.Price.String(), good.Description, good.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, good.Name)
		}
		return fmt.Errorf("inventory: update good %d: %w", good.ID, err)
	}
	return requireRow(res, good.ID)
}

// Delete removes a good from the catalog.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("inventory: delete good %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Decrement atomically takes quantity units off the count, but only when
// enough stock remains. The guard lives inside the UPDATE itself, so two
// concurrent purchases can never both win the last unit.
func (s *Store) Decrement(ctx context.Context, id, quantity int64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	const q = `
		UPDATE goods
		SET    count = count - ?
		WHERE  id = ? AND count >= ?`

	res, err := s.db.ExecContext(ctx, q, quantity, id, quantity)
	if err != nil {
		return fmt.Errorf("inventory: decrement good %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: decrement good %d: %w", id, err)
	}
	if affected == 0 {
		// Either the good is gone or the stock ran out; distinguish so the
		// caller can report the right failure.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

// Restock adds quantity units back to the count. It is the compensating
// action for Decrement.
func (s *Store) Restock(ctx context.Context, id, quantity int64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	res, err := s.db.ExecContext(ctx, `UPDATE goods SET count = count + ? WHERE id = ?`, quantity, id)
	if err != nil {
		return fmt.Errorf("inventory: restock good %d: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: good %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
