// Package ledger persists the sale records the sale service owns. Records
// are append-only: nothing updates or deletes a sale once written.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
	"github.com/storefront-labs/storefront/internal/sale/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sales (
    sale_id     TEXT PRIMARY KEY,
    good_id     INTEGER NOT NULL,
    account_id  INTEGER NOT NULL,
    quantity    INTEGER NOT NULL,
    unit_price  TEXT    NOT NULL,
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_account_id ON sales(account_id, created_at);
`

// Store is the SQLite-backed sale ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at the given path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a fresh in-memory ledger, used by tests.
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

// Append writes one sale record. The primary key makes a replayed append of
// the same sale ID fail rather than double-record.
func (s *Store) Append(ctx context.Context, sale domain.Sale) error {
	const q = `
		INSERT INTO sales (sale_id, good_id, account_id, quantity, unit_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		sale.ID,
		sale.GoodID,
		sale.AccountID,
		sale.Quantity,
		sale.UnitPrice.String(),
		sqlitedb.FormatTime(sale.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("ledger: append sale %q: %w", sale.ID, err)
	}
	return nil
}

// ListByAccount returns all sales recorded for one account, oldest first.
func (s *Store) ListByAccount(ctx context.Context, accountID int64) ([]domain.Sale, error) {
	const q = `
		SELECT sale_id, good_id, account_id, quantity, unit_price, created_at
		FROM   sales
		WHERE  account_id = ?
		ORDER  BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list sales for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func scanSale(rows *sql.Rows) (domain.Sale, error) {
	var sale domain.Sale
	var unitPrice, createdAt string
	if err := rows.Scan(&sale.ID, &sale.GoodID, &sale.AccountID, &sale.Quantity, &unitPrice, &createdAt); err != nil {
		return domain.Sale{}, fmt.Errorf("ledger: scan sale: %w", err)
	}

	price, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("ledger: parse unit price %q: %w", unitPrice, err)
	}
	sale.UnitPrice = price

	sale.CreatedAt, err = sqlitedb.ParseTime(createdAt)
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}
