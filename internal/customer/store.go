package customer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    full_name       TEXT NOT NULL,
    username        TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    gender          TEXT NOT NULL,
    marital_status  TEXT NOT NULL,
    balance         TEXT NOT NULL DEFAULT '0'
);
`

// Store is the SQLite-backed customers table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the customers database at the given path.
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

// Create inserts a new customer. The balance always starts at zero; money
// only enters through Credit.
func (s *Store) Create(ctx context.Context, c Customer) (Customer, error) {
	if err := c.Validate(); err != nil {
		return Customer{}, err
	}

	const q = `
		INSERT INTO customers (full_name, username, password_hash, gender, marital_status, balance)
		VALUES (?, ?, ?, ?, ?, '0')`

	res, err := s.db.ExecContext(ctx, q, c.FullName, c.Username, c.PasswordHash, c.Gender, c.MaritalStatus)
	if err != nil {
		if isUniqueViolation(err) {
			return Customer{}, fmt.Errorf("%w: %q", ErrDuplicateUsername, c.Username)
		}
		return Customer{}, fmt.Errorf("customer: create: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return Customer{}, fmt.Errorf("customer: create: %w", err)
	}
	c.Balance = decimal.Zero
	return c, nil
}

// GetByID returns one customer by id.
func (s *Store) GetByID(ctx context.Context, id int64) (Customer, error) {
	return s.get(ctx, "id = ?", id)
}

// GetByUsername returns one customer by unique username.
func (s *Store) GetByUsername(ctx context.Context, username string) (Customer, error) {
	return s.get(ctx, "username = ?", username)
}

func (s *Store) get(ctx context.Context, where string, arg any) (Customer, error) {
	q := `SELECT id, full_name, username, password_hash, gender, marital_status, balance
	      FROM customers WHERE ` + where

	var c Customer
	var balance string
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&c.ID, &c.FullName, &c.Username, &c.PasswordHash, &c.Gender, &c.MaritalStatus, &balance)
	if err == sql.ErrNoRows {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("customer: get: %w", err)
	}

	c.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return Customer{}, fmt.Errorf("customer: parse balance %q: %w", balance, err)
	}
	return c, nil
}

// Update replaces the profile fields. Username, password, and balance move
// through their own paths.
func (s *Store) Update(ctx context.Context, c Customer) error {
	if c.FullName == "" {
		return ErrMissingField
	}
	if !validGender(c.Gender) {
		return ErrInvalidGender
	}
	if !validMaritalStatus(c.MaritalStatus) {
		return ErrInvalidMaritalStatus
	}

	const q = `
		UPDATE customers
		SET    full_name = ?, gender = ?, marital_status = ?
		WHERE  id = ?`

	res, err := s.db.ExecContext(ctx, q, c.FullName, c.Gender, c.MaritalStatus, c.ID)
	if err != nil {
		return fmt.Errorf("customer: update %d: %w", c.ID, err)
	}
	return requireRow(res, c.ID)
}

// Delete removes a customer.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("customer: delete %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Debit subtracts amount from the wallet, failing with ErrInsufficientFunds
// when the balance does not cover it. The read, the check, and the write run
// in one transaction so a concurrent debit cannot overdraw.
func (s *Store) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	return s.move(ctx, id, amount, true)
}

// Credit adds amount to the wallet. It is both the top-up path and the
// compensating action for Debit.
func (s *Store) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	return s.move(ctx, id, amount, false)
}

func (s *Store) move(ctx context.Context, id int64, amount decimal.Decimal, debit bool) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("customer: begin wallet move: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT balance FROM customers WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("customer: read balance of %d: %w", id, err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("customer: parse balance %q: %w", raw, err)
	}

	if debit {
		if balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, needed %s", ErrInsufficientFunds, balance, amount)
		}
		balance = balance.Sub(amount)
	} else {
		balance = balance.Add(amount)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE customers SET balance = ? WHERE id = ?`, balance.String(), id); err != nil {
		return fmt.Errorf("customer: write balance of %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("customer: commit wallet move: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("customer: %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
