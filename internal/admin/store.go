package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    full_name      TEXT NOT NULL,
    username       TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL
);
`

// Store is the SQLite-backed admins table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the admins database at the given path.
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

// Create inserts a new admin.
func (s *Store) Create(ctx context.Context, a Admin) (Admin, error) {
	if err := a.validate(); err != nil {
		return Admin{}, err
	}

	const q = `INSERT INTO admins (full_name, username, password_hash) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, a.FullName, a.Username, a.PasswordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Admin{}, fmt.Errorf("%w: %q", ErrDuplicateUsername, a.Username)
		}
		return Admin{}, fmt.Errorf("admin: create: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return Admin{}, fmt.Errorf("admin: create: %w", err)
	}
	return a, nil
}

// GetByID returns one admin by id.
func (s *Store) GetByID(ctx context.Context, id int64) (Admin, error) {
	return s.get(ctx, "id = ?", id)
}

// GetByUsername returns one admin by unique username.
func (s *Store) GetByUsername(ctx context.Context, username string) (Admin, error) {
	return s.get(ctx, "username = ?", username)
}

func (s *Store) get(ctx context.Context, where string, arg any) (Admin, error) {
	q := `SELECT id, full_name, username, password_hash FROM admins WHERE ` + where

	var a Admin
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&a.ID, &a.FullName, &a.Username, &a.PasswordHash)
	if err == sql.ErrNoRows {
		return Admin{}, ErrNotFound
	}
	if err != nil {
		return Admin{}, fmt.Errorf("admin: get: %w", err)
	}
	return a, nil
}

// Delete removes an admin. Tokens already minted for it die at the
// existence check other services perform.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("admin: delete %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("admin: delete %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureBootstrap creates the initial admin if no account with that username
// exists yet. The credentials come from configuration, so a fresh deployment
// has a way in without any literal baked into the code.
func (s *Store) EnsureBootstrap(ctx context.Context, a Admin) error {
	_, err := s.GetByUsername(ctx, a.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = s.Create(ctx, a)
	return err
}
