package review

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    good_id      INTEGER NOT NULL,
    customer_id  INTEGER NOT NULL,
    rating       INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    comment      TEXT    NOT NULL DEFAULT '',
    flagged      INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_good_id ON reviews(good_id, created_at);
`

// Store is the SQLite-backed reviews table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the reviews database at the given path.
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

// Create inserts a new review.
func (s *Store) Create(ctx context.Context, r Review) (Review, error) {
	if err := r.validate(); err != nil {
		return Review{}, err
	}

	const q = `
		INSERT INTO reviews (good_id, customer_id, rating, comment, flagged, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`

	res, err := s.db.ExecContext(ctx, q, r.GoodID, r.CustomerID, r.Rating, r.Comment, sqlitedb.FormatTime(r.CreatedAt))
	if err != nil {
		return Review{}, fmt.Errorf("review: create: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return Review{}, fmt.Errorf("review: create: %w", err)
	}
	r.Flagged = false
	return r, nil
}

// GetByID returns one review, flagged or not.
func (s *Store) GetByID(ctx context.Context, id int64) (Review, error) {
	const q = `
		SELECT id, good_id, customer_id, rating, comment, flagged, created_at
		FROM   reviews WHERE id = ?`

	var r Review
	var created string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.GoodID, &r.CustomerID, &r.Rating, &r.Comment, &r.Flagged, &created)
	if err == sql.ErrNoRows {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, fmt.Errorf("review: get %d: %w", id, err)
	}

	r.CreatedAt, err = sqlitedb.ParseTime(created)
	if err != nil {
		return Review{}, err
	}
	return r, nil
}

// ListByGood returns the unflagged reviews of one good, newest first.
func (s *Store) ListByGood(ctx context.Context, goodID int64) ([]Review, error) {
	const q = `
		SELECT id, good_id, customer_id, rating, comment, flagged, created_at
		FROM   reviews
		WHERE  good_id = ? AND flagged = 0
		ORDER  BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, goodID)
	if err != nil {
		return nil, fmt.Errorf("review: list for good %d: %w", goodID, err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		var created string
		if err := rows.Scan(&r.ID, &r.GoodID, &r.CustomerID, &r.Rating, &r.Comment, &r.Flagged, &created); err != nil {
			return nil, fmt.Errorf("review: scan: %w", err)
		}
		r.CreatedAt, err = sqlitedb.ParseTime(created)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// Update replaces the rating and comment of an existing review.
func (s *Store) Update(ctx context.Context, id int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET rating = ?, comment = ? WHERE id = ?`, rating, comment, id)
	if err != nil {
		return fmt.Errorf("review: update %d: %w", id, err)
	}
	return requireRow(res, id)
}

// SetFlag sets or clears the moderation flag.
func (s *Store) SetFlag(ctx context.Context, id int64, flagged bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reviews SET flagged = ? WHERE id = ?`, flagged, id)
	if err != nil {
		return fmt.Errorf("review: flag %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Delete removes a review.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("review: delete %d: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review: %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
