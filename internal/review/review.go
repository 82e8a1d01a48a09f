// Package review owns product reviews: customer-submitted ratings with an
// admin moderation flag.
package review

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("review: not found")
	ErrInvalidRating = errors.New("review: rating must be between 1 and 5")
	ErrGoodNotFound  = errors.New("review: good not found")
)

// Review is one customer's review of one good. Flagged reviews stay stored
// but are hidden from the public listing until an admin clears the flag.
type Review struct {
	ID         int64
	GoodID     int64
	CustomerID int64
	Rating     int
	Comment    string
	Flagged    bool
	CreatedAt  time.Time
}

func (r Review) validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}
