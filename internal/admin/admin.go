// Package admin owns the administrator accounts. Other services treat this
// service as the second authentication stage for admin tokens: a token is
// only trusted if the admin it names still exists here.
package admin

import "errors"

var (
	ErrNotFound          = errors.New("admin: not found")
	ErrDuplicateUsername = errors.New("admin: username already taken")
	ErrMissingField      = errors.New("admin: missing required field")
)

// Admin is one administrator account.
type Admin struct {
	ID           int64
	FullName     string
	Username     string
	PasswordHash string
}

func (a Admin) validate() error {
	if a.FullName == "" || a.Username == "" {
		return ErrMissingField
	}
	return nil
}
