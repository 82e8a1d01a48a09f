// Package customer owns the customer accounts and their wallet balances.
// The wallet is the second resource the purchase workflow mutates; debits
// re-validate sufficiency here, inside the owning transaction, regardless of
// what the caller already checked.
package customer

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("customer: not found")
	ErrDuplicateUsername    = errors.New("customer: username already taken")
	ErrWrongPassword        = errors.New("customer: wrong username or password")
	ErrInsufficientFunds    = errors.New("customer: insufficient funds")
	ErrInvalidAmount        = errors.New("customer: amount must be positive")
	ErrInvalidGender        = errors.New("customer: invalid gender")
	ErrInvalidMaritalStatus = errors.New("customer: invalid marital status")
	ErrMissingField         = errors.New("customer: missing required field")
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

const (
	MaritalSingle   = "single"
	MaritalMarried  = "married"
	MaritalDivorced = "divorced"
	MaritalWidowed  = "widowed"
)

func validGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}

func validMaritalStatus(m string) bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return true
	}
	return false
}

// Customer is one account. PasswordHash never leaves the service.
type Customer struct {
	ID            int64
	FullName      string
	Username      string
	PasswordHash  string
	Gender        string
	MaritalStatus string
	Balance       decimal.Decimal
}

// Validate checks the registration invariants.
func (c Customer) Validate() error {
	if c.FullName == "" || c.Username == "" {
		return ErrMissingField
	}
	if !validGender(c.Gender) {
		return ErrInvalidGender
	}
	if !validMaritalStatus(c.MaritalStatus) {
		return ErrInvalidMaritalStatus
	}
	return nil
}
