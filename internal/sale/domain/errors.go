package domain

import "errors"

// The purchase failure taxonomy. Every failure a caller can observe maps to
// exactly one of these sentinels, so clients can branch on the kind without
// parsing messages.
var (
	// ErrUnauthenticated means no credential was presented at all.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredential means the credential was malformed or expired.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountNotFound means the credential decoded to an unknown account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrGoodNotFound means the requested good does not exist.
	ErrGoodNotFound = errors.New("good not found")
	// ErrOutOfStock means available count was below the requested quantity.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInsufficientFunds means the account balance cannot cover the purchase.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// The three mutation failures below may leave side effects behind;
	// the orchestrator compensates earlier steps before surfacing them.

	// ErrInventoryUpdateFailed means the stock decrement did not complete.
	ErrInventoryUpdateFailed = errors.New("inventory update failed")
	// ErrAccountDebitFailed means the balance debit did not complete.
	ErrAccountDebitFailed = errors.New("account debit failed")
	// ErrLedgerWriteFailed means the sale record could not be written.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)

// ErrInvalidQuantity is a request validation error, rejected before any
// resource access. It sits outside the purchase taxonomy above.
var ErrInvalidQuantity = errors.New("invalid quantity")
