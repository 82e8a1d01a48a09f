package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
	"github.com/storefront-labs/storefront/internal/sale/domain"
)

// Accounts talks to the customer service that owns wallet balances.
type Accounts struct {
	svcclient.Caller
}

func NewAccounts(baseURL, serviceToken string) *Accounts {
	return &Accounts{Caller: svcclient.NewCaller(baseURL, serviceToken)}
}

type accountDTO struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

func (c *Accounts) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	var dto accountDTO
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d", id), nil, &dto)
	if err != nil {
		if svcclient.StatusOf(err) == http.StatusNotFound {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("%w: %w", domain.ErrAccountNotFound, err)
	}

	balance, err := decimal.NewFromString(dto.Balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parse account balance %q: %w", dto.Balance, err)
	}
	return domain.Account{
		ID:       dto.UserID,
		FullName: dto.FullName,
		Username: dto.Username,
		Balance:  balance,
	}, nil
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Debit requests an atomic debit. The owner re-validates sufficiency before
// applying; a conflict means the snapshot this purchase validated against
// went stale and maps to ErrInsufficientFunds. Anything else, including a
// timeout, is ErrAccountDebitFailed.
func (c *Accounts) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/customers/%d/debit", id), amountRequest{Amount: amount.String()}, nil)
	if err != nil {
		if svcclient.StatusOf(err) == http.StatusConflict {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrAccountDebitFailed, err)
	}
	return nil
}

// Credit is the compensating action for Debit.
func (c *Accounts) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/customers/%d/credit", id), amountRequest{Amount: amount.String()}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAccountDebitFailed, err)
	}
	return nil
}
