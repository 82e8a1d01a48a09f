package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
	"github.com/storefront-labs/storefront/internal/sale/domain"
)

// Inventory talks to the inventory service. Mutations authenticate with the
// service-account token supplied at construction; it comes from
// configuration, never from a literal.
type Inventory struct {
	svcclient.Caller
}

func NewInventory(baseURL, serviceToken string) *Inventory {
	return &Inventory{Caller: svcclient.NewCaller(baseURL, serviceToken)}
}

type goodDTO struct {
	InventoryID int64  `json:"inventory_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

func (d goodDTO) toDomain() (domain.Good, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.Good{}, fmt.Errorf("parse good price %q: %w", d.Price, err)
	}
	return domain.Good{
		ID:          d.InventoryID,
		Name:        d.Name,
		Category:    d.Category,
		Price:       price,
		Description: d.Description,
		Count:       d.Count,
	}, nil
}

func (c *Inventory) GetByName(ctx context.Context, name string) (domain.Good, error) {
	var dto goodDTO
	err := c.Do(ctx, http.MethodGet, "/inventory/name/"+url.PathEscape(name), nil, &dto)
	if err != nil {
		if svcclient.StatusOf(err) == http.StatusNotFound {
			return domain.Good{}, domain.ErrGoodNotFound
		}
		return domain.Good{}, fmt.Errorf("%w: %w", domain.ErrGoodNotFound, err)
	}
	return dto.toDomain()
}

func (c *Inventory) GetByID(ctx context.Context, id int64) (domain.Good, error) {
	var dto goodDTO
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/inventory/%d", id), nil, &dto)
	if err != nil {
		if svcclient.StatusOf(err) == http.StatusNotFound {
			return domain.Good{}, domain.ErrGoodNotFound
		}
		return domain.Good{}, fmt.Errorf("%w: %w", domain.ErrGoodNotFound, err)
	}
	return dto.toDomain()
}

// List returns the catalog, for the goods browsing endpoints.
func (c *Inventory) List(ctx context.Context) ([]domain.Good, error) {
	var dtos []goodDTO
	if err := c.Do(ctx, http.MethodGet, "/inventory", nil, &dtos); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	goods := make([]domain.Good, 0, len(dtos))
	for _, dto := range dtos {
		good, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		goods = append(goods, good)
	}
	return goods, nil
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// Decrement asks the owner for an atomic conditional decrement. A conflict
// means another purchase consumed the stock first and maps to ErrOutOfStock;
// anything else, including a timeout, is ErrInventoryUpdateFailed.
func (c *Inventory) Decrement(ctx context.Context, id, quantity int64) error {
	err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/inventory/%d/decrement", id), quantityRequest{Quantity: quantity}, nil)
	if err != nil {
		if svcclient.StatusOf(err) == http.StatusConflict {
			return fmt.Errorf("%w: %w", domain.ErrOutOfStock, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInventoryUpdateFailed, err)
	}
	return nil
}

// Restock is the compensating action for Decrement.
func (c *Inventory) Restock(ctx context.Context, id, quantity int64) error {
	err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/inventory/%d/restock", id), quantityRequest{Quantity: quantity}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInventoryUpdateFailed, err)
	}
	return nil
}
