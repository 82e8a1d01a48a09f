package httpapi

import (
	"encoding/json"
	"time"

	"github.com/storefront-labs/storefront/internal/sale/domain"
	"github.com/storefront-labs/storefront/internal/sale/journal"
)

type purchaseRequest struct {
	GoodName string `json:"good_name"`
	Quantity int64  `json:"quantity,omitempty"`
}

type saleResponse struct {
	SaleID    string `json:"sale_id"`
	GoodID    int64  `json:"good_id"`
	AccountID int64  `json:"account_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at"`
}

func mapSaleToResponse(sale domain.Sale) saleResponse {
	return saleResponse{
		SaleID:    sale.ID,
		GoodID:    sale.GoodID,
		AccountID: sale.AccountID,
		Quantity:  sale.Quantity,
		UnitPrice: sale.UnitPrice.String(),
		Total:     sale.Total().String(),
		CreatedAt: sale.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// attemptResponse is the operator view of one purchase attempt. The
// error_messages column is already a JSON array, so it passes through raw.
type attemptResponse struct {
	AttemptID   string          `json:"attempt_id"`
	Status      string          `json:"status"`
	CurrentStep string          `json:"current_step,omitempty"`
	Errors      json.RawMessage `json:"errors"`
	TraceID     string          `json:"trace_id,omitempty"`
	RecordedAt  string          `json:"recorded_at"`
}

func mapAttemptToResponse(entry *journal.Entry) attemptResponse {
	return attemptResponse{
		AttemptID:   entry.AttemptID,
		Status:      string(entry.Status),
		CurrentStep: entry.CurrentStep,
		Errors:      json.RawMessage(entry.ErrorMessages),
		TraceID:     entry.TraceID,
		RecordedAt:  entry.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// goodResponse exposes only what shoppers need; stock counts and internal
// fields stay with the inventory service.
type goodResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
}

func mapGoodToResponse(good domain.Good) goodResponse {
	return goodResponse{
		ID:       good.ID,
		Name:     good.Name,
		Category: good.Category,
		Price:    good.Price.String(),
	}
}

func mapGoodsToResponse(goods []domain.Good) []goodResponse {
	out := make([]goodResponse, len(goods))
	for i, good := range goods {
		out[i] = mapGoodToResponse(good)
	}
	return out
}
