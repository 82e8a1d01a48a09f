// Package httpapi exposes the sale service over HTTP: the purchase endpoint,
// the goods browsing endpoints, and the caller's sale history.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/cache"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/sale/domain"
	"github.com/storefront-labs/storefront/internal/sale/journal"
	"github.com/storefront-labs/storefront/internal/sale/orchestrator"
)

// catalogTTL is deliberately short: the cache only serves the browsing
// endpoints, never the purchase path's validation read, so a little
// staleness is acceptable there and nowhere else.
const catalogTTL = 30 * time.Second

// Purchaser is the minimal interface the handler needs for purchases.
type Purchaser interface {
	Purchase(ctx context.Context, in orchestrator.PurchaseInput) (domain.Sale, error)
}

// SaleLister reads the caller's sale history from the ledger.
type SaleLister interface {
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Sale, error)
}

// CatalogReader is the browse-side view of the inventory service.
type CatalogReader interface {
	List(ctx context.Context) ([]domain.Good, error)
	GetByID(ctx context.Context, id int64) (domain.Good, error)
}

// AttemptReader reads the current state of a purchase attempt from the
// journal, for operators chasing a failed or stuck purchase.
type AttemptReader interface {
	GetLatest(ctx context.Context, attemptID string) (*journal.Entry, error)
}

// Handler handles incoming HTTP requests for the sale service.
type Handler struct {
	purchaser Purchaser
	inventory CatalogReader
	verifier  orchestrator.IdentityVerifier
	sales     SaleLister
	attempts  AttemptReader
	catalog   cache.Cache // nil-safe: caching skipped if nil
}

func NewHandler(
	purchaser Purchaser,
	inventory CatalogReader,
	verifier orchestrator.IdentityVerifier,
	sales SaleLister,
	attempts AttemptReader,
	catalog cache.Cache,
) *Handler {
	return &Handler{
		purchaser: purchaser,
		inventory: inventory,
		verifier:  verifier,
		sales:     sales,
		attempts:  attempts,
		catalog:   catalog,
	}
}

// Routes mounts the handler on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/purchase", h.Purchase)
	r.Get("/goods", h.ListGoods)
	r.Get("/goods/{id}", h.GetGood)
	r.Get("/sales", h.ListSales)
	r.Get("/attempts/{id}", h.GetAttempt)
}

// Purchase runs one purchase attempt for the bearer of the credential.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	credential, err := auth.FromRequest(r)
	if err != nil && !errors.Is(err, auth.ErrNoCredential) {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "malformed authorization header")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.GoodName == "" {
		httpx.WriteError(w, http.StatusBadRequest, "good_name_required", "good_name is required")
		return
	}
	if req.Quantity < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	sale, err := h.purchaser.Purchase(r.Context(), orchestrator.PurchaseInput{
		Credential: credential,
		GoodName:   req.GoodName,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writePurchaseError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mapSaleToResponse(sale))
}

// writePurchaseError maps the purchase failure taxonomy onto status codes.
// Every kind keeps a distinct machine-readable code.
func writePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no credential supplied")
	case errors.Is(err, domain.ErrInvalidCredential):
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "credential is malformed or expired")
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
	case errors.Is(err, domain.ErrAccountNotFound):
		httpx.WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrGoodNotFound):
		httpx.WriteError(w, http.StatusNotFound, "good_not_found", err.Error())
	case errors.Is(err, domain.ErrOutOfStock):
		httpx.WriteError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		httpx.WriteError(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, domain.ErrInventoryUpdateFailed):
		httpx.WriteError(w, http.StatusBadGateway, "inventory_update_failed", err.Error())
	case errors.Is(err, domain.ErrAccountDebitFailed):
		httpx.WriteError(w, http.StatusBadGateway, "account_debit_failed", err.Error())
	case errors.Is(err, domain.ErrLedgerWriteFailed):
		httpx.WriteError(w, http.StatusBadGateway, "ledger_write_failed", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// ListGoods proxies the catalog from the inventory service, with a short
// read-through cache in front.
func (h *Handler) ListGoods(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "catalog"
	if body, ok := h.cachedJSON(r.Context(), cacheKey); ok {
		writeRawJSON(w, body)
		return
	}

	goods, err := h.inventory.List(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "inventory_unavailable", err.Error())
		return
	}

	resp := mapGoodsToResponse(goods)
	h.storeJSON(r.Context(), cacheKey, resp)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetGood returns one catalog entry by id.
func (h *Handler) GetGood(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", "id must be an integer")
		return
	}

	cacheKey := "good:" + strconv.FormatInt(id, 10)
	if body, ok := h.cachedJSON(r.Context(), cacheKey); ok {
		writeRawJSON(w, body)
		return
	}

	good, err := h.inventory.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrGoodNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "good_not_found", "good not found")
			return
		}
		httpx.WriteError(w, http.StatusBadGateway, "inventory_unavailable", err.Error())
		return
	}

	resp := mapGoodToResponse(good)
	h.storeJSON(r.Context(), cacheKey, resp)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ListSales returns the authenticated customer's own purchase history.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	credential, err := auth.FromRequest(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no credential supplied")
			return
		}
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "malformed authorization header")
		return
	}
	principal, err := h.verifier.Verify(credential)
	if err != nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "credential is malformed or expired")
		return
	}

	sales, err := h.sales.ListByAccount(r.Context(), principal.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := make([]saleResponse, len(sales))
	for i, sale := range sales {
		out[i] = mapSaleToResponse(sale)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// GetAttempt returns the latest journal state of one purchase attempt.
// Admin only: the journal carries internals an operator needs during
// reconciliation, not shopper-facing data.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	credential, err := auth.FromRequest(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no credential supplied")
			return
		}
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "malformed authorization header")
		return
	}
	principal, err := h.verifier.Verify(credential)
	if err != nil || principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin credential required")
		return
	}

	entry, err := h.attempts.GetLatest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "attempt_not_found", "attempt not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapAttemptToResponse(entry))
}

func (h *Handler) cachedJSON(ctx context.Context, key string) ([]byte, bool) {
	if h.catalog == nil {
		return nil, false
	}
	cached, err := h.catalog.Get(ctx, h.catalog.GenerateKey("catalog", key))
	if err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
		return nil, false
	}
	if cached == "" {
		return nil, false
	}
	return []byte(cached), true
}

func (h *Handler) storeJSON(ctx context.Context, key string, v any) {
	if h.catalog == nil {
		return
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.catalog.Set(ctx, h.catalog.GenerateKey("catalog", key), string(encoded), catalogTTL); err != nil {
		slog.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
