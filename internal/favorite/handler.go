package favorite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
)

// Verifier checks the structural half of a bearer token.
type Verifier interface {
	Verify(credential string) (auth.Principal, error)
}

// GoodDirectory checks that a good exists before it is added to a list.
type GoodDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// CustomerDirectory is the second authentication stage for customer tokens.
type CustomerDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditLog receives best-effort records of list mutations.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Handler handles incoming HTTP requests for the favorite service. Every
// route acts on the authenticated customer's own lists.
type Handler struct {
	store     *Store
	tokens    Verifier
	goods     GoodDirectory
	customers CustomerDirectory
	audit     AuditLog // nil-safe
	clock     clock.Clock
}

func NewHandler(store *Store, tokens Verifier, goods GoodDirectory, customers CustomerDirectory, audit AuditLog, clk clock.Clock) *Handler {
	return &Handler{
		store:     store,
		tokens:    tokens,
		goods:     goods,
		customers: customers,
		audit:     audit,
		clock:     clk,
	}
}

// Routes mounts the handler on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/favorites", h.AddFavorite)
	r.Get("/favorites", h.ListFavorites)
	r.Delete("/favorites/{goodID}", h.RemoveFavorite)

	r.Post("/wishlist", h.AddWish)
	r.Get("/wishlist", h.ListWishes)
	r.Delete("/wishlist/{goodID}", h.RemoveWish)
}

type itemDTO struct {
	GoodID  int64  `json:"good_id"`
	AddedAt string `json:"added_at"`
}

func toDTO(item Item) itemDTO {
	return itemDTO{
		GoodID:  item.GoodID,
		AddedAt: item.AddedAt.UTC().Format(time.RFC3339),
	}
}

type addRequest struct {
	GoodID int64 `json:"good_id"`
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, "favorites", h.store.AddFavorite)
}

func (h *Handler) AddWish(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, "wishlist", h.store.AddWish)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, list string, add func(context.Context, Item) (Item, error)) {
	principal, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if h.goods != nil {
		exists, err := h.goods.Exists(r.Context(), req.GoodID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadGateway, "inventory_unavailable", err.Error())
			return
		}
		if !exists {
			httpx.WriteError(w, http.StatusNotFound, "good_not_found", "good not found")
			return
		}
	}

	item, err := add(r.Context(), Item{
		CustomerID: principal.ID,
		GoodID:     req.GoodID,
		AddedAt:    h.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			httpx.WriteError(w, http.StatusConflict, "already_favorited", err.Error())
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	h.auditf(r.Context(), "Customer %d added good %d to %s", principal.ID, item.GoodID, list)
	httpx.WriteJSON(w, http.StatusCreated, toDTO(item))
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, h.store.ListFavorites)
}

func (h *Handler) ListWishes(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, h.store.ListWishes)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request, list func(context.Context, int64) ([]Item, error)) {
	principal, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	items, err := list(r.Context(), principal.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := make([]itemDTO, len(items))
	for i, item := range items {
		out[i] = toDTO(item)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.removeItem(w, r, "favorites", h.store.RemoveFavorite)
}

func (h *Handler) RemoveWish(w http.ResponseWriter, r *http.Request) {
	h.removeItem(w, r, "wishlist", h.store.RemoveWish)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request, list string, remove func(context.Context, int64, int64) error) {
	principal, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}
	goodID, err := strconv.ParseInt(chi.URLParam(r, "goodID"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", "good id must be an integer")
		return
	}

	if err := remove(r.Context(), principal.ID, goodID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_listed", "good is not on the list")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	h.auditf(r.Context(), "Customer %d removed good %d from %s", principal.ID, goodID, list)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireCustomer(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	credential, err := auth.FromRequest(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no credential supplied")
		} else {
			httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "malformed authorization header")
		}
		return auth.Principal{}, false
	}
	principal, err := h.tokens.Verify(credential)
	if err != nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "credential is malformed or expired")
		return auth.Principal{}, false
	}
	if principal.Kind != auth.KindCustomer {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "customer credential required")
		return auth.Principal{}, false
	}
	if h.customers != nil {
		exists, err := h.customers.Exists(r.Context(), principal.ID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadGateway, "customer_lookup_failed", err.Error())
			return auth.Principal{}, false
		}
		if !exists {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "customer no longer exists")
			return auth.Principal{}, false
		}
	}
	return principal, true
}

func (h *Handler) auditf(ctx context.Context, format string, args ...any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Append(ctx, fmt.Sprintf(format, args...)); err != nil {
		slog.ErrorContext(ctx, "failed to write audit entry", "error", err)
	}
}
