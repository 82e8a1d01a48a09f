package review

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

// GoodDirectory checks that the reviewed good exists at the inventory
// service before a review is accepted.
type GoodDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// CustomerDirectory is the second authentication stage for customer tokens:
// a structurally valid token is only trusted if the customer still exists.
type CustomerDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditLog receives best-effort records of review mutations.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Handler handles incoming HTTP requests for the review service.
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
	r.Post("/reviews", h.Create)
	r.Get("/reviews/good/{goodID}", h.ListByGood)
	r.Put("/reviews/{id}", h.Update)
	r.Delete("/reviews/{id}", h.Delete)
	r.Post("/reviews/{id}/flag", h.Flag)
	r.Delete("/reviews/{id}/flag", h.Unflag)
}

type reviewDTO struct {
	ReviewID   int64  `json:"review_id"`
	GoodID     int64  `json:"good_id"`
	CustomerID int64  `json:"customer_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	Flagged    bool   `json:"flagged"`
	CreatedAt  string `json:"created_at"`
}

func toDTO(r Review) reviewDTO {
	return reviewDTO{
		ReviewID:   r.ID,
		GoodID:     r.GoodID,
		CustomerID: r.CustomerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		Flagged:    r.Flagged,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createRequest struct {
	GoodID  int64  `json:"good_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create submits a review. The author is the authenticated customer; the
// good must still exist at the inventory service.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	var req createRequest
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

	created, err := h.store.Create(r.Context(), Review{
		GoodID:     req.GoodID,
		CustomerID: principal.ID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		CreatedAt:  h.clock.Now(),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Customer %d reviewed good %d (%d stars)", principal.ID, req.GoodID, req.Rating)
	httpx.WriteJSON(w, http.StatusCreated, toDTO(created))
}

// ListByGood returns the public (unflagged) reviews of a good.
func (h *Handler) ListByGood(w http.ResponseWriter, r *http.Request) {
	goodID, err := strconv.ParseInt(chi.URLParam(r, "goodID"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", "good id must be an integer")
		return
	}

	reviews, err := h.store.ListByGood(r.Context(), goodID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := make([]reviewDTO, len(reviews))
	for i, review := range reviews {
		out[i] = toDTO(review)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type updateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Update lets the author revise their review.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if principal.Kind != auth.KindCustomer || principal.ID != existing.CustomerID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your review")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := h.store.Update(r.Context(), id, req.Rating, req.Comment); err != nil {
		writeStoreError(w, err)
		return
	}

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(updated))
}

// Delete removes a review: the author may retract it, an admin may moderate
// it away.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	owner := principal.Kind == auth.KindCustomer && principal.ID == existing.CustomerID
	if !owner && principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your review")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Review %d deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// Flag hides a review from the public listing. Admin only.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, true)
}

// Unflag restores a flagged review. Admin only.
func (h *Handler) Unflag(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, false)
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, flagged bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin credential required")
		return
	}

	if err := h.store.SetFlag(r.Context(), id, flagged); err != nil {
		writeStoreError(w, err)
		return
	}

	if flagged {
		h.auditf(r.Context(), "Review %d flagged by admin %d", id, principal.ID)
	} else {
		h.auditf(r.Context(), "Review %d unflagged by admin %d", id, principal.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireCustomer(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := h.authenticate(w, r)
	if !ok {
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
			httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "customer no longer exists")
			return auth.Principal{}, false
		}
	}
	return principal, true
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
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

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "review_not_found", "review not found")
	case errors.Is(err, ErrInvalidRating):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_rating", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
