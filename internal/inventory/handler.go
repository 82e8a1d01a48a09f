package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
)

// Verifier checks the structural half of a bearer token.
type Verifier interface {
	Verify(credential string) (auth.Principal, error)
}

// AdminDirectory is the second authentication stage for admin tokens: a
// structurally valid token is only trusted if the admin it names still
// exists at the owning service.
type AdminDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditLog receives best-effort records of catalog mutations.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Handler handles incoming HTTP requests for the inventory service.
type Handler struct {
	store    *Store
	verifier Verifier
	admins   AdminDirectory
	audit    AuditLog // nil-safe
}

func NewHandler(store *Store, verifier Verifier, admins AdminDirectory, audit AuditLog) *Handler {
	return &Handler{
		store:    store,
		verifier: verifier,
		admins:   admins,
		audit:    audit,
	}
}

// Routes mounts the handler on a router. Reads are public; catalog writes
// require an admin; stock moves additionally accept service accounts, since
// the sale orchestrator drives them.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/inventory", h.List)
	r.Get("/inventory/{id}", h.GetByID)
	r.Get("/inventory/name/{name}", h.GetByName)

	r.Post("/inventory", h.Create)
	r.Put("/inventory/{id}", h.Update)
	r.Delete("/inventory/{id}", h.Delete)

	r.Post("/inventory/{id}/decrement", h.Decrement)
	r.Post("/inventory/{id}/restock", h.Restock)
}

type goodDTO struct {
	InventoryID int64  `json:"inventory_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

func toDTO(good Good) goodDTO {
	return goodDTO{
		InventoryID: good.ID,
		Name:        good.Name,
		Category:    good.Category,
		Price:       good.Price.String(),
		Description: good.Description,
		Count:       good.Count,
	}
}

type goodRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

func (req goodRequest) toGood() (Good, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return Good{}, fmt.Errorf("%w: %q", ErrInvalidPrice, req.Price)
	}
	return Good{
		Name:        req.Name,
		Category:    req.Category,
		Price:       price,
		Description: req.Description,
		Count:       req.Count,
	}, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	goods, err := h.store.List(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	out := make([]goodDTO, len(goods))
	for i, good := range goods {
		out[i] = toDTO(good)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	good, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(good))
}

func (h *Handler) GetByName(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}
	good, err := h.store.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(good))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req goodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	good, err := req.toGood()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_good", err.Error())
		return
	}

	created, err := h.store.Create(r.Context(), good)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Good %s added to inventory", created.Name)
	httpx.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req goodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	good, err := req.toGood()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_good", err.Error())
		return
	}
	good.ID = id

	if err := h.store.Update(r.Context(), good); err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Good %s updated in inventory", good.Name)
	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(updated))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Good %d removed from inventory", id)
	w.WriteHeader(http.StatusNoContent)
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// Decrement is the atomic conditional stock take the purchase workflow
// relies on. Insufficient stock is a conflict, not a server error: the
// request was well-formed, the state just no longer allows it.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	if !h.requireMutator(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quantity, ok := decodeQuantity(w, r)
	if !ok {
		return
	}

	if err := h.store.Decrement(r.Context(), id, quantity); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			httpx.WriteError(w, http.StatusConflict, "insufficient_stock", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restock undoes a decrement.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	if !h.requireMutator(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quantity, ok := decodeQuantity(w, r)
	if !ok {
		return
	}

	if err := h.store.Restock(r.Context(), id, quantity); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin admits admin principals only, with the two-stage check:
// structural verify, then existence at the admin service.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return false
	}
	if principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin credential required")
		return false
	}
	return h.adminExists(w, r, principal)
}

// requireMutator admits service accounts and (existing) admins.
func (h *Handler) requireMutator(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return false
	}
	switch principal.Kind {
	case auth.KindService:
		return true
	case auth.KindAdmin:
		return h.adminExists(w, r, principal)
	default:
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin or service credential required")
		return false
	}
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
	principal, err := h.verifier.Verify(credential)
	if err != nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "credential is malformed or expired")
		return auth.Principal{}, false
	}
	return principal, true
}

func (h *Handler) adminExists(w http.ResponseWriter, r *http.Request, principal auth.Principal) bool {
	if h.admins == nil {
		return true
	}
	exists, err := h.admins.Exists(r.Context(), principal.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "admin_lookup_failed", err.Error())
		return false
	}
	if !exists {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "admin no longer exists")
		return false
	}
	return true
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

func decodeQuantity(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return 0, false
	}
	if req.Quantity < 1 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return 0, false
	}
	return req.Quantity, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "good_not_found", "good not found")
	case errors.Is(err, ErrDuplicateName):
		httpx.WriteError(w, http.StatusConflict, "duplicate_name", err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrInvalidQuantity):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_good", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
