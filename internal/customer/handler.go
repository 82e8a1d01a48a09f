package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
)

// TokenIssuer mints customer tokens on authentication and verifies incoming
// ones.
type TokenIssuer interface {
	Issue(principal auth.Principal) (string, error)
	Verify(credential string) (auth.Principal, error)
}

// AdminDirectory is the second authentication stage for admin tokens.
type AdminDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditLog receives best-effort records of account mutations.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Handler handles incoming HTTP requests for the customer service.
type Handler struct {
	store  *Store
	tokens TokenIssuer
	admins AdminDirectory
	audit  AuditLog // nil-safe
}

func NewHandler(store *Store, tokens TokenIssuer, admins AdminDirectory, audit AuditLog) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		admins: admins,
		audit:  audit,
	}
}

// Routes mounts the handler on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/customers", h.Register)
	r.Post("/customers/authenticate", h.Authenticate)

	r.Get("/customers/{id}", h.GetByID)
	r.Get("/customers/name/{username}", h.GetByName)
	r.Put("/customers/{id}", h.Update)
	r.Delete("/customers/{id}", h.Delete)

	r.Post("/customers/{id}/debit", h.Debit)
	r.Post("/customers/{id}/credit", h.Credit)
}

// customerDTO is the public view of an account. The password hash stays out.
type customerDTO struct {
	UserID        int64  `json:"user_id"`
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
	Balance       string `json:"balance"`
}

func toDTO(c Customer) customerDTO {
	return customerDTO{
		UserID:        c.ID,
		FullName:      c.FullName,
		Username:      c.Username,
		Gender:        c.Gender,
		MaritalStatus: c.MaritalStatus,
		Balance:       c.Balance.String(),
	}
}

type registerRequest struct {
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
}

// Register creates a new customer account. The wallet starts empty.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "password_required", "password is required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not hash password")
		return
	}

	created, err := h.store.Create(r.Context(), Customer{
		FullName:      req.FullName,
		Username:      req.Username,
		PasswordHash:  string(hash),
		Gender:        req.Gender,
		MaritalStatus: req.MaritalStatus,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Customer %s registered", created.Username)
	httpx.WriteJSON(w, http.StatusCreated, toDTO(created))
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authenticateResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// Authenticate checks the password and mints a bearer token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	c, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "wrong_credentials", "wrong username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "wrong_credentials", "wrong username or password")
		return
	}

	token, err := h.tokens.Issue(auth.Principal{ID: c.ID, Kind: auth.KindCustomer})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authenticateResponse{UserID: c.ID, Token: token})
}

// GetByID returns one account. Owners see themselves; admins and service
// accounts see anyone (the sale orchestrator reads wallets this way).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.requireSelfOrPrivileged(w, r, id) {
		return
	}

	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(c))
}

// GetByName looks an account up by username, under the same visibility rules
// as GetByID. Authentication runs before the lookup so unauthenticated
// callers cannot probe which usernames exist.
func (h *Handler) GetByName(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	c, err := h.store.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	switch {
	case principal.Kind == auth.KindService:
	case principal.Kind == auth.KindCustomer && principal.ID == c.ID:
	case principal.Kind == auth.KindAdmin:
		if !h.adminExists(w, r, principal) {
			return
		}
	default:
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your account")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(c))
}

type updateRequest struct {
	FullName      string `json:"full_name"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
}

// Update replaces the profile fields of an account.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.requireSelfOrAdmin(w, r, id) {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err := h.store.Update(r.Context(), Customer{
		ID:            id,
		FullName:      req.FullName,
		Gender:        req.Gender,
		MaritalStatus: req.MaritalStatus,
	})
	if err != nil {
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

// Delete removes an account.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.requireSelfOrAdmin(w, r, id) {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Customer %d deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Debit takes money out of the wallet. Only service accounts may call it;
// it exists for the purchase workflow, not for end users. Insufficiency is
// re-validated here inside the owning transaction and maps to a conflict.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if principal.Kind != auth.KindService {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "service credential required")
		return
	}

	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	if err := h.store.Debit(r.Context(), id, amount); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Credit adds money to the wallet: the customer's own top-up, or the
// compensating move of a failed purchase.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if principal.Kind != auth.KindService && !(principal.Kind == auth.KindCustomer && principal.ID == id) {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your wallet")
		return
	}

	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	if err := h.store.Credit(r.Context(), id, amount); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

func (h *Handler) requireSelfOrAdmin(w http.ResponseWriter, r *http.Request, id int64) bool {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return false
	}
	switch {
	case principal.Kind == auth.KindCustomer && principal.ID == id:
		return true
	case principal.Kind == auth.KindAdmin:
		return h.adminExists(w, r, principal)
	default:
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your account")
		return false
	}
}

func (h *Handler) requireSelfOrPrivileged(w http.ResponseWriter, r *http.Request, id int64) bool {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return false
	}
	switch {
	case principal.Kind == auth.KindService:
		return true
	case principal.Kind == auth.KindCustomer && principal.ID == id:
		return true
	case principal.Kind == auth.KindAdmin:
		return h.adminExists(w, r, principal)
	default:
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not your account")
		return false
	}
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

func decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_amount", "amount must be a positive decimal")
		return decimal.Decimal{}, false
	}
	return amount, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "customer_not_found", "customer not found")
	case errors.Is(err, ErrDuplicateUsername):
		httpx.WriteError(w, http.StatusConflict, "duplicate_username", err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		httpx.WriteError(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidGender),
		errors.Is(err, ErrInvalidMaritalStatus), errors.Is(err, ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_customer", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
