package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
)

// TokenIssuer mints admin tokens on authentication and verifies incoming
// ones.
type TokenIssuer interface {
	Issue(principal auth.Principal) (string, error)
	Verify(credential string) (auth.Principal, error)
}

// AuditLog receives best-effort records of admin account changes.
type AuditLog interface {
	Append(ctx context.Context, message string) error
}

// Handler handles incoming HTTP requests for the admin service.
type Handler struct {
	store  *Store
	tokens TokenIssuer
	audit  AuditLog // nil-safe
}

func NewHandler(store *Store, tokens TokenIssuer, audit AuditLog) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		audit:  audit,
	}
}

// Routes mounts the handler on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/admins", h.Create)
	r.Post("/admins/authenticate", h.Authenticate)
	r.Get("/admins/{id}", h.GetByID)
	r.Delete("/admins/{id}", h.Delete)
}

type adminDTO struct {
	AdminID  int64  `json:"admin_id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

func toDTO(a Admin) adminDTO {
	return adminDTO{AdminID: a.ID, FullName: a.FullName, Username: a.Username}
}

type createRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Create adds a new admin. Only an existing admin may do this; the first
// account comes from the bootstrap configuration, not from this endpoint.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req createRequest
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

	created, err := h.store.Create(r.Context(), Admin{
		FullName:     req.FullName,
		Username:     req.Username,
		PasswordHash: string(hash),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.auditf(r.Context(), "Admin %s created", created.Username)
	httpx.WriteJSON(w, http.StatusCreated, toDTO(created))
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authenticateResponse struct {
	AdminID int64  `json:"admin_id"`
	Token   string `json:"token"`
}

// Authenticate checks the password and mints an admin bearer token.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	a, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "wrong_credentials", "wrong username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "wrong_credentials", "wrong username or password")
		return
	}

	token, err := h.tokens.Issue(auth.Principal{ID: a.ID, Kind: auth.KindAdmin})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authenticateResponse{AdminID: a.ID, Token: token})
}

// GetByID returns one admin. Peer services call this as the existence half
// of admin authentication, so service tokens are admitted alongside admins.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if principal.Kind != auth.KindAdmin && principal.Kind != auth.KindService {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin or service credential required")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(a))
}

// Delete removes an admin account.
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

	h.auditf(r.Context(), "Admin %d deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin admits admin principals that still exist in this store. This
// service owns the table, so the existence check is a local read.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := h.authenticate(w, r)
	if !ok {
		return false
	}
	if principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin credential required")
		return false
	}
	if _, err := h.store.GetByID(r.Context(), principal.ID); err != nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "admin no longer exists")
		return false
	}
	return true
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
		httpx.WriteError(w, http.StatusNotFound, "admin_not_found", "admin not found")
	case errors.Is(err, ErrDuplicateUsername):
		httpx.WriteError(w, http.StatusConflict, "duplicate_username", err.Error())
	case errors.Is(err, ErrMissingField):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_admin", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
