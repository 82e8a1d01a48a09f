package logsvc

import (
	"encoding/json"
	"errors"
	"net/http"
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

// Handler handles incoming HTTP requests for the log service. Appends are
// open to the fleet; reading the log is for admins.
type Handler struct {
	store  *Store
	tokens Verifier
	clock  clock.Clock
}

func NewHandler(store *Store, tokens Verifier, clk clock.Clock) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		clock:  clk,
	}
}

// Routes mounts the handler on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/logs", h.Append)
	r.Get("/logs", h.List)
}

type appendRequest struct {
	Message string `json:"message"`
}

type entryDTO struct {
	LogID     int64  `json:"log_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func toDTO(e Entry) entryDTO {
	return entryDTO{
		LogID:     e.ID,
		Message:   e.Message,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Append writes one audit line, timestamped on arrival.
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	entry, err := h.store.Append(r.Context(), req.Message, h.clock.Now())
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			httpx.WriteError(w, http.StatusBadRequest, "message_required", "message is required")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toDTO(entry))
}

// List dumps the whole log, oldest first. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	credential, err := auth.FromRequest(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no credential supplied")
			return
		}
		httpx.WriteError(w, http.StatusForbidden, "invalid_credential", "malformed authorization header")
		return
	}
	principal, err := h.tokens.Verify(credential)
	if err != nil || principal.Kind != auth.KindAdmin {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin credential required")
		return
	}

	entries, err := h.store.List(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := make([]entryDTO, len(entries))
	for i, entry := range entries {
		out[i] = toDTO(entry)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
