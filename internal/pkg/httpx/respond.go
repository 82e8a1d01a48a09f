// Package httpx holds the JSON plumbing shared by every service: response
// envelopes, request metadata middleware, and the router defaults.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON envelope returned on every non-2xx response.
// Error carries a stable machine-readable code; Message is for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
