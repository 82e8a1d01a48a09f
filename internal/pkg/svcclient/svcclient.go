// Package svcclient holds the shared peer-service HTTP plumbing (Caller)
// and the small clients the resource services need: existence lookups
// against the owners of customers, admins, and goods, and the audit fanout
// to the log service.
//
// The sale orchestrator's richer clients embed Caller too and add their own
// mutation verbs and error mapping on top.
package svcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/storefront/internal/pkg/httpx"
)

const callTimeout = 5 * time.Second

// Caller is the shared request plumbing: base URL, instrumented transport,
// service credential, request ID propagation.
type Caller struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewCaller builds a caller for one peer service. serviceToken may be empty
// for peers that accept unauthenticated reads.
func NewCaller(baseURL, serviceToken string) Caller {
	return Caller{
		baseURL: baseURL,
		token:   serviceToken,
		http: &http.Client{
			Timeout:   callTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Do issues one JSON request. A non-nil out is decoded from 2xx bodies;
// non-2xx responses come back as *StatusError.
func (c Caller) Do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.HeaderXRequestID, httpx.RequestIDFromContext(ctx))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope httpx.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &StatusError{
			Status:  resp.StatusCode,
			Code:    envelope.Error,
			Message: envelope.Message,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// StatusError is a non-2xx response from a peer service.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("peer returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// StatusOf unpacks a *StatusError, returning 0 for transport-level failures
// that never produced a response.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// exists turns a GET into an existence check: 2xx is true, 404 is false,
// anything else is an error the caller has to surface.
func (c Caller) exists(ctx context.Context, path string) (bool, error) {
	err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err == nil {
		return true, nil
	}
	if StatusOf(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Customers checks customer existence against the customer service.
type Customers struct {
	Caller
}

func NewCustomers(baseURL, serviceToken string) *Customers {
	return &Customers{Caller: NewCaller(baseURL, serviceToken)}
}

func (c *Customers) Exists(ctx context.Context, id int64) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("/customers/%d", id))
}

// Admins checks admin existence against the admin service.
type Admins struct {
	Caller
}

func NewAdmins(baseURL, serviceToken string) *Admins {
	return &Admins{Caller: NewCaller(baseURL, serviceToken)}
}

func (c *Admins) Exists(ctx context.Context, id int64) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("/admins/%d", id))
}

// Goods checks good existence against the inventory service.
type Goods struct {
	Caller
}

func NewGoods(baseURL, serviceToken string) *Goods {
	return &Goods{Caller: NewCaller(baseURL, serviceToken)}
}

func (c *Goods) Exists(ctx context.Context, id int64) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("/inventory/%d", id))
}

// Logs appends audit entries to the log service. Callers treat failures as
// best effort.
type Logs struct {
	Caller
}

func NewLogs(baseURL string) *Logs {
	return &Logs{Caller: NewCaller(baseURL, "")}
}

func (c *Logs) Append(ctx context.Context, message string) error {
	body := struct {
		Message string `json:"message"`
	}{Message: message}
	if err := c.Do(ctx, http.MethodPost, "/logs", body, nil); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
