package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
)

// Audit appends human-readable entries to the log service. Callers treat
// failures as best effort; this client just reports them.
type Audit struct {
	svcclient.Caller
}

func NewAudit(baseURL string) *Audit {
	return &Audit{Caller: svcclient.NewCaller(baseURL, "")}
}

type logRequest struct {
	Message string `json:"message"`
}

func (c *Audit) Append(ctx context.Context, message string) error {
	if err := c.Do(ctx, http.MethodPost, "/logs", logRequest{Message: message}, nil); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
