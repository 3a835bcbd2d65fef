package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/bft-labs/preflight/internal/ports"
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Probe checks an HTTP readiness endpoint.
type Probe struct {
	client    ports.HTTPClient
	userAgent string
}

// NewProbe creates a probe. A nil client means http.DefaultClient.
func NewProbe(client ports.HTTPClient, version string) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return &Probe{
		client:    client,
		userAgent: "preflight/" + version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")",
	}
}

// Check issues GET url and returns nil on a 2xx response.
func (p *Probe) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
