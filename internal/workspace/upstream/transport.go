package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bizconsole/console-backend/internal/logging"
)

// StatusError is returned when a service answers with an unexpected status.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// postJSON marshals body, posts it to url and returns the raw response. The
// caller owns resp.Body. Every call is counted in the upstream metrics.
func postJSON(ctx context.Context, client *http.Client, service, op, url string, body any) (*http.Response, error) {
	logger := logging.NewLogger(ctx).Named(service)
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		logger.LogError(op, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		logger.LogError(op, err)
		recordUpstreamCall(time.Since(start), err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rid := logging.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}

	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			logger.LogError(op, err)
		}
		recordUpstreamCall(duration, err)
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	if resp.StatusCode >= 500 {
		logger.LogWarnf(op, "upstream returned status %d", resp.StatusCode)
		recordUpstreamCall(duration, fmt.Errorf("status %d", resp.StatusCode))
	} else {
		recordUpstreamCall(duration, nil)
	}
	return resp, nil
}

func statusError(service string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Service: service, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
