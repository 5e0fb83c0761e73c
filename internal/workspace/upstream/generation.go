package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

// ResponseKind classifies a generation reply.
type ResponseKind string

const (
	KindMessage    ResponseKind = "message"
	KindPlan       ResponseKind = "plan"
	KindQuestion   ResponseKind = "question"
	KindCodeUpdate ResponseKind = "code_update"
)

// ParseKind maps a declared kind onto a known one.
func ParseKind(s string) (ResponseKind, bool) {
	switch k := ResponseKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMessage, KindPlan, KindQuestion, KindCodeUpdate:
		return k, true
	}
	return "", false
}

// Turn is one conversation entry sent to the generation service.
type Turn struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type GenerationRequest struct {
	Turns []Turn         `json:"turns"`
	Files domain.FileMap `json:"files"`
	Model string         `json:"model"`
}

type FileEdit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type GenerationResponse struct {
	Kind    ResponseKind  `json:"kind"`
	Content string        `json:"content"`
	Plan    *pdomain.Plan `json:"plan,omitempty"`
	Files   []FileEdit    `json:"files,omitempty"`
}

// wireResponse accepts both "kind" and "type" as the discriminator.
type wireResponse struct {
	Kind    string        `json:"kind"`
	Type    string        `json:"type"`
	Content string        `json:"content"`
	Message string        `json:"message"`
	Plan    *pdomain.Plan `json:"plan"`
	Files   []FileEdit    `json:"files"`
}

// DecodeResponse turns a raw reply into a GenerationResponse. ok is false when
// raw is not a JSON object with a known kind.
func DecodeResponse(raw []byte) (*GenerationResponse, bool) {
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}
	declared := w.Kind
	if declared == "" {
		declared = w.Type
	}
	kind, ok := ParseKind(declared)
	if !ok {
		return nil, false
	}
	content := w.Content
	if content == "" {
		content = w.Message
	}
	return &GenerationResponse{Kind: kind, Content: content, Plan: w.Plan, Files: w.Files}, true
}

// GenerationClient talks to the opaque text-generation service.
type GenerationClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGenerationClient creates a client limited to rps requests per second.
// A non-positive rps disables limiting.
func NewGenerationClient(baseURL string, rps float64, burst int) *GenerationClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &GenerationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: GenerationTimeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Generate issues exactly one request. A body that is not a recognised
// structured reply is returned as a message-kind response carrying the raw text.
func (c *GenerationClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	recordGenerationCall()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("generation rate limit: %w", err)
	}

	resp, err := postJSON(ctx, c.client, "generation", "generate", c.baseURL+"/generate", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("generation", resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}
	if out, ok := DecodeResponse(raw); ok {
		return out, nil
	}
	return &GenerationResponse{Kind: KindMessage, Content: string(raw)}, nil
}
