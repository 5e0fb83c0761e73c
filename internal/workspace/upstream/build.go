package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

// BuildError is a compile failure attributed to one file.
type BuildError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e *BuildError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// BuildResult carries either a renderable bundle or a structured error.
type BuildResult struct {
	Bundle string      `json:"bundle,omitempty"`
	Error  *BuildError `json:"error,omitempty"`
}

// BuildClient requests compiled bundles from the build service.
type BuildClient struct {
	baseURL string
	client  *http.Client
}

func NewBuildClient(baseURL string) *BuildClient {
	return &BuildClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: BuildTimeout},
	}
}

// Build compiles files. A 422 answer is a compile error and is returned in the
// result, not as err; err is reserved for transport and service failures.
func (c *BuildClient) Build(ctx context.Context, files domain.FileMap) (*BuildResult, error) {
	recordBuildCall()
	resp, err := postJSON(ctx, c.client, "build", "build", c.baseURL+"/build", map[string]any{"files": files})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Bundle string `json:"bundle"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode build response: %w", err)
		}
		return &BuildResult{Bundle: out.Bundle}, nil
	case http.StatusUnprocessableEntity:
		var be BuildError
		if err := json.NewDecoder(resp.Body).Decode(&be); err != nil {
			return nil, fmt.Errorf("decode build error: %w", err)
		}
		be.File = domain.NormalizePath(be.File)
		return &BuildResult{Error: &be}, nil
	default:
		return nil, statusError("build", resp)
	}
}
