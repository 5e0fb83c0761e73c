package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

type MirrorRequest struct {
	ProjectID     string             `json:"project_id"`
	Files         domain.FileMap     `json:"files"`
	RemoteRef     *pdomain.RemoteRef `json:"remote_ref,omitempty"`
	CommitMessage string             `json:"commit_message,omitempty"`
	AutoCreate    bool               `json:"auto_create,omitempty"`
}

type MirrorResult struct {
	OK        bool               `json:"ok"`
	RemoteRef *pdomain.RemoteRef `json:"remote_ref,omitempty"`
	Changed   bool               `json:"changed"`
	Error     string             `json:"error,omitempty"`
}

// MirrorCredentials enables OAuth2 client-credentials auth when ClientID is set.
type MirrorCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// MirrorClient reaches the remote source-control mirror.
type MirrorClient struct {
	baseURL string
	client  *http.Client
}

func NewMirrorClient(baseURL string, creds MirrorCredentials) *MirrorClient {
	client := &http.Client{Timeout: DefaultTimeout}
	if creds.ClientID != "" && creds.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL,
		}
		client = cc.Client(context.Background())
		client.Timeout = DefaultTimeout
	}
	return &MirrorClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// DryRun compares files against the remote without mutating it.
func (c *MirrorClient) DryRun(ctx context.Context, req MirrorRequest) (*MirrorResult, error) {
	return c.call(ctx, "dry_run", "/mirror/dry-run", req)
}

// Push writes files to the remote, creating the repository when AutoCreate is set.
func (c *MirrorClient) Push(ctx context.Context, req MirrorRequest) (*MirrorResult, error) {
	return c.call(ctx, "push", "/mirror/push", req)
}

func (c *MirrorClient) call(ctx context.Context, op, path string, req MirrorRequest) (*MirrorResult, error) {
	recordMirrorCall()
	resp, err := postJSON(ctx, c.client, "mirror", op, c.baseURL+path, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("mirror", resp)
	}
	var out MirrorResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mirror response: %w", err)
	}
	if !out.OK {
		msg := out.Error
		if msg == "" {
			msg = "mirror reported failure"
		}
		return &out, fmt.Errorf("mirror %s: %s", op, msg)
	}
	return &out, nil
}
