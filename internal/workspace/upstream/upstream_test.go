package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

func TestGenerationClient_CodeUpdate(t *testing.T) {
	ResetMetrics()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		var req GenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "standard", req.Model)
		assert.Len(t, req.Turns, 1)
		assert.Contains(t, req.Files, "src/app/page.tsx")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kind":"code_update","content":"done","files":[{"path":"src/app/page.tsx","content":"x"}]}`))
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, 0, 0)
	resp, err := client.Generate(context.Background(), GenerationRequest{
		Turns: []Turn{{Role: "user", Content: "Add a contact button"}},
		Files: domain.FileMap{"src/app/page.tsx": "old"},
		Model: "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, KindCodeUpdate, resp.Kind)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "src/app/page.tsx", resp.Files[0].Path)

	m := GetMetrics()
	assert.Equal(t, int64(1), m.Summary()["upstream_calls"])
	assert.Equal(t, int64(1), m.Summary()["generation_calls"])
}

func TestGenerationClient_UnstructuredBodyBecomesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Sure! Here is what I changed."))
	}))
	defer server.Close()

	resp, err := NewGenerationClient(server.URL, 0, 0).Generate(context.Background(), GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, KindMessage, resp.Kind)
	assert.Equal(t, "Sure! Here is what I changed.", resp.Content)
}

func TestGenerationClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewGenerationClient(server.URL, 0, 0).Generate(context.Background(), GenerationRequest{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "overloaded", se.Body)
}

func TestGenerationClient_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewGenerationClient(server.URL, 0, 0).Generate(ctx, GenerationRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeResponse(t *testing.T) {
	resp, ok := DecodeResponse([]byte(`{"type":"plan","message":"here","plan":{"summary":"s","features":["a"]}}`))
	require.True(t, ok)
	assert.Equal(t, KindPlan, resp.Kind)
	assert.Equal(t, "here", resp.Content)
	assert.Equal(t, "s", resp.Plan.Summary)

	_, ok = DecodeResponse([]byte(`{"kind":"essay"}`))
	assert.False(t, ok)
	_, ok = DecodeResponse([]byte(`not json`))
	assert.False(t, ok)
}

func TestBuildClient(t *testing.T) {
	t.Run("bundle", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/build", r.URL.Path)
			w.Write([]byte(`{"bundle":"console.log(1)"}`))
		}))
		defer server.Close()

		res, err := NewBuildClient(server.URL).Build(context.Background(), domain.FileMap{"a.ts": "1"})
		require.NoError(t, err)
		assert.Equal(t, "console.log(1)", res.Bundle)
		assert.Nil(t, res.Error)
	})

	t.Run("compile error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"file":"./src/app/page.tsx","line":3,"column":7,"message":"Unexpected token"}`))
		}))
		defer server.Close()

		res, err := NewBuildClient(server.URL).Build(context.Background(), domain.FileMap{})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, "src/app/page.tsx", res.Error.File)
		assert.Equal(t, "src/app/page.tsx:3:7: Unexpected token", res.Error.Error())
	})

	t.Run("service failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewBuildClient(server.URL).Build(context.Background(), domain.FileMap{})
		require.Error(t, err)
	})
}

func TestMirrorClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MirrorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch r.URL.Path {
		case "/mirror/dry-run":
			json.NewEncoder(w).Encode(MirrorResult{OK: true, Changed: len(req.Files) > 0})
		case "/mirror/push":
			if req.AutoCreate {
				json.NewEncoder(w).Encode(MirrorResult{OK: true, RemoteRef: &pdomain.RemoteRef{URL: "https://git.example/acme/site", Branch: "main"}})
				return
			}
			json.NewEncoder(w).Encode(MirrorResult{OK: false, Error: "no remote"})
		}
	}))
	defer server.Close()

	client := NewMirrorClient(server.URL, MirrorCredentials{})
	ctx := context.Background()

	dry, err := client.DryRun(ctx, MirrorRequest{ProjectID: "p", Files: domain.FileMap{"a": "1"}})
	require.NoError(t, err)
	assert.True(t, dry.Changed)

	pushed, err := client.Push(ctx, MirrorRequest{ProjectID: "p", AutoCreate: true})
	require.NoError(t, err)
	assert.Equal(t, "https://git.example/acme/site", pushed.RemoteRef.URL)

	_, err = client.Push(ctx, MirrorRequest{ProjectID: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no remote")
}

func TestMirrorClient_ClientCredentials(t *testing.T) {
	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
			return
		}
		sawAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true,"changed":false}`))
	}))
	defer server.Close()

	client := NewMirrorClient(server.URL, MirrorCredentials{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL + "/token"})
	_, err := client.DryRun(context.Background(), MirrorRequest{ProjectID: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", sawAuth)
}
