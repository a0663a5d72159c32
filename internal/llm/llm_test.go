package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsExpectedRequestAndParsesResponse(t *testing.T) {
	var captured generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "suspicious burst from 10.0.0.5"})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL + "/api/generate", Model: "phi3"})
	out := client.Generate(context.Background(), "summarize last 24h")

	assert.Equal(t, "phi3", captured.Model)
	assert.Equal(t, "summarize last 24h", captured.Prompt)
	assert.False(t, captured.Stream)
	assert.Equal(t, "suspicious burst from 10.0.0.5", out)
}

func TestGenerateReturnsEmptyOnNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Model: "phi3"})
	out := client.Generate(context.Background(), "ping")

	assert.Empty(t, out)
}

func TestGenerateReturnsEmptyOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed immediately, connections will refuse

	client := New(Config{URL: srv.URL, Model: "phi3"})
	out := client.Generate(context.Background(), "ping")

	assert.Empty(t, out)
}

func TestGenerateReturnsEmptyOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Model: "phi3"})
	out := client.Generate(context.Background(), "ping")

	assert.Empty(t, out)
}

func TestDefaultConfigMatchesReferenceEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:11434/api/generate", cfg.URL)
	assert.Equal(t, "phi3", cfg.Model)
}
