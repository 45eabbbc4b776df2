package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestLLMExtractor_CheckWorthiness(t *testing.T) {
	srv := chatServer(t, `{"is_worth_remembering": false, "reason": "generic greeting"}`)
	defer srv.Close()

	e := NewLLMExtractor(LLMConfig{BaseURL: srv.URL, APIKey: "k"}, nil)
	w, err := e.CheckWorthiness(context.Background(), "hey")
	require.NoError(t, err)
	assert.False(t, w.WorthRemembering)
	assert.Equal(t, "generic greeting", w.Reason)
}

func TestLLMExtractor_WorthinessDefaultsOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewLLMExtractor(LLMConfig{BaseURL: srv.URL}, nil)
	w, err := e.CheckWorthiness(context.Background(), "User's name is Sam")
	require.NoError(t, err)
	assert.True(t, w.WorthRemembering, "a broken triage backend must not drop input")
}

func TestLLMExtractor_Extract(t *testing.T) {
	srv := chatServer(t, `{"memories": [
		{"content": "User's name is Sam", "type": "fact", "confidence": 0.95, "tags": ["identity"]},
		"Sam loves morning runs"
	]}`)
	defer srv.Close()

	e := NewLLMExtractor(LLMConfig{BaseURL: srv.URL}, nil)
	drafts, err := e.Extract(context.Background(), "I'm Sam, I run every morning")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "fact", drafts[0].Type)
	assert.Equal(t, "Sam loves morning runs", drafts[1].Content)
}

func TestLLMExtractor_ExtractBareArray(t *testing.T) {
	srv := chatServer(t, `[{"content": "User knows Python", "type": "skill"}]`)
	defer srv.Close()

	e := NewLLMExtractor(LLMConfig{BaseURL: srv.URL}, nil)
	drafts, err := e.Extract(context.Background(), "I know Python")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "skill", drafts[0].Type)
}

func TestLLMExtractor_ExtractErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewLLMExtractor(LLMConfig{BaseURL: srv.URL}, nil)
	_, err := e.Extract(context.Background(), "anything")
	assert.Error(t, err)
}
