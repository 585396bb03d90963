package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/errkind"
)

func TestGenerateReturnsTextAndUsageChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		_ = json.NewEncoder(w).Encode(wireResponse{
			Content: "generated test source",
			Usage: struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
				TotalTokens  int `json:"total_tokens"`
			}{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	chunks, err := c.Generate(context.Background(), GenerateInput{
		Model:    "test-model",
		Messages: []ConversationMessage{{Role: RoleUser, Content: "generate a test"}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	text, ok := chunks[0].(*TextChunk)
	require.True(t, ok)
	assert.Equal(t, "generated test source", text.Content)

	usage, ok := chunks[1].(*UsageChunk)
	require.True(t, ok)
	assert.Equal(t, 30, usage.TotalTokens)
}

func TestGenerateSurfacesMalformedResponseAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Generate(context.Background(), GenerateInput{Model: "m"})
	require.Error(t, err)
	kind, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.LLMMalformedResponse, kind)
}

func TestGenerateRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(wireResponse{Content: "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	chunks, err := c.Generate(context.Background(), GenerateInput{Model: "m"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, attempts, 2)
	text := chunks[0].(*TextChunk)
	assert.Equal(t, "ok", text.Content)
}

func TestGenerateIncludesThinkingChunkWhenPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireResponse{Content: "answer", Thought: "reasoning trace"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	chunks, err := c.Generate(context.Background(), GenerateInput{Model: "m"})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	thinking, ok := chunks[1].(*ThinkingChunk)
	require.True(t, ok)
	assert.Equal(t, "reasoning trace", thinking.Content)
}
