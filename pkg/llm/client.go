// Package llm is the Go-side client for the LLM endpoint the Prompt Layer
// and Knowledge Base embedder call through (spec.md §4.1, §4.5, §6).
//
// Grounded on the teacher's pkg/agent/llm_client.go Chunk/ConversationMessage
// design, adapted from a streaming gRPC transport to a single-shot HTTP+JSON
// transport: this repo cannot run protoc, so the LLM boundary is a plain
// REST call instead of the teacher's generated gRPC stub.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mutaforge/pkg/errkind"
)

// Conversation message roles, unchanged from the teacher's convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is a single turn in the prompt sent to the LLM.
type ConversationMessage struct {
	Role    string
	Content string
}

// GenerateInput is one request to the LLM endpoint.
type GenerateInput struct {
	Model       string
	Messages    []ConversationMessage
	Temperature float64
}

// ChunkType identifies the kind of response chunk, trimmed to what
// mutaforge's prompt roles actually produce: no streaming tool-call or
// grounding chunks, since generation here is single-shot structured text.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeThinking ChunkType = "thinking"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// Chunk is one piece of an LLM response.
type Chunk interface {
	Type() ChunkType
}

// TextChunk carries the model's rendered output.
type TextChunk struct{ Content string }

// ThinkingChunk carries the model's internal reasoning, when the provider
// exposes it.
type ThinkingChunk struct{ Content string }

// UsageChunk reports token consumption for the call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals a provider-level error.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) Type() ChunkType     { return ChunkTypeText }
func (c *ThinkingChunk) Type() ChunkType { return ChunkTypeThinking }
func (c *UsageChunk) Type() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) Type() ChunkType    { return ChunkTypeError }

// Client is the Go-side interface for calling the LLM endpoint.
type Client interface {
	// Generate sends a conversation to the LLM and returns the response as
	// a fixed slice of chunks (this transport is single-shot, not
	// streaming — the Prompt Layer consumes the TextChunk(s) once
	// Generate returns).
	Generate(ctx context.Context, input GenerateInput) ([]Chunk, error)
}

// httpClient is the HTTP+JSON Client implementation.
type httpClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Client against baseURL (spec.md §6 llm.base_url),
// authenticating with apiKey when non-empty.
func New(baseURL, apiKey string) Client {
	return &httpClient{baseURL: baseURL, apiKey: apiKey, httpClient: &http.Client{}}
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	Content string `json:"content"`
	Thought string `json:"thought,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs one HTTP request, retrying transient failures with
// exponential backoff up to three attempts (spec.md §4.1 embedding-retry
// rule, applied uniformly to every LLM-endpoint caller).
func (c *httpClient) Generate(ctx context.Context, input GenerateInput) ([]Chunk, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	req := wireRequest{Model: input.Model, Temperature: input.Temperature}
	for _, m := range input.Messages {
		req.Messages = append(req.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.LLMMalformedResponse, "failed to marshal LLM request", err)
	}

	var resp wireResponse
	op := func() error {
		r, err := c.doOnce(ctx, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}

	chunks := []Chunk{&TextChunk{Content: resp.Content}}
	if resp.Thought != "" {
		chunks = append(chunks, &ThinkingChunk{Content: resp.Thought})
	}
	chunks = append(chunks, &UsageChunk{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	})
	return chunks, nil
}

func (c *httpClient) doOnce(ctx context.Context, body []byte) (wireResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return wireResponse{}, backoff.Permanent(errkind.Wrap(errkind.LLMUnreachable, "failed to build LLM request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wireResponse{}, errkind.Wrap(errkind.LLMUnreachable, "LLM endpoint unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wireResponse{}, errkind.Wrap(errkind.LLMUnreachable, "failed to read LLM response body", err)
	}

	if resp.StatusCode >= 500 {
		return wireResponse{}, errkind.New(errkind.LLMUnreachable, fmt.Sprintf("LLM endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return wireResponse{}, backoff.Permanent(errkind.New(errkind.LLMMalformedResponse,
			fmt.Sprintf("LLM endpoint rejected request with %d: %s", resp.StatusCode, string(data))))
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return wireResponse{}, backoff.Permanent(errkind.Wrap(errkind.LLMMalformedResponse, "failed to parse LLM response", err))
	}
	return wr, nil
}

// defaultTimeout bounds a single Generate call end-to-end, including
// retries, when the caller's context carries no deadline of its own.
const defaultTimeout = 2 * time.Minute
