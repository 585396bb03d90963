package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"mutaforge/pkg/errkind"
)

// Embedder turns text into a dense vector. The only production
// implementation calls the configured LLM endpoint's embedding model;
// tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// httpEmbedder calls knowledge.embedding_model through the same LLM
// endpoint configuration as pkg/llm, retried with exponential backoff for
// up to three attempts total, per spec.md §4.1.
type httpEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPEmbedder constructs an Embedder against baseURL/model, reusing the
// llm.Config endpoint (same base_url/api_key as prompt generation).
func NewHTTPEmbedder(baseURL, apiKey, model string) Embedder {
	return &httpEmbedder{baseURL: baseURL, apiKey: apiKey, model: model, httpClient: &http.Client{}}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *httpEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, errkind.Wrap(errkind.EmbeddingFailed, "marshal embedding request", err)
	}

	var vec []float32
	op := func() error {
		v, err := e.doOnce(ctx, body)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *httpEmbedder) doOnce(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(errkind.Wrap(errkind.EmbeddingFailed, "build embedding request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.EmbeddingFailed, "embedding endpoint unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errkind.Wrap(errkind.EmbeddingFailed, "read embedding response body", err)
	}

	if resp.StatusCode >= 500 {
		return nil, errkind.New(errkind.EmbeddingFailed, fmt.Sprintf("embedding endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(errkind.New(errkind.EmbeddingFailed,
			fmt.Sprintf("embedding endpoint rejected request with %d: %s", resp.StatusCode, string(data))))
	}

	var er embedResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return nil, backoff.Permanent(errkind.Wrap(errkind.EmbeddingFailed, "parse embedding response", err))
	}
	if len(er.Embedding) == 0 {
		return nil, backoff.Permanent(errkind.New(errkind.EmbeddingFailed, "embedding response had an empty vector"))
	}
	return er.Embedding, nil
}
