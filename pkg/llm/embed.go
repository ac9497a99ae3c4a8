package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/resilience"
)

// Embedder produces embedding vectors for query texts. The catalog search
// layer depends on this interface; the pipeline core never touches it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ollamaEmbedder implements Embedder against the Ollama embeddings endpoint.
type ollamaEmbedder struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewOllamaEmbedder creates an embedding client backed by Ollama.
func NewOllamaEmbedder(cfg config.EmbedConfig) Embedder {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ollamaEmbedder{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "embed: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "embed: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("embed: endpoint returned %d: %s", resp.StatusCode, payload)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "embed: decode response")
	}
	if len(out.Embedding) == 0 {
		return nil, eris.New("embed: empty embedding in response")
	}
	return out.Embedding, nil
}
