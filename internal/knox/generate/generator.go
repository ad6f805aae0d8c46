// Package generate talks to the local completion backend that turns
// masked project material into structured report JSON. The backend is
// an opaque collaborator: this package never inspects the prompt beyond
// transport concerns and never logs its content.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Request is one generation call. Mode mirrors the policy mode so a
// test-mode backend can pick the matching fixture.
type Request struct {
	Prompt      string
	Mode        string
	Temperature float64
	MaxTokens   int
}

// Generator produces raw completion text for a request. Implementations
// must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client calls a llama.cpp-style completion server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient returns a client for the completion endpoint at baseURL.
// The timeout bounds a single generation call end to end.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Generate posts the prompt to the completion endpoint and returns the
// raw completion text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(completionRequest{
		Prompt:      req.Prompt,
		NPredict:    maxTokens,
		Temperature: req.Temperature,
		// No newline stop sequences: the model writes multi-line JSON.
		Stop: []string{"</s>"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion backend returned status %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	c.logger.Debug("completion finished",
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_bytes", len(cr.Content)))
	return cr.Content, nil
}
