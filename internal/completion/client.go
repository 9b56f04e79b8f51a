// Package completion talks to an external chat-completion service.
// Responses are free text with no guaranteed schema conformance; callers
// must defensively parse.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message is one entry of an ordered conversation transcript.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request carries a transcript plus optional constraints.
type Request struct {
	Messages    []Message
	JSONOnly    bool    // ask the service for a JSON object response
	Temperature float64 // 0 means service default
}

// Client is the completion collaborator interface. Implementations block
// for a single response; cancellation comes from the context.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPClient calls an OpenAI-compatible /chat/completions endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// HTTPOpts holds parameters for creating an HTTPClient.
type HTTPOpts struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	APIKey  string
	Model   string
	Client  *http.Client // optional; defaults to a 60s-timeout client
}

// NewHTTP creates a completion client against an OpenAI-compatible API.
func NewHTTP(opts HTTPOpts) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("completion: base URL is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("completion: model is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		client:  client,
	}, nil
}

// Complete sends the transcript and returns the first choice's content.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	payload := map[string]interface{}{
		"model":    c.model,
		"messages": req.Messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.JSONOnly {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion: service error: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("completion: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}
