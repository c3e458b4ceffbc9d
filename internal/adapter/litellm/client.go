// Package litellm provides an HTTP client for the LiteLLM proxy's
// OpenAI-compatible chat completions API.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/ReviewForge/internal/resilience"
)

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request body of /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Usage reports token consumption of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the flattened first choice of a completion.
type ChatCompletionResponse struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

type completionBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage  `json:"usage"`
	Model string `json:"model"`
}

// ErrNoChoices is returned when a completion response carries no choices.
var ErrNoChoices = errors.New("completion returned no choices")

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("litellm API error %d: %s", e.Code, e.Body)
}

// Client talks to a LiteLLM proxy.
type Client struct {
	baseURL    string
	masterKey  string
	keySource  func() string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a LiteLLM client. Requests are bounded by their context
// only; completions of long documents routinely take minutes.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		masterKey:  masterKey,
		httpClient: &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetKeySource makes every request read the master key from fn, overriding
// the key given to NewClient.
func (c *Client) SetKeySource(fn func() string) {
	c.keySource = fn
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// ChatCompletion sends a chat completion request and returns the first choice.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var out completionBody
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &ChatCompletionResponse{
		Content:      out.Choices[0].Message.Content,
		FinishReason: out.Choices[0].FinishReason,
		Model:        out.Model,
		Usage:        out.Usage,
	}, nil
}

// Health checks if LiteLLM is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness", nil)
	return err == nil, err
}

func (c *Client) key() string {
	if c.keySource != nil {
		return c.keySource()
	}
	return c.masterKey
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if key := c.key(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 512)}
		}

		result = data
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
