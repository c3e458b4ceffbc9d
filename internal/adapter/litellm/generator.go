package litellm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/ReviewForge/internal/domain"
)

// GeneratorOptions are the completion parameters shared by every role.
type GeneratorOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator implements generation.Generator over a LiteLLM proxy.
type Generator struct {
	client *Client
	opts   GeneratorOptions
}

// NewGenerator creates a Generator.
func NewGenerator(client *Client, opts GeneratorOptions) *Generator {
	return &Generator{client: client, opts: opts}
}

// Generate sends instructions as the system message and input as the user message.
func (g *Generator) Generate(ctx context.Context, instructions, input string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: input},
		},
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	if blocked(resp.FinishReason) {
		return "", fmt.Errorf("%w: response blocked (finish reason: %s)", domain.ErrGenerationUnavailable, resp.FinishReason)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty response (finish reason: %s)", domain.ErrGenerationUnavailable, resp.FinishReason)
	}
	return resp.Content, nil
}

// blocked reports finish reasons that mean the content was suppressed.
func blocked(reason string) bool {
	switch strings.ToLower(reason) {
	case "content_filter", "safety", "recitation", "blocklist", "prohibited_content":
		return true
	}
	return false
}
