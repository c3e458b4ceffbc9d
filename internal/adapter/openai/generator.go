// Package openai implements the generation port over an OpenAI-compatible
// chat completions API using the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/resilience"
)

// Options configures a Generator.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Generator implements generation.Generator.
type Generator struct {
	client  openai.Client
	opts    Options
	breaker *resilience.Breaker
}

// NewGenerator creates a Generator. The SDK's own retries are disabled: each
// role call is attempted exactly once.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key missing; set openai.api_key or OPENAI_API_KEY")
	}
	if opts.Model == "" {
		return nil, errors.New("generation model is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Generator{client: openai.NewClient(reqOpts...), opts: opts}, nil
}

// SetBreaker attaches a circuit breaker to every completion call.
func (g *Generator) SetBreaker(b *resilience.Breaker) { g.breaker = b }

// Generate sends instructions as the system message and input as the user message.
func (g *Generator) Generate(ctx context.Context, instructions, input string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(input),
		},
		Temperature: openai.Float(g.opts.Temperature),
	}
	if g.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.opts.MaxTokens))
	}

	var resp *openai.ChatCompletion
	call := func(ctx context.Context) error {
		var err error
		resp, err = g.client.Chat.Completions.New(ctx, params)
		return err
	}
	var err error
	if g.breaker != nil {
		err = g.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("%w: openai completion: %w", domain.ErrGenerationUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: empty choices", domain.ErrGenerationUnavailable)
	}
	choice := resp.Choices[0]
	if reason := string(choice.FinishReason); reason == "content_filter" {
		return "", fmt.Errorf("%w: response blocked (finish reason: %s)", domain.ErrGenerationUnavailable, reason)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		if choice.Message.Refusal != "" {
			return "", fmt.Errorf("%w: model refused: %s", domain.ErrGenerationUnavailable, choice.Message.Refusal)
		}
		return "", fmt.Errorf("%w: empty response (finish reason: %s)", domain.ErrGenerationUnavailable, choice.FinishReason)
	}
	return choice.Message.Content, nil
}
