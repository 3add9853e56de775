// Package llm implements the completion backend for LLM actions on top of
// the Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/action"
)

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 4096

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no LLM API key configured")

// Claude completes prompts with Anthropic models.
type Claude struct {
	client anthropic.Client
	logger *zap.Logger
}

// NewClaude builds a client. Extra request options (base URL, retries) are
// passed through to the SDK.
func NewClaude(apiKey string, logger *zap.Logger, opts ...option.RequestOption) (*Claude, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Claude{client: anthropic.NewClient(opts...), logger: logger}, nil
}

// Complete sends one user message and returns the concatenated text blocks
// of the reply.
func (c *Claude) Complete(ctx context.Context, req action.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("completion returned no text")
	}

	c.logger.Info("completion finished",
		zap.String("model", req.Model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))
	return out.String(), nil
}
