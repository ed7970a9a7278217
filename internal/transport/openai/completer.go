package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/metrics"
)

// Completer generates answers through an OpenAI-compatible chat completions
// endpoint. Answers must be reproducible, so temperature is pinned to zero.
type Completer struct {
	client  *openai.Client
	timeout time.Duration
}

// CompleterConfig holds the completion provider settings. TimeoutSec bounds
// each completion call; zero means no deadline beyond the caller's context.
type CompleterConfig struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Completer{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

// Compile-time check: Completer implements domain.Completer.
var _ domain.Completer = (*Completer)(nil)

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		// Go gotcha: the field is tagged omitempty, so a literal 0 would be
		// dropped from the request and the provider default would apply.
		// The smallest positive float is indistinguishable from 0 here.
		Temperature: math.SmallestNonzeroFloat32,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(model, "error").Inc()
		return "", parseAPIError("completion", err, domain.ErrCompletionProvider)
	}
	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProvider)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}
