package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/paperfeed/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client llms.Model
	logger *slog.Logger
}

// newCompleter is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client: client,
		logger: slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config)
}

// Complete sends prompt as a single human message and returns the trimmed response.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(0.0)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.client, prompt, opts...)
	if err != nil {
		err = mapError(err)
		if ai.IsRateLimited(err) {
			c.logger.Warn("completion rate limited", "err", err)
		} else {
			c.logger.Error("failed to generate completion", "err", err)
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}
