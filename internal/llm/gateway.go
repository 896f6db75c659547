// Package llm wraps the language-model provider behind a retrying gateway
// with a typed failure taxonomy.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3

	// rateLimitWait is deliberately longer than the generic backoff: when the
	// provider throttles, hammering it with exponential retries makes things
	// worse.
	rateLimitWait = 60 * time.Second
)

// ChatMessage is the gateway's provider-independent message shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator is the text-generation capability consumed by the orchestrator
// and the skill extractors.
type Generator interface {
	Generate(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error)
}

type Gateway struct {
	model      llms.Model
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// New builds a gateway over an OpenAI-compatible endpoint.
func New(baseURL, token, model string, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	m, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(m, logger, opts...), nil
}

// NewWithModel builds a gateway over an existing langchaingo model. Used by
// tests to inject fakes.
func NewWithModel(model llms.Model, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		model:      model,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		logger:     logger,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate calls the model, retrying transient failures with exponential
// backoff and jitter. Rate-limit responses wait a flat 60s instead. Each
// attempt is individually time-boxed; when all attempts are exhausted the
// last classified error is returned. Fatal errors are never retried.
func (g *Gateway) Generate(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.RandomizationFactor = 0.5
	bo.Reset()

	content := toProviderMessages(messages)

	var lastErr *ProviderError
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.model.GenerateContent(attemptCtx, content,
			llms.WithTemperature(temperature),
			llms.WithMaxTokens(maxTokens),
		)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = &ProviderError{Kind: KindTransient, Err: errors.New("empty response from provider")}
			} else {
				if attempt > 1 {
					g.logger.Info("llm call recovered after retries", zap.Int("attempt", attempt))
				}
				return resp.Choices[0].Content, nil
			}
		} else {
			lastErr = classify(err)
		}

		g.logger.Warn("llm call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.String("kind", lastErr.Kind.String()),
			zap.Error(lastErr.Err))

		if !lastErr.Retryable() || attempt == g.maxRetries {
			break
		}

		var wait time.Duration
		if lastErr.Kind == KindRateLimited {
			wait = rateLimitWait
		} else {
			wait = bo.NextBackOff()
		}
		if err := g.sleep(ctx, wait); err != nil {
			return "", &ProviderError{Kind: KindTimeout, Err: err}
		}
	}
	return "", lastErr
}

func toProviderMessages(messages []ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
