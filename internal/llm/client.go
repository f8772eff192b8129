package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zombor/invoice-extractor/internal/logger"
)

// RetryPolicy bounds the attempts made for one extraction
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration // zero means the caller's deadline only
}

// DefaultRetryPolicy returns three attempts with jittered exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2,
		AttemptTimeout: 60 * time.Second,
	}
}

// Client calls a Model with bounded retry
type Client struct {
	model       Model
	policy      RetryPolicy
	temperature float64
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		c.policy = p
	}
}

// WithTemperature sets the decoding temperature
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithRateLimit caps model requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a Client for model
func NewClient(model Model, opts ...Option) *Client {
	c := &Client{
		model:       model,
		policy:      DefaultRetryPolicy(),
		temperature: 0.1,
		log:         logger.WithComponent("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract sends the prompt and optional image to the model and returns its
// raw reply. Failed attempts are retried after a jittered exponential pause;
// when all of them fail the error wraps ErrModelUnavailable. A blank reply is
// an answer, not a failure, and is returned as is.
func (c *Client) Extract(ctx context.Context, prompt string, image *Image) (string, error) {
	req := Request{Prompt: prompt, Image: image, Temperature: c.temperature}
	backoff := gax.Backoff{
		Initial:    c.policy.InitialDelay,
		Max:        c.policy.MaxDelay,
		Multiplier: c.policy.Multiplier,
	}

	c.log.Debug().
		Str("model", c.model.Name()).
		Int("prompt_length", len(prompt)).
		Bool("with_image", image != nil).
		Float64("temperature", c.temperature).
		Msg("Sending extraction request")

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
				return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
			}
		}

		text, err := c.attempt(ctx, req)
		if err == nil {
			c.log.Debug().
				Int("attempt", attempt).
				Int("response_length", len(text)).
				Msg("Received model response")
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrModelUnavailable, ctx.Err())
		}

		lastErr = err
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.policy.MaxAttempts).
			Msg("Model request failed")
	}

	return "", fmt.Errorf("%w: all %d attempts failed, last error: %w", ErrModelUnavailable, c.policy.MaxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	return c.model.Generate(ctx, req)
}
