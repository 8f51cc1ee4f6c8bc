package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/logging"
	"github.com/zelta-inc/zelta-engine/pkg/retry"
)

// ChainConfig tunes the invocation chain.
type ChainConfig struct {
	// Schedule drives single-shot retries: len(Schedule) attempts,
	// Schedule[k-1] waited after failed attempt k, nothing waited after
	// the last.
	Schedule []time.Duration
	// StreamRetryDelay is the pause before the non-streaming retry tiers
	// when a stream dies without producing output.
	StreamRetryDelay time.Duration
	JitterFactor     float64
}

// DefaultChainConfig returns the production retry policy.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Schedule: []time.Duration{
			5 * time.Second,
			10 * time.Second,
			15 * time.Second,
			20 * time.Second,
		},
		StreamRetryDelay: 2 * time.Second,
		JitterFactor:     0.1,
	}
}

// InvocationChain wraps generators with the retry and fallback policy used
// for stage generation. Single-shot calls retry the primary model on an
// escalating schedule. Streaming calls get one streaming attempt; if it fails
// before any output was produced, the chain falls back to non-streaming calls
// against the primary and then the fallback model.
type InvocationChain struct {
	primary  Generator
	fallback Generator // nil when no fallback model is configured
	cfg      ChainConfig
	logger   *zap.Logger
}

// NewInvocationChain creates a chain. fallback may be nil.
func NewInvocationChain(primary, fallback Generator, cfg ChainConfig, logger *zap.Logger) *InvocationChain {
	return &InvocationChain{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger.Named("chain"),
	}
}

// Model returns the primary model identifier.
func (c *InvocationChain) Model() string {
	return c.primary.Model()
}

// Invoke runs a single-shot generation against the primary model, retrying
// per the schedule. Attempt failures are logged; only the final one is
// returned. Errors classified as permanent abort the loop immediately.
func (c *InvocationChain) Invoke(ctx context.Context, prompt string) (string, error) {
	attempts := 0
	text, err := retry.DoWithResult(ctx, &retry.Config{
		Schedule:     c.cfg.Schedule,
		JitterFactor: c.cfg.JitterFactor,
		OnRetry: func(attempt int, attemptErr error, delay time.Duration) {
			c.logger.Warn("generation attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", len(c.cfg.Schedule)),
				zap.Duration("delay", delay),
				zap.String("model", c.primary.Model()),
				zap.String("error_type", string(GetErrorType(attemptErr))),
				zap.String("error", logging.SanitizeError(attemptErr)))
		},
	}, func() (string, error) {
		attempts++
		return c.primary.GenerateText(ctx, prompt)
	})
	if err != nil {
		c.logger.Error("generation failed",
			zap.Int("attempts", attempts),
			zap.String("model", c.primary.Model()),
			zap.String("error", logging.SanitizeError(err)))
		return "", err
	}

	return text, nil
}

// InvokeStream runs a streaming generation, forwarding each delta to onDelta
// in arrival order. If the stream fails before producing any output, the
// chain waits StreamRetryDelay and retries non-streaming against the primary
// model, then against the fallback model; a recovered result is delivered to
// onDelta as a single chunk. A stream that fails after output was already
// forwarded is not retried, since a silent model switch would splice two
// different answers together. The returned text has one pair of enclosing
// quotes stripped if present.
func (c *InvocationChain) InvokeStream(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	deltaSeen := false
	text, err := c.primary.StreamText(ctx, prompt, func(delta string) {
		deltaSeen = true
		if onDelta != nil {
			onDelta(delta)
		}
	})
	if err == nil {
		return StripEnclosingQuotes(text), nil
	}

	if deltaSeen {
		c.logger.Error("stream failed mid-response",
			zap.String("model", c.primary.Model()),
			zap.String("error", logging.SanitizeError(err)))
		return "", err
	}

	c.logger.Warn("stream failed before any output, retrying without streaming",
		zap.String("model", c.primary.Model()),
		zap.Duration("delay", c.cfg.StreamRetryDelay),
		zap.String("error", logging.SanitizeError(err)))

	select {
	case <-time.After(c.cfg.StreamRetryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	text, retryErr := c.primary.GenerateText(ctx, prompt)
	if retryErr == nil {
		return c.deliverRecovered(text, onDelta), nil
	}
	c.logger.Warn("non-streaming retry failed",
		zap.String("model", c.primary.Model()),
		zap.String("error", logging.SanitizeError(retryErr)))

	if c.fallback == nil {
		return "", retryErr
	}

	text, fallbackErr := c.fallback.GenerateText(ctx, prompt)
	if fallbackErr != nil {
		c.logger.Error("fallback model failed",
			zap.String("model", c.fallback.Model()),
			zap.String("error", logging.SanitizeError(fallbackErr)))
		return "", fallbackErr
	}

	c.logger.Info("recovered via fallback model",
		zap.String("model", c.fallback.Model()))
	return c.deliverRecovered(text, onDelta), nil
}

// deliverRecovered forwards a non-streamed result as one chunk.
func (c *InvocationChain) deliverRecovered(text string, onDelta func(delta string)) string {
	text = StripEnclosingQuotes(text)
	if onDelta != nil && text != "" {
		onDelta(text)
	}
	return text
}

// StripEnclosingQuotes trims whitespace and removes a single pair of
// enclosing double quotes, if the whole text is quoted. Some models wrap
// plain-text answers in JSON-string quoting even when told not to.
func StripEnclosingQuotes(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		return trimmed[1 : len(trimmed)-1]
	}
	return trimmed
}
