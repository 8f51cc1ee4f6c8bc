package llm

import "context"

// Generator is the minimal text-generation surface the stage pipeline
// consumes. Implementations wrap one provider/model pair; resilience
// (retries, fallback) lives in InvocationChain, not here.
type Generator interface {
	// Model returns the model identifier, for logging.
	Model() string

	// GenerateText runs a single non-streaming completion.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// StreamText runs a streaming completion, invoking onDelta for each
	// text fragment in arrival order, and returns the full accumulated
	// text. Deltas already delivered are not replayed on error.
	StreamText(ctx context.Context, prompt string, onDelta func(delta string)) (string, error)
}

// ImageGenerator produces one hosted image for a prompt. Failures are
// expected and tolerated by callers (per-item null artifacts), so
// implementations should fail fast rather than retry.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
