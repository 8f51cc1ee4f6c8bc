package llm

import (
	"context"
	"sync"
)

// MockGenerator is a configurable mock for testing text generation.
// Set the function fields to control behavior in tests.
type MockGenerator struct {
	// GenerateTextFunc is called when GenerateText is invoked.
	// If nil, returns empty string and nil error.
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)

	// StreamTextFunc is called when StreamText is invoked.
	// If nil, returns empty string and nil error.
	StreamTextFunc func(ctx context.Context, prompt string, onDelta func(delta string)) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification
	GenerateTextCalls int
	StreamTextCalls   int
	Prompts           []string
}

// NewMockGenerator creates a new mock with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		ModelName: "mock-model",
	}
}

// Model implements Generator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// GenerateText implements Generator.
func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.GenerateTextCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt)
	}
	return "", nil
}

// StreamText implements Generator.
func (m *MockGenerator) StreamText(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	m.StreamTextCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.StreamTextFunc != nil {
		return m.StreamTextFunc(ctx, prompt, onDelta)
	}
	return "", nil
}

// Reset clears call tracking counters.
func (m *MockGenerator) Reset() {
	m.GenerateTextCalls = 0
	m.StreamTextCalls = 0
	m.Prompts = nil
}

// Ensure MockGenerator implements Generator at compile time.
var _ Generator = (*MockGenerator)(nil)

// MockImageGenerator is a configurable mock for testing image generation.
// Safe for concurrent use, since image calls fan out in parallel.
type MockImageGenerator struct {
	// GenerateImageFunc is called when GenerateImage is invoked.
	// If nil, returns "https://example.com/image.png" and nil error.
	GenerateImageFunc func(ctx context.Context, prompt string) (string, error)

	mu sync.Mutex

	// Call tracking for verification
	GenerateImageCalls int
	ImagePrompts       []string
}

// NewMockImageGenerator creates a new mock image generator.
func NewMockImageGenerator() *MockImageGenerator {
	return &MockImageGenerator{}
}

// GenerateImage implements ImageGenerator.
func (m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.GenerateImageCalls++
	m.ImagePrompts = append(m.ImagePrompts, prompt)
	m.mu.Unlock()

	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, prompt)
	}
	return "https://example.com/image.png", nil
}

// Calls reports how many times GenerateImage was invoked.
func (m *MockImageGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateImageCalls
}

// Reset clears call tracking.
func (m *MockImageGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageCalls = 0
	m.ImagePrompts = nil
}

// Ensure MockImageGenerator implements ImageGenerator at compile time.
var _ ImageGenerator = (*MockImageGenerator)(nil)
