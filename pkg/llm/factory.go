package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Supported text generation providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const defaultTemperature = 0.7

// Config carries the settings needed to build generation clients.
type Config struct {
	// Provider selects the text backend (openai or anthropic).
	Provider string
	// APIKey authenticates against the selected text provider.
	APIKey string
	// OpenAIAPIKey authenticates image generation, which always runs
	// against OpenAI. Falls back to APIKey when the text provider is
	// already OpenAI.
	OpenAIAPIKey string
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string
	// Model is the primary text model.
	Model string
	// FallbackModel, when set, is tried after the primary model fails a
	// streaming request before any output was produced.
	FallbackModel string
	// ImageModel and ImageSize configure image generation.
	ImageModel string
	ImageSize  string
	// Temperature applies to OpenAI chat completions. Zero means default.
	Temperature float32
}

func (c *Config) temperatureOrDefault() float32 {
	if c.Temperature <= 0 {
		return defaultTemperature
	}
	return c.Temperature
}

// imageAPIKey resolves the key used for image generation.
func (c *Config) imageAPIKey() string {
	if c.OpenAIAPIKey != "" {
		return c.OpenAIAPIKey
	}
	if strings.EqualFold(c.Provider, ProviderOpenAI) {
		return c.APIKey
	}
	return ""
}

// NewGenerator creates the primary text generator for the configured provider.
func NewGenerator(cfg *Config, logger *zap.Logger) (Generator, error) {
	return newGeneratorForModel(cfg, cfg.Model, logger)
}

// NewFallbackGenerator creates the fallback text generator, or returns nil
// when no fallback model is configured.
func NewFallbackGenerator(cfg *Config, logger *zap.Logger) (Generator, error) {
	if cfg.FallbackModel == "" {
		return nil, nil
	}
	return newGeneratorForModel(cfg, cfg.FallbackModel, logger)
}

func newGeneratorForModel(cfg *Config, model string, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg, model, logger)
	case ProviderOpenAI, "":
		return NewOpenAIGenerator(cfg, model, logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewImageGenerator creates the image generator. When no OpenAI key is
// available it returns a disabled generator whose calls fail, which the
// fan-out layer records as missing images rather than batch failures.
func NewImageGenerator(cfg *Config, logger *zap.Logger) ImageGenerator {
	key := cfg.imageAPIKey()
	if key == "" {
		logger.Warn("image generation disabled, no OpenAI API key configured")
		return &disabledImageGenerator{}
	}
	return NewOpenAIImageGenerator(key, cfg.ImageModel, cfg.ImageSize, logger)
}
