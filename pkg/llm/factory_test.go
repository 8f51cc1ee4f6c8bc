package llm

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewGenerator_OpenAI(t *testing.T) {
	gen, err := NewGenerator(&Config{
		Provider: ProviderOpenAI,
		APIKey:   "key",
		Model:    "gpt-4o",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*OpenAIGenerator); !ok {
		t.Errorf("expected OpenAI generator, got %T", gen)
	}
	if gen.Model() != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", gen.Model())
	}
}

func TestNewGenerator_Anthropic(t *testing.T) {
	gen, err := NewGenerator(&Config{
		Provider: ProviderAnthropic,
		APIKey:   "key",
		Model:    "claude-sonnet-4-20250514",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*AnthropicGenerator); !ok {
		t.Errorf("expected Anthropic generator, got %T", gen)
	}
}

func TestNewGenerator_DefaultsToOpenAI(t *testing.T) {
	gen, err := NewGenerator(&Config{APIKey: "key", Model: "gpt-4o"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*OpenAIGenerator); !ok {
		t.Errorf("expected OpenAI generator, got %T", gen)
	}
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(&Config{Provider: "bedrock", APIKey: "key", Model: "m"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewFallbackGenerator(t *testing.T) {
	gen, err := NewFallbackGenerator(&Config{
		Provider:      ProviderOpenAI,
		APIKey:        "key",
		Model:         "gpt-4o",
		FallbackModel: "gpt-4o-mini",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Model() != "gpt-4o-mini" {
		t.Errorf("expected fallback model, got %s", gen.Model())
	}
}

func TestNewFallbackGenerator_NilWhenUnconfigured(t *testing.T) {
	gen, err := NewFallbackGenerator(&Config{
		Provider: ProviderOpenAI,
		APIKey:   "key",
		Model:    "gpt-4o",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen != nil {
		t.Errorf("expected nil generator without a fallback model, got %T", gen)
	}
}

func TestNewImageGenerator_DisabledWithoutKey(t *testing.T) {
	gen := NewImageGenerator(&Config{
		Provider: ProviderAnthropic,
		APIKey:   "anthropic-key",
	}, zap.NewNop())

	if _, err := gen.GenerateImage(context.Background(), "a product sketch"); err == nil {
		t.Error("expected the disabled generator to fail")
	}
}

func TestNewImageGenerator_SharesOpenAIKey(t *testing.T) {
	gen := NewImageGenerator(&Config{
		Provider: ProviderOpenAI,
		APIKey:   "openai-key",
	}, zap.NewNop())

	if _, ok := gen.(*OpenAIImageGenerator); !ok {
		t.Errorf("expected real image generator when the text provider key is OpenAI, got %T", gen)
	}
}

func TestNewImageGenerator_DedicatedKey(t *testing.T) {
	gen := NewImageGenerator(&Config{
		Provider:     ProviderAnthropic,
		APIKey:       "anthropic-key",
		OpenAIAPIKey: "openai-key",
	}, zap.NewNop())

	if _, ok := gen.(*OpenAIImageGenerator); !ok {
		t.Errorf("expected real image generator with a dedicated OpenAI key, got %T", gen)
	}
}
