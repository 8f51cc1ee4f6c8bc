// Package llm provides generation-backend clients and the resilience
// machinery around them: the retrying invocation chain, streaming events,
// structured-output extraction, and concurrent fan-out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator is a Generator backed by the OpenAI chat completions API
// (or any OpenAI-compatible endpoint via BaseURL).
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewOpenAIGenerator creates an OpenAI-backed generator.
func NewOpenAIGenerator(cfg *Config, model string, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.temperatureOrDefault(),
		logger:      logger.Named("openai"),
	}, nil
}

// Model returns the model identifier.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// GenerateText implements Generator.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generation request",
		zap.String("model", g.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: g.temperature,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = g.model
		return "", classified
	}
	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeUnknown, "backend returned no choices", true, nil)
	}

	content := resp.Choices[0].Message.Content
	g.logger.Debug("generation response",
		zap.String("model", g.model),
		zap.Int("response_len", len(content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return content, nil
}

// StreamText implements Generator. Deltas are forwarded in arrival order
// with no buffering beyond the one chunk in flight.
func (g *OpenAIGenerator) StreamText(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: g.temperature,
		Stream:      true,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = g.model
		return "", classified
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			classified := ClassifyError(err)
			classified.Model = g.model
			return full.String(), classified
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	return full.String(), nil
}

// Ensure OpenAIGenerator implements Generator at compile time.
var _ Generator = (*OpenAIGenerator)(nil)
