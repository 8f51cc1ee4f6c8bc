package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const anthropicMaxTokens = 4096

// AnthropicGenerator is a Generator backed by the Anthropic messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicGenerator creates an Anthropic-backed generator.
func NewAnthropicGenerator(cfg *Config, model string, logger *zap.Logger) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicGenerator{
		client: anthropic.NewClient(cfg.APIKey),
		model:  model,
		logger: logger.Named("anthropic"),
	}, nil
}

// Model returns the model identifier.
func (g *AnthropicGenerator) Model() string {
	return g.model
}

// GenerateText implements Generator.
func (g *AnthropicGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generation request",
		zap.String("model", g.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = g.model
		return "", classified
	}

	content := firstContentText(resp.Content)
	g.logger.Debug("generation response",
		zap.String("model", g.model),
		zap.Int("response_len", len(content)),
		zap.Duration("duration", time.Since(start)))

	return content, nil
}

// StreamText implements Generator.
func (g *AnthropicGenerator) StreamText(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	var full strings.Builder

	_, err := g.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
		MessagesRequest: anthropic.MessagesRequest{
			Model:     anthropic.Model(g.model),
			MaxTokens: anthropicMaxTokens,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(prompt),
			},
		},
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			delta := data.Delta.GetText()
			if delta == "" {
				return
			}
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = g.model
		return full.String(), classified
	}

	return full.String(), nil
}

// firstContentText returns the first text block of a messages response.
func firstContentText(blocks []anthropic.MessageContent) string {
	for _, block := range blocks {
		if block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

// Ensure AnthropicGenerator implements Generator at compile time.
var _ Generator = (*AnthropicGenerator)(nil)
