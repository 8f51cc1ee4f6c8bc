package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Default image settings used when the configuration leaves them blank.
const (
	DefaultImageModel = openai.CreateImageModelDallE3
	DefaultImageSize  = openai.CreateImageSize1792x1024
)

// OpenAIImageGenerator produces images through the OpenAI images API.
type OpenAIImageGenerator struct {
	client *openai.Client
	model  string
	size   string
	logger *zap.Logger
}

// NewOpenAIImageGenerator creates an image generator for the given key and
// model settings. Blank model or size fall back to defaults.
func NewOpenAIImageGenerator(apiKey, model, size string, logger *zap.Logger) *OpenAIImageGenerator {
	if model == "" {
		model = DefaultImageModel
	}
	if size == "" {
		size = DefaultImageSize
	}

	return &OpenAIImageGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		size:   size,
		logger: logger.Named("images"),
	}
}

// GenerateImage implements ImageGenerator. It returns the hosted URL of the
// generated image.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("image request",
		zap.String("model", g.model),
		zap.String("size", g.size),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = g.model
		return "", classified
	}

	if len(resp.Data) == 0 {
		return "", NewError(ErrorTypeUnknown, "image response contained no data", true, nil)
	}

	g.logger.Debug("image response",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)))

	return resp.Data[0].URL, nil
}

// disabledImageGenerator is installed when no OpenAI key is configured.
// Every call fails, which surfaces downstream as items without images.
type disabledImageGenerator struct{}

func (d *disabledImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("image generation is disabled: no OpenAI API key configured")
}

var (
	_ ImageGenerator = (*OpenAIImageGenerator)(nil)
	_ ImageGenerator = (*disabledImageGenerator)(nil)
)
