package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/llm"
	"github.com/zelta-inc/zelta-engine/pkg/metrics"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/prompts"
)

// ImageService produces prototype images for product ideas. Image
// generation is best-effort throughout: a failure yields a null image
// reference, never an error to the caller.
type ImageService interface {
	// AttachImages generates one image per idea concurrently and returns
	// the ideas with ImageURL populated where generation succeeded. The
	// returned slice is positionally aligned with the input.
	AttachImages(ctx context.Context, ideas []models.ProductIdea, problemDomain string) []models.ProductIdea

	// GenerateImageURL generates a single idea's image, optionally steering
	// the prompt with user feedback. Returns nil when generation fails.
	GenerateImageURL(ctx context.Context, idea models.ProductIdea, problemDomain, feedback string) *string
}

// imageService implements ImageService.
type imageService struct {
	generator llm.ImageGenerator
	fanout    *llm.Fanout
	logger    *zap.Logger
}

// NewImageService creates a new image service.
func NewImageService(generator llm.ImageGenerator, fanout *llm.Fanout, logger *zap.Logger) ImageService {
	return &imageService{
		generator: generator,
		fanout:    fanout,
		logger:    logger.Named("images"),
	}
}

// AttachImages generates images for all ideas concurrently.
func (s *imageService) AttachImages(ctx context.Context, ideas []models.ProductIdea, problemDomain string) []models.ProductIdea {
	if len(ideas) == 0 {
		return ideas
	}

	tasks := make([]llm.Task[string], len(ideas))
	for i, idea := range ideas {
		prompt := prompts.ProductImage(idea.Idea, idea.DetailedExplanation, problemDomain, "").Render()
		tasks[i] = llm.Task[string]{
			Name: fmt.Sprintf("idea-image-%s", idea.ID),
			Run: func(ctx context.Context) (string, error) {
				return s.generator.GenerateImage(ctx, prompt)
			},
		}
	}

	outcomes := llm.RunAll(ctx, s.fanout, tasks, func(settled, total int) {
		s.logger.Debug("Image generation progress",
			zap.Int("settled", settled),
			zap.Int("total", total))
	})

	out := make([]models.ProductIdea, len(ideas))
	copy(out, ideas)
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			metrics.RecordImageFailure()
			s.logger.Warn("Image generation failed for idea",
				zap.String("idea_id", ideas[i].ID.String()),
				zap.Error(outcome.Err))
			continue
		}
		url := outcome.Result
		out[i].ImageURL = &url
	}

	return out
}

// GenerateImageURL generates a single idea's image.
func (s *imageService) GenerateImageURL(ctx context.Context, idea models.ProductIdea, problemDomain, feedback string) *string {
	prompt := prompts.ProductImage(idea.Idea, idea.DetailedExplanation, problemDomain, feedback).Render()

	url, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		metrics.RecordImageFailure()
		s.logger.Warn("Image generation failed for idea",
			zap.String("idea_id", idea.ID.String()),
			zap.Error(err))
		return nil
	}

	return &url
}

// Ensure imageService implements ImageService at compile time.
var _ ImageService = (*imageService)(nil)
