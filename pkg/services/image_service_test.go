package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/llm"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

func newImageServiceFixture() (*llm.MockImageGenerator, ImageService) {
	logger := zap.NewNop()
	generator := llm.NewMockImageGenerator()
	svc := NewImageService(generator, llm.NewFanout(llm.DefaultFanoutConfig(), logger), logger)
	return generator, svc
}

func testIdeas() []models.ProductIdea {
	problemID := uuid.New()
	out := make([]models.ProductIdea, models.ProductIdeaCount)
	for i := range out {
		out[i] = models.ProductIdea{
			ID:                  uuid.New(),
			Idea:                fmt.Sprintf("Concept %d", i+1),
			DetailedExplanation: fmt.Sprintf("How concept %d works", i+1),
			ProblemID:           problemID,
		}
	}
	return out
}

func TestImageService_AttachImages_AllSucceed(t *testing.T) {
	generator, svc := newImageServiceFixture()
	ideas := testIdeas()

	out := svc.AttachImages(context.Background(), ideas, "urban mobility")
	require.Len(t, out, len(ideas))
	for i, idea := range out {
		assert.Equal(t, ideas[i].ID, idea.ID)
		require.NotNil(t, idea.ImageURL)
		assert.NotEmpty(t, *idea.ImageURL)
	}
	assert.Equal(t, len(ideas), generator.Calls())
}

func TestImageService_AttachImages_PartialFailure(t *testing.T) {
	generator, svc := newImageServiceFixture()
	ideas := testIdeas()
	generator.GenerateImageFunc = func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Concept 2") {
			return "", fmt.Errorf("rate limited")
		}
		return "https://img.example.com/ok.png", nil
	}

	out := svc.AttachImages(context.Background(), ideas, "urban mobility")
	require.Len(t, out, len(ideas))
	assert.NotNil(t, out[0].ImageURL)
	assert.Nil(t, out[1].ImageURL)
	assert.NotNil(t, out[2].ImageURL)
}

func TestImageService_AttachImages_Empty(t *testing.T) {
	generator, svc := newImageServiceFixture()

	out := svc.AttachImages(context.Background(), nil, "urban mobility")
	assert.Empty(t, out)
	assert.Zero(t, generator.Calls())
}

func TestImageService_AttachImages_DoesNotMutateInput(t *testing.T) {
	_, svc := newImageServiceFixture()
	ideas := testIdeas()

	out := svc.AttachImages(context.Background(), ideas, "urban mobility")
	require.NotNil(t, out[0].ImageURL)
	for _, idea := range ideas {
		assert.Nil(t, idea.ImageURL)
	}
}

func TestImageService_AttachImages_PromptCarriesIdeaAndDomain(t *testing.T) {
	generator, svc := newImageServiceFixture()
	ideas := testIdeas()[:1]

	svc.AttachImages(context.Background(), ideas, "urban mobility")
	require.Len(t, generator.ImagePrompts, 1)
	prompt := generator.ImagePrompts[0]
	assert.Contains(t, prompt, "Concept 1")
	assert.Contains(t, prompt, "How concept 1 works")
	assert.Contains(t, prompt, "urban mobility")
}

func TestImageService_GenerateImageURL_WithFeedback(t *testing.T) {
	generator, svc := newImageServiceFixture()
	idea := testIdeas()[0]
	generator.GenerateImageFunc = func(_ context.Context, prompt string) (string, error) {
		require.Contains(t, prompt, "warmer colors")
		return "https://img.example.com/warm.png", nil
	}

	url := svc.GenerateImageURL(context.Background(), idea, "urban mobility", "warmer colors")
	require.NotNil(t, url)
	assert.Equal(t, "https://img.example.com/warm.png", *url)
}

func TestImageService_GenerateImageURL_FailureReturnsNil(t *testing.T) {
	generator, svc := newImageServiceFixture()
	idea := testIdeas()[0]
	generator.GenerateImageFunc = func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("image backend down")
	}

	url := svc.GenerateImageURL(context.Background(), idea, "urban mobility", "")
	assert.Nil(t, url)
}
