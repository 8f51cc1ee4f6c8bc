package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/repositories"
)

// DocumentService defines the interface for document operations.
// The service only ever handles extracted plain text; parsing uploaded
// files into text happens upstream.
type DocumentService interface {
	// Submit stores document text for a project and records it as the
	// project's analysis source. Returns the stage 1 record.
	Submit(ctx context.Context, projectID uuid.UUID, ownerID, filename, content string) (*models.Stage, error)

	// GetText returns the stored text of a document.
	GetText(ctx context.Context, documentID uuid.UUID) (string, error)
}

// documentService implements DocumentService.
type documentService struct {
	projectRepo  repositories.ProjectRepository
	documentRepo repositories.DocumentRepository
	logger       *zap.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	projectRepo repositories.ProjectRepository,
	documentRepo repositories.DocumentRepository,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		projectRepo:  projectRepo,
		documentRepo: documentRepo,
		logger:       logger.Named("documents"),
	}
}

// Submit stores document text and links it to the project.
func (s *documentService) Submit(ctx context.Context, projectID uuid.UUID, ownerID, filename, content string) (*models.Stage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("document content is empty: %w", apperrors.ErrValidation)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("document filename is required: %w", apperrors.ErrValidation)
	}

	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	document := models.NewDocument(project.ID, filename, content)
	if err := s.documentRepo.Create(ctx, document); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	if err := s.projectRepo.SetDocument(ctx, project.ID, ownerID, document.ID); err != nil {
		return nil, fmt.Errorf("link document to project: %w", err)
	}

	s.logger.Info("Document submitted",
		zap.String("project_id", project.ID.String()),
		zap.String("document_id", document.ID.String()),
		zap.String("filename", filename),
		zap.Int("content_length", len(content)))

	stage, err := project.Stage(1)
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// GetText returns the stored text of a document.
func (s *documentService) GetText(ctx context.Context, documentID uuid.UUID) (string, error) {
	document, err := s.documentRepo.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	return document.Content, nil
}

// Ensure documentService implements DocumentService at compile time.
var _ DocumentService = (*documentService)(nil)
