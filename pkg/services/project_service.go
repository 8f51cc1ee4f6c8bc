package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/audit"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/repositories"
)

// maxProblemDomainLength bounds the free-text problem domain at creation.
const maxProblemDomainLength = 500

// ProjectService defines the interface for project operations.
type ProjectService interface {
	// Create starts a new project with four NOT_STARTED stages.
	Create(ctx context.Context, ownerID, problemDomain string) (*models.Project, error)

	// Get returns one of the owner's projects.
	Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Project, error)

	// List returns the owner's projects, newest first.
	List(ctx context.Context, ownerID string) ([]*models.Project, error)

	// GetStage returns a single stage record of one of the owner's projects.
	GetStage(ctx context.Context, id uuid.UUID, ownerID string, stageNumber int) (*models.Stage, error)

	// Delete removes one of the owner's projects and its documents.
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// projectService implements ProjectService.
type projectService struct {
	projectRepo repositories.ProjectRepository
	screener    *audit.Screener
	logger      *zap.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	screener *audit.Screener,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		screener:    screener,
		logger:      logger.Named("projects"),
	}
}

// Create starts a new project with four NOT_STARTED stages.
func (s *projectService) Create(ctx context.Context, ownerID, problemDomain string) (*models.Project, error) {
	problemDomain = strings.TrimSpace(problemDomain)
	if problemDomain == "" {
		return nil, fmt.Errorf("problem_domain is required: %w", apperrors.ErrValidation)
	}
	if len(problemDomain) > maxProblemDomainLength {
		return nil, fmt.Errorf("problem_domain exceeds %d characters: %w", maxProblemDomainLength, apperrors.ErrValidation)
	}
	if err := s.screener.ScreenField(ctx, uuid.Nil, "problem_domain", problemDomain); err != nil {
		return nil, err
	}

	project := models.NewProject(ownerID, problemDomain)
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("problem_domain", problemDomain))

	return project, nil
}

// Get returns one of the owner's projects.
func (s *projectService) Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Project, error) {
	return s.projectRepo.Get(ctx, id, ownerID)
}

// List returns the owner's projects, newest first.
func (s *projectService) List(ctx context.Context, ownerID string) ([]*models.Project, error) {
	return s.projectRepo.List(ctx, ownerID)
}

// GetStage returns a single stage record.
func (s *projectService) GetStage(ctx context.Context, id uuid.UUID, ownerID string, stageNumber int) (*models.Stage, error) {
	if stageNumber < 1 || stageNumber > models.StageCount {
		return nil, fmt.Errorf("stage number must be 1-%d: %w", models.StageCount, apperrors.ErrValidation)
	}

	project, err := s.projectRepo.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	return project.Stage(stageNumber)
}

// Delete removes one of the owner's projects.
func (s *projectService) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	if err := s.projectRepo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Info("Project deleted", zap.String("project_id", id.String()))
	return nil
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)
