package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/database"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
// All reads and writes are scoped to the owning user; a project belonging
// to another user behaves exactly like a missing one.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Project, error)
	List(ctx context.Context, ownerID string) ([]*models.Project, error)
	// UpdateStages replaces the project's stages and status in one
	// statement so a stage completion and its cascade land atomically.
	UpdateStages(ctx context.Context, id uuid.UUID, ownerID string, stages []models.Stage, status models.ProjectStatus) error
	SetDocument(ctx context.Context, id uuid.UUID, ownerID string, documentID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create inserts a new project.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	stages, err := json.Marshal(project.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		INSERT INTO engine_projects (id, owner_id, problem_domain, document_id, status, stages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.ProblemDomain,
		project.DocumentID,
		project.Status,
		stages,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID, scoped to its owner.
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Project, error) {
	query := `
		SELECT id, owner_id, problem_domain, document_id, status, stages, created_at, updated_at
		FROM engine_projects
		WHERE id = $1 AND owner_id = $2`

	project, err := scanProject(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// List retrieves all projects owned by the given user, newest first.
func (r *projectRepository) List(ctx context.Context, ownerID string) ([]*models.Project, error) {
	query := `
		SELECT id, owner_id, problem_domain, document_id, status, stages, created_at, updated_at
		FROM engine_projects
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// UpdateStages replaces the stages array and project status atomically.
func (r *projectRepository) UpdateStages(ctx context.Context, id uuid.UUID, ownerID string, stages []models.Stage, status models.ProjectStatus) error {
	payload, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		UPDATE engine_projects
		SET stages = $3, status = $4, updated_at = $5
		WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Exec(ctx, query, id, ownerID, payload, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update stages: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetDocument links a document to the project.
func (r *projectRepository) SetDocument(ctx context.Context, id uuid.UUID, ownerID string, documentID uuid.UUID) error {
	query := `
		UPDATE engine_projects
		SET document_id = $3, updated_at = $4
		WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Exec(ctx, query, id, ownerID, documentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project by ID.
// The project's documents are deleted via CASCADE.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `DELETE FROM engine_projects WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// scanProject reads one project row, decoding the embedded stages.
func scanProject(row pgx.Row) (*models.Project, error) {
	var project models.Project
	var stages []byte

	err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.ProblemDomain,
		&project.DocumentID,
		&project.Status,
		&stages,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stages, &project.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	return &project, nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
