package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/database"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// DocumentRepository defines the interface for document data access.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// GetByProject retrieves the most recently uploaded document for a project.
	GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Document, error)
}

// documentRepository implements DocumentRepository using PostgreSQL.
type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create inserts a new document.
func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	if document.ID == uuid.Nil {
		document.ID = uuid.New()
	}
	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO engine_documents (id, project_id, filename, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		document.ID,
		document.ProjectID,
		document.Filename,
		document.Content,
		document.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// Get retrieves a document by ID.
func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, project_id, filename, content, created_at
		FROM engine_documents
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByProject retrieves the most recently uploaded document for a project.
func (r *documentRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, project_id, filename, content, created_at
		FROM engine_documents
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRow(ctx, query, projectID))
}

func (r *documentRepository) scanOne(row pgx.Row) (*models.Document, error) {
	var document models.Document

	err := row.Scan(
		&document.ID,
		&document.ProjectID,
		&document.Filename,
		&document.Content,
		&document.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &document, nil
}

// Ensure documentRepository implements DocumentRepository at compile time.
var _ DocumentRepository = (*documentRepository)(nil)
