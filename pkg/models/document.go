package models

import (
	"time"

	"github.com/google/uuid"
)

// Document holds the extracted plain text of a submitted source document.
// Ingestion (PDF parsing, page/table extraction) happens upstream; this
// service only ever sees concatenated text.
type Document struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocument creates a document record for a project.
func NewDocument(projectID uuid.UUID, filename, content string) *Document {
	return &Document{
		ID:        uuid.New(),
		ProjectID: projectID,
		Filename:  filename,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
