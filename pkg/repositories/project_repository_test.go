//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/testhelpers"
)

// projectTestContext holds test dependencies for project repository tests.
type projectTestContext struct {
	t       *testing.T
	db      *testhelpers.EngineDB
	repo    ProjectRepository
	docs    DocumentRepository
	ownerID string
}

// setupProjectTest initializes the test context with the shared testcontainer.
// Each test gets its own owner so tests cannot see each other's projects.
func setupProjectTest(t *testing.T) *projectTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	tc := &projectTestContext{
		t:       t,
		db:      engineDB,
		repo:    NewProjectRepository(engineDB.DB),
		docs:    NewDocumentRepository(engineDB.DB),
		ownerID: fmt.Sprintf("test-user-%s", uuid.NewString()),
	}
	t.Cleanup(tc.cleanup)
	return tc
}

// cleanup removes this owner's projects; documents go with them via CASCADE.
func (tc *projectTestContext) cleanup() {
	_, _ = tc.db.DB.Exec(context.Background(),
		"DELETE FROM engine_projects WHERE owner_id = $1", tc.ownerID)
}

// createTestProject creates and persists a project for testing.
func (tc *projectTestContext) createTestProject(ctx context.Context, domain string) *models.Project {
	tc.t.Helper()
	project := models.NewProject(tc.ownerID, domain)
	if err := tc.repo.Create(ctx, project); err != nil {
		tc.t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

func TestProjectRepository_CreateAndGet(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	created := tc.createTestProject(ctx, "urban mobility")

	got, err := tc.repo.Get(ctx, created.ID, tc.ownerID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, got.ID)
	}
	if got.ProblemDomain != "urban mobility" {
		t.Errorf("expected domain 'urban mobility', got %q", got.ProblemDomain)
	}
	if got.Status != models.ProjectStatusInProgress {
		t.Errorf("expected status IN_PROGRESS, got %s", got.Status)
	}
	if len(got.Stages) != models.StageCount {
		t.Fatalf("expected %d stages, got %d", models.StageCount, len(got.Stages))
	}
	for i, stage := range got.Stages {
		if stage.StageNumber != i+1 {
			t.Errorf("stage at index %d has stage_number %d", i, stage.StageNumber)
		}
		if stage.Status != models.StageStatusNotStarted {
			t.Errorf("stage %d: expected NOT_STARTED, got %s", stage.StageNumber, stage.Status)
		}
	}
}

func TestProjectRepository_Get_NotFound(t *testing.T) {
	tc := setupProjectTest(t)

	_, err := tc.repo.Get(context.Background(), uuid.New(), tc.ownerID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectRepository_Get_WrongOwner(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	created := tc.createTestProject(ctx, "health tech")

	_, err := tc.repo.Get(ctx, created.ID, "someone-else")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's project, got %v", err)
	}
}

func TestProjectRepository_List(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	first := tc.createTestProject(ctx, "first domain")
	// Ensure a distinct created_at ordering.
	time.Sleep(10 * time.Millisecond)
	second := models.NewProject(tc.ownerID, "second domain")
	second.CreatedAt = time.Now().UTC()
	if err := tc.repo.Create(ctx, second); err != nil {
		t.Fatalf("failed to create second project: %v", err)
	}

	// A project for a different owner must not appear.
	other := models.NewProject("other-owner-"+uuid.NewString(), "other domain")
	if err := tc.repo.Create(ctx, other); err != nil {
		t.Fatalf("failed to create other project: %v", err)
	}
	defer func() {
		_, _ = tc.db.DB.Exec(ctx, "DELETE FROM engine_projects WHERE id = $1", other.ID)
	}()

	projects, err := tc.repo.List(ctx, tc.ownerID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].ID != second.ID || projects[1].ID != first.ID {
		t.Errorf("expected newest-first ordering [%s %s], got [%s %s]",
			second.ID, first.ID, projects[0].ID, projects[1].ID)
	}
}

func TestProjectRepository_List_Empty(t *testing.T) {
	tc := setupProjectTest(t)

	projects, err := tc.repo.List(context.Background(), tc.ownerID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects, got %d", len(projects))
	}
}

func TestProjectRepository_UpdateStages(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	created := tc.createTestProject(ctx, "agriculture")

	analysis := &models.AnalysisData{Analysis: "The document describes irrigation inefficiencies."}
	stages, err := models.CompleteStage(created.Stages, 1, analysis, time.Now().UTC())
	if err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}

	if err := tc.repo.UpdateStages(ctx, created.ID, tc.ownerID, stages, models.ProjectStatusInProgress); err != nil {
		t.Fatalf("UpdateStages failed: %v", err)
	}

	got, err := tc.repo.Get(ctx, created.ID, tc.ownerID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	stage1 := got.Stages[0]
	if stage1.Status != models.StageStatusCompleted {
		t.Errorf("expected stage 1 COMPLETED, got %s", stage1.Status)
	}
	data, ok := stage1.Data.(*models.AnalysisData)
	if !ok {
		t.Fatalf("expected *AnalysisData payload, got %T", stage1.Data)
	}
	if data.Analysis != analysis.Analysis {
		t.Errorf("analysis text did not round-trip: got %q", data.Analysis)
	}
	for _, stage := range got.Stages[1:] {
		if stage.Status != models.StageStatusNotStarted {
			t.Errorf("stage %d: expected NOT_STARTED, got %s", stage.StageNumber, stage.Status)
		}
	}
}

func TestProjectRepository_UpdateStages_NotFound(t *testing.T) {
	tc := setupProjectTest(t)

	err := tc.repo.UpdateStages(context.Background(), uuid.New(), tc.ownerID,
		models.NewStages(time.Now().UTC()), models.ProjectStatusInProgress)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectRepository_SetDocument(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	created := tc.createTestProject(ctx, "logistics")

	doc := models.NewDocument(created.ID, "report.pdf", "extracted text")
	if err := tc.docs.Create(ctx, doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	if err := tc.repo.SetDocument(ctx, created.ID, tc.ownerID, doc.ID); err != nil {
		t.Fatalf("SetDocument failed: %v", err)
	}

	got, err := tc.repo.Get(ctx, created.ID, tc.ownerID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DocumentID == nil || *got.DocumentID != doc.ID {
		t.Errorf("expected document_id %s, got %v", doc.ID, got.DocumentID)
	}
}

func TestProjectRepository_Delete(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	created := tc.createTestProject(ctx, "education")
	doc := models.NewDocument(created.ID, "notes.txt", "content")
	if err := tc.docs.Create(ctx, doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	if err := tc.repo.Delete(ctx, created.ID, tc.ownerID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := tc.repo.Get(ctx, created.ID, tc.ownerID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Documents are removed via CASCADE.
	if _, err := tc.docs.Get(ctx, doc.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected document to cascade-delete, got %v", err)
	}
}

func TestProjectRepository_Delete_NotFound(t *testing.T) {
	tc := setupProjectTest(t)

	err := tc.repo.Delete(context.Background(), uuid.New(), tc.ownerID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
