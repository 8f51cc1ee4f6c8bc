package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// ============================================================================
// Unit Test Helpers
// ============================================================================

const testOwnerID = "user-123"

// authedRequest builds a request carrying JWT claims for testOwnerID, the
// way the auth middleware leaves them after validating a token.
func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: testOwnerID}}
	return req.WithContext(context.WithValue(req.Context(), auth.ClaimsKey, claims))
}

func newTestProjectsHandler() (*ProjectsHandler, *mockProjectService, *mockDocumentService) {
	logger := zap.NewNop()
	projectSvc := &mockProjectService{}
	documentSvc := &mockDocumentService{}
	return NewProjectsHandler(projectSvc, documentSvc, logger), projectSvc, documentSvc
}

// mockProjectService is a simple mock for unit tests.
type mockProjectService struct {
	project  *models.Project
	projects []*models.Project
	stage    *models.Stage

	createErr   error
	getErr      error
	listErr     error
	getStageErr error
	deleteErr   error

	gotOwnerID  string
	gotDomain   string
	gotStageNum int
	deleted     []uuid.UUID
}

func (m *mockProjectService) Create(ctx context.Context, ownerID, problemDomain string) (*models.Project, error) {
	m.gotOwnerID = ownerID
	m.gotDomain = problemDomain
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.project != nil {
		return m.project, nil
	}
	return models.NewProject(ownerID, problemDomain), nil
}

func (m *mockProjectService) Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Project, error) {
	m.gotOwnerID = ownerID
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.project != nil {
		return m.project, nil
	}
	return models.NewProject(ownerID, "test domain"), nil
}

func (m *mockProjectService) List(ctx context.Context, ownerID string) ([]*models.Project, error) {
	m.gotOwnerID = ownerID
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.projects, nil
}

func (m *mockProjectService) GetStage(ctx context.Context, id uuid.UUID, ownerID string, stageNumber int) (*models.Stage, error) {
	m.gotStageNum = stageNumber
	if m.getStageErr != nil {
		return nil, m.getStageErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	project := models.NewProject(ownerID, "test domain")
	return project.Stage(stageNumber)
}

func (m *mockProjectService) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockDocumentService is a simple mock for unit tests.
type mockDocumentService struct {
	stage      *models.Stage
	text       string
	submitErr  error
	getTextErr error

	gotFilename string
	gotContent  string
}

func (m *mockDocumentService) Submit(ctx context.Context, projectID uuid.UUID, ownerID, filename, content string) (*models.Stage, error) {
	m.gotFilename = filename
	m.gotContent = content
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	project := models.NewProject(ownerID, "test domain")
	project.DocumentID = &projectID
	return project.Stage(1)
}

func (m *mockDocumentService) GetText(ctx context.Context, documentID uuid.UUID) (string, error) {
	if m.getTextErr != nil {
		return "", m.getTextErr
	}
	return m.text, nil
}

// ============================================================================
// Create Tests
// ============================================================================

func TestProjectsHandler_Create_Success(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()

	body := bytes.NewBufferString(`{"problem_domain": "rural healthcare"}`)
	req := authedRequest(http.MethodPost, "/api/projects", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success to be true")
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	if data["problem_domain"] != "rural healthcare" {
		t.Errorf("expected problem_domain 'rural healthcare', got %v", data["problem_domain"])
	}
	if data["status"] != string(models.ProjectStatusInProgress) {
		t.Errorf("expected status IN_PROGRESS, got %v", data["status"])
	}
	stages, ok := data["stages"].([]any)
	if !ok || len(stages) != models.StageCount {
		t.Errorf("expected %d stages, got %v", models.StageCount, data["stages"])
	}

	if projectSvc.gotOwnerID != testOwnerID {
		t.Errorf("expected owner %q, got %q", testOwnerID, projectSvc.gotOwnerID)
	}
	if projectSvc.gotDomain != "rural healthcare" {
		t.Errorf("expected domain 'rural healthcare', got %q", projectSvc.gotDomain)
	}
}

func TestProjectsHandler_Create_InvalidBody(t *testing.T) {
	handler, _, _ := newTestProjectsHandler()

	req := authedRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{not json`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestProjectsHandler_Create_ValidationError(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectSvc.createErr = fmt.Errorf("problem domain is required: %w", apperrors.ErrValidation)

	req := authedRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{"problem_domain": ""}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Success {
		t.Error("expected success to be false")
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestProjectsHandler_Create_Unauthenticated(t *testing.T) {
	handler, _, _ := newTestProjectsHandler()

	// No claims in context
	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{"problem_domain": "x"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

// ============================================================================
// List Tests
// ============================================================================

func TestProjectsHandler_List_Success(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectSvc.projects = []*models.Project{
		models.NewProject(testOwnerID, "logistics"),
		models.NewProject(testOwnerID, "education"),
	}

	req := authedRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	list, ok := resp.Data.([]any)
	if !ok {
		t.Fatalf("expected data to be a list, got %T", resp.Data)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 projects, got %d", len(list))
	}
	if projectSvc.gotOwnerID != testOwnerID {
		t.Errorf("expected owner %q, got %q", testOwnerID, projectSvc.gotOwnerID)
	}
}

// ============================================================================
// Get Tests
// ============================================================================

func TestProjectsHandler_Get_Success(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	project := models.NewProject(testOwnerID, "water access")
	projectSvc.project = project

	req := authedRequest(http.MethodGet, "/api/projects/"+project.ID.String(), nil)
	req.SetPathValue("pid", project.ID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	if data["id"] != project.ID.String() {
		t.Errorf("expected id %s, got %v", project.ID, data["id"])
	}
}

func TestProjectsHandler_Get_InvalidProjectID(t *testing.T) {
	handler, _, _ := newTestProjectsHandler()

	req := authedRequest(http.MethodGet, "/api/projects/invalid-uuid", nil)
	req.SetPathValue("pid", "invalid-uuid")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestProjectsHandler_Get_NotFound(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectSvc.getErr = fmt.Errorf("project: %w", apperrors.ErrNotFound)

	projectID := uuid.New()
	req := authedRequest(http.MethodGet, "/api/projects/"+projectID.String(), nil)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

// ============================================================================
// Delete Tests
// ============================================================================

func TestProjectsHandler_Delete_Success(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectID := uuid.New()

	req := authedRequest(http.MethodDelete, "/api/projects/"+projectID.String(), nil)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(projectSvc.deleted) != 1 || projectSvc.deleted[0] != projectID {
		t.Errorf("expected delete of %s, got %v", projectID, projectSvc.deleted)
	}
}

func TestProjectsHandler_Delete_NotFound(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectSvc.deleteErr = fmt.Errorf("project: %w", apperrors.ErrNotFound)

	projectID := uuid.New()
	req := authedRequest(http.MethodDelete, "/api/projects/"+projectID.String(), nil)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

// ============================================================================
// GetStage Tests
// ============================================================================

func TestProjectsHandler_GetStage_Success(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	now := time.Now().UTC()
	projectSvc.stage = &models.Stage{
		StageNumber: 2,
		Status:      models.StageStatusCompleted,
		Data: &models.ProblemsData{
			ProblemStatements: []models.ProblemStatement{
				{ID: uuid.New(), Problem: "Clinics lack reliable power", Explanation: "Generators fail during outages"},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	projectID := uuid.New()
	req := authedRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/stages/2", nil)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("n", "2")
	rec := httptest.NewRecorder()

	handler.GetStage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	if data["stage_number"] != float64(2) {
		t.Errorf("expected stage_number 2, got %v", data["stage_number"])
	}
	if data["status"] != string(models.StageStatusCompleted) {
		t.Errorf("expected status COMPLETED, got %v", data["status"])
	}
	if projectSvc.gotStageNum != 2 {
		t.Errorf("expected service call for stage 2, got %d", projectSvc.gotStageNum)
	}
}

func TestProjectsHandler_GetStage_InvalidNumber(t *testing.T) {
	handler, projectSvc, _ := newTestProjectsHandler()
	projectID := uuid.New()

	for _, raw := range []string{"abc", "0", "7", "-1"} {
		req := authedRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/stages/"+raw, nil)
		req.SetPathValue("pid", projectID.String())
		req.SetPathValue("n", raw)
		rec := httptest.NewRecorder()

		handler.GetStage(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("stage %q: expected status 400, got %d", raw, rec.Code)
		}
	}
	if projectSvc.gotStageNum != 0 {
		t.Errorf("expected no service calls, got stage %d", projectSvc.gotStageNum)
	}
}

// ============================================================================
// SubmitDocument Tests
// ============================================================================

func TestProjectsHandler_SubmitDocument_Success(t *testing.T) {
	handler, _, documentSvc := newTestProjectsHandler()
	projectID := uuid.New()

	body := bytes.NewBufferString(`{"filename": "notes.md", "content": "Field interviews from the northern district."}`)
	req := authedRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/stages/1/document", body)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.SubmitDocument(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	if data["stage_number"] != float64(1) {
		t.Errorf("expected stage_number 1, got %v", data["stage_number"])
	}

	if documentSvc.gotFilename != "notes.md" {
		t.Errorf("expected filename 'notes.md', got %q", documentSvc.gotFilename)
	}
	if documentSvc.gotContent != "Field interviews from the northern district." {
		t.Errorf("unexpected content %q", documentSvc.gotContent)
	}
}

func TestProjectsHandler_SubmitDocument_EmptyContent(t *testing.T) {
	handler, _, documentSvc := newTestProjectsHandler()
	documentSvc.submitErr = fmt.Errorf("document content is required: %w", apperrors.ErrValidation)
	projectID := uuid.New()

	body := bytes.NewBufferString(`{"filename": "notes.md", "content": ""}`)
	req := authedRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/stages/1/document", body)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.SubmitDocument(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
