package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// ============================================================================
// Unit Test Helpers
// ============================================================================

func newTestStagesHandler() (*StagesHandler, *mockStagePipeline) {
	logger := zap.NewNop()
	pipeline := &mockStagePipeline{}
	return NewStagesHandler(pipeline, logger), pipeline
}

func completedStage(stageNumber int, data models.StageData) *models.Stage {
	now := time.Now().UTC()
	return &models.Stage{
		StageNumber: stageNumber,
		Status:      models.StageStatusCompleted,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// mockStagePipeline is a simple mock for unit tests.
type mockStagePipeline struct {
	stage  *models.Stage
	report string
	idea   *models.ProductIdea
	deltas []string

	analysisErr error
	problemsErr error
	ideasErr    error
	solutionErr error
	imageErr    error

	calls       int
	gotSelected *uuid.UUID
	gotCustom   string
	gotChosen   uuid.UUID
	gotIdeaID   uuid.UUID
	gotFeedback string
}

func (m *mockStagePipeline) RunAnalysis(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Stage, error) {
	m.calls++
	if m.analysisErr != nil {
		return nil, m.analysisErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	return completedStage(1, &models.AnalysisData{Analysis: "analysis"}), nil
}

func (m *mockStagePipeline) RunAnalysisStream(ctx context.Context, projectID uuid.UUID, ownerID string, onDelta func(delta string)) (*models.Stage, error) {
	m.calls++
	for _, delta := range m.deltas {
		onDelta(delta)
	}
	if m.analysisErr != nil {
		return nil, m.analysisErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	return completedStage(1, &models.AnalysisData{Analysis: strings.Join(m.deltas, "")}), nil
}

func (m *mockStagePipeline) GenerateProblems(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Stage, error) {
	m.calls++
	if m.problemsErr != nil {
		return nil, m.problemsErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	return completedStage(2, &models.ProblemsData{}), nil
}

func (m *mockStagePipeline) GenerateIdeas(ctx context.Context, projectID uuid.UUID, ownerID string, selectedProblemID *uuid.UUID, customProblem string) (*models.Stage, error) {
	m.calls++
	m.gotSelected = selectedProblemID
	m.gotCustom = customProblem
	if m.ideasErr != nil {
		return nil, m.ideasErr
	}
	if m.stage != nil {
		return m.stage, nil
	}
	return completedStage(3, &models.IdeasData{}), nil
}

func (m *mockStagePipeline) ChooseSolution(ctx context.Context, projectID uuid.UUID, ownerID string, chosenIdeaID uuid.UUID) (*models.Stage, string, error) {
	m.calls++
	m.gotChosen = chosenIdeaID
	if m.solutionErr != nil {
		return nil, "", m.solutionErr
	}
	if m.stage != nil {
		return m.stage, m.report, nil
	}
	return completedStage(4, &models.SolutionData{}), m.report, nil
}

func (m *mockStagePipeline) RegenerateIdeaImage(ctx context.Context, projectID uuid.UUID, ownerID string, ideaID uuid.UUID, feedback string) (*models.ProductIdea, error) {
	m.calls++
	m.gotIdeaID = ideaID
	m.gotFeedback = feedback
	if m.imageErr != nil {
		return nil, m.imageErr
	}
	if m.idea != nil {
		return m.idea, nil
	}
	url := "https://img.example.com/regen.png"
	return &models.ProductIdea{ID: ideaID, Idea: "Mobile Clinic Router", ImageURL: &url}, nil
}

// generateRequest builds an authed POST to a stage endpoint with pid set.
func generateRequest(projectID uuid.UUID, path string, body *bytes.Buffer) *http.Request {
	target := "/api/projects/" + projectID.String() + path
	var req *http.Request
	if body == nil {
		req = authedRequest(http.MethodPost, target, nil)
	} else {
		req = authedRequest(http.MethodPost, target, body)
	}
	req.SetPathValue("pid", projectID.String())
	return req
}

// ============================================================================
// GenerateAnalysis Tests
// ============================================================================

func TestStagesHandler_GenerateAnalysis_Success(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.stage = completedStage(1, &models.AnalysisData{Analysis: "The document describes a rural supply chain."})
	projectID := uuid.New()

	req := generateRequest(projectID, "/stages/1/generate", nil)
	rec := httptest.NewRecorder()

	handler.GenerateAnalysis(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
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
	if data["stage_number"] != float64(1) {
		t.Errorf("expected stage_number 1, got %v", data["stage_number"])
	}
	if data["status"] != string(models.StageStatusCompleted) {
		t.Errorf("expected status COMPLETED, got %v", data["status"])
	}
	payload, ok := data["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected stage data to be a map, got %T", data["data"])
	}
	if payload["analysis"] != "The document describes a rural supply chain." {
		t.Errorf("unexpected analysis %v", payload["analysis"])
	}
}

func TestStagesHandler_GenerateAnalysis_MissingDocument(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.analysisErr = fmt.Errorf("no document submitted for analysis: %w", apperrors.ErrValidation)

	req := generateRequest(uuid.New(), "/stages/1/generate", nil)
	rec := httptest.NewRecorder()

	handler.GenerateAnalysis(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestStagesHandler_GenerateAnalysis_BackendDown(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.analysisErr = apperrors.ErrBackendUnavailable

	req := generateRequest(uuid.New(), "/stages/1/generate", nil)
	rec := httptest.NewRecorder()

	handler.GenerateAnalysis(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error != "The generation service is temporarily unavailable. Please try again." {
		t.Errorf("expected the generic outage message, got %q", resp.Error)
	}
}

func TestStagesHandler_GenerateAnalysis_Unauthenticated(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	projectID := uuid.New()

	// No claims in context
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/stages/1/generate", nil)
	req.SetPathValue("pid", projectID.String())
	rec := httptest.NewRecorder()

	handler.GenerateAnalysis(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("expected no pipeline calls, got %d", pipeline.calls)
	}
}

// ============================================================================
// Error Mapping Tests
// ============================================================================

func TestStagesHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("bad input: %w", apperrors.ErrValidation), http.StatusBadRequest},
		{"stage not ready", fmt.Errorf("stage 1 is not completed: %w", apperrors.ErrStageNotReady), http.StatusConflict},
		{"not found", fmt.Errorf("project: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"backend unavailable", apperrors.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{"malformed output", fmt.Errorf("expected 4 problem statements, got 2: %w", apperrors.ErrMalformedOutput), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, pipeline := newTestStagesHandler()
			pipeline.problemsErr = tt.err

			req := generateRequest(uuid.New(), "/stages/2/generate", nil)
			rec := httptest.NewRecorder()

			handler.GenerateProblems(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var resp ApiResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Success {
				t.Error("expected success to be false")
			}
			if tt.wantStatus == http.StatusInternalServerError && resp.Error != "An unexpected error occurred" {
				t.Errorf("expected generic message for unknown errors, got %q", resp.Error)
			}
		})
	}
}

// ============================================================================
// StreamAnalysis Tests
// ============================================================================

func TestStagesHandler_StreamAnalysis_Success(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.deltas = []string{"The document ", "describes a rural ", "supply chain."}

	req := generateRequest(uuid.New(), "/stages/1/generate/stream", nil)
	rec := httptest.NewRecorder()

	handler.StreamAnalysis(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %q", ct)
	}

	body := rec.Body.String()
	first := `data: {"type":"text","content":"The document "}`
	if !strings.Contains(body, first) {
		t.Errorf("expected first text event in body:\n%s", body)
	}
	done := `data: {"type":"done"}`
	if !strings.Contains(body, done) {
		t.Errorf("expected done event in body:\n%s", body)
	}
	if strings.Index(body, first) > strings.Index(body, done) {
		t.Error("expected text events before the done event")
	}
	if got := strings.Count(body, `"type":"text"`); got != 3 {
		t.Errorf("expected 3 text events, got %d", got)
	}
}

func TestStagesHandler_StreamAnalysis_Error(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.deltas = []string{"partial "}
	pipeline.analysisErr = apperrors.ErrBackendUnavailable

	req := generateRequest(uuid.New(), "/stages/1/generate/stream", nil)
	rec := httptest.NewRecorder()

	handler.StreamAnalysis(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("expected error event in body:\n%s", body)
	}
	if !strings.Contains(body, "temporarily unavailable") {
		t.Errorf("expected the generic outage message in the error event:\n%s", body)
	}
	if strings.Contains(body, `"type":"done"`) {
		t.Error("expected no done event after an error")
	}
}

// ============================================================================
// GenerateIdeas Tests
// ============================================================================

func TestStagesHandler_GenerateIdeas_SelectedProblem(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	problemID := uuid.New()

	body := bytes.NewBufferString(fmt.Sprintf(`{"selected_problem_id": %q}`, problemID))
	req := generateRequest(uuid.New(), "/stages/3/generate", body)
	rec := httptest.NewRecorder()

	handler.GenerateIdeas(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.gotSelected == nil || *pipeline.gotSelected != problemID {
		t.Errorf("expected selected problem %s, got %v", problemID, pipeline.gotSelected)
	}
	if pipeline.gotCustom != "" {
		t.Errorf("expected no custom problem, got %q", pipeline.gotCustom)
	}
}

func TestStagesHandler_GenerateIdeas_CustomProblem(t *testing.T) {
	handler, pipeline := newTestStagesHandler()

	body := bytes.NewBufferString(`{"custom_problem": "Shops cannot accept payments offline"}`)
	req := generateRequest(uuid.New(), "/stages/3/generate", body)
	rec := httptest.NewRecorder()

	handler.GenerateIdeas(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.gotSelected != nil {
		t.Errorf("expected no selected problem, got %v", pipeline.gotSelected)
	}
	if pipeline.gotCustom != "Shops cannot accept payments offline" {
		t.Errorf("unexpected custom problem %q", pipeline.gotCustom)
	}
}

func TestStagesHandler_GenerateIdeas_EmptyBodyReachesPipeline(t *testing.T) {
	// An empty body is not a decode error; the pipeline rejects the
	// missing selector with a validation error.
	handler, pipeline := newTestStagesHandler()
	pipeline.ideasErr = fmt.Errorf("exactly one of selected_problem_id or custom_problem must be provided: %w", apperrors.ErrValidation)

	req := generateRequest(uuid.New(), "/stages/3/generate", nil)
	rec := httptest.NewRecorder()

	handler.GenerateIdeas(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if pipeline.calls != 1 {
		t.Errorf("expected the pipeline to be called once, got %d", pipeline.calls)
	}
}

func TestStagesHandler_GenerateIdeas_InvalidBody(t *testing.T) {
	handler, pipeline := newTestStagesHandler()

	body := bytes.NewBufferString(`{"selected_problem_id": "not-a-uuid"}`)
	req := generateRequest(uuid.New(), "/stages/3/generate", body)
	rec := httptest.NewRecorder()

	handler.GenerateIdeas(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("expected no pipeline calls, got %d", pipeline.calls)
	}
}

// ============================================================================
// ChooseSolution Tests
// ============================================================================

func TestStagesHandler_ChooseSolution_Success(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	ideaID := uuid.New()
	url := "https://img.example.com/1.png"
	pipeline.stage = completedStage(4, &models.SolutionData{
		ChosenSolution: &models.ProductIdea{ID: ideaID, Idea: "Mobile Clinic Router", ImageURL: &url},
	})
	pipeline.report = "# Product Solution Report: rural healthcare"

	body := bytes.NewBufferString(fmt.Sprintf(`{"chosen_solution_id": %q}`, ideaID))
	req := generateRequest(uuid.New(), "/stages/4/generate", body)
	rec := httptest.NewRecorder()

	handler.ChooseSolution(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.gotChosen != ideaID {
		t.Errorf("expected chosen idea %s, got %s", ideaID, pipeline.gotChosen)
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	stage, ok := data["stage"].(map[string]any)
	if !ok {
		t.Fatalf("expected stage to be a map, got %T", data["stage"])
	}
	if stage["stage_number"] != float64(4) {
		t.Errorf("expected stage_number 4, got %v", stage["stage_number"])
	}
	report, ok := data["report"].(string)
	if !ok || !strings.Contains(report, "Product Solution Report") {
		t.Errorf("expected the solution report, got %v", data["report"])
	}
}

func TestStagesHandler_ChooseSolution_MissingID(t *testing.T) {
	handler, pipeline := newTestStagesHandler()

	body := bytes.NewBufferString(`{}`)
	req := generateRequest(uuid.New(), "/stages/4/generate", body)
	rec := httptest.NewRecorder()

	handler.ChooseSolution(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("expected no pipeline calls, got %d", pipeline.calls)
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.Contains(resp.Error, "chosen_solution_id") {
		t.Errorf("expected error to name chosen_solution_id, got %q", resp.Error)
	}
}

func TestStagesHandler_ChooseSolution_IdeaNotFound(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	pipeline.solutionErr = fmt.Errorf("product idea: %w", apperrors.ErrNotFound)

	body := bytes.NewBufferString(fmt.Sprintf(`{"chosen_solution_id": %q}`, uuid.New()))
	req := generateRequest(uuid.New(), "/stages/4/generate", body)
	rec := httptest.NewRecorder()

	handler.ChooseSolution(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

// ============================================================================
// RegenerateImage Tests
// ============================================================================

func TestStagesHandler_RegenerateImage_Success(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	projectID := uuid.New()
	ideaID := uuid.New()

	body := bytes.NewBufferString(`{"feedback": "make it blue"}`)
	req := generateRequest(projectID, "/ideas/"+ideaID.String()+"/image", body)
	req.SetPathValue("iid", ideaID.String())
	rec := httptest.NewRecorder()

	handler.RegenerateImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.gotIdeaID != ideaID {
		t.Errorf("expected idea %s, got %s", ideaID, pipeline.gotIdeaID)
	}
	if pipeline.gotFeedback != "make it blue" {
		t.Errorf("expected feedback to be forwarded, got %q", pipeline.gotFeedback)
	}

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data to be a map, got %T", resp.Data)
	}
	if data["image_url"] != "https://img.example.com/regen.png" {
		t.Errorf("expected the regenerated image URL, got %v", data["image_url"])
	}
}

func TestStagesHandler_RegenerateImage_NoBody(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	projectID := uuid.New()
	ideaID := uuid.New()

	req := generateRequest(projectID, "/ideas/"+ideaID.String()+"/image", nil)
	req.SetPathValue("iid", ideaID.String())
	rec := httptest.NewRecorder()

	handler.RegenerateImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.gotFeedback != "" {
		t.Errorf("expected empty feedback, got %q", pipeline.gotFeedback)
	}
}

func TestStagesHandler_RegenerateImage_InvalidIdeaID(t *testing.T) {
	handler, pipeline := newTestStagesHandler()
	projectID := uuid.New()

	req := generateRequest(projectID, "/ideas/not-a-uuid/image", nil)
	req.SetPathValue("iid", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.RegenerateImage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("expected no pipeline calls, got %d", pipeline.calls)
	}
}
