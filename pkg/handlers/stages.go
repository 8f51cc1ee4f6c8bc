package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/services"
)

// Stream event types for the stage 1 SSE endpoint.
const (
	StreamEventText  = "text"
	StreamEventDone  = "done"
	StreamEventError = "error"
)

// StreamEvent is one server-sent event on the streaming analysis endpoint.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// GenerateIdeasRequest is the body of POST /api/projects/{pid}/stages/3/generate.
// Exactly one of the two fields must be set.
type GenerateIdeasRequest struct {
	SelectedProblemID *uuid.UUID `json:"selected_problem_id,omitempty"`
	CustomProblem     string     `json:"custom_problem,omitempty"`
}

// ChooseSolutionRequest is the body of POST /api/projects/{pid}/stages/4/generate.
type ChooseSolutionRequest struct {
	ChosenSolutionID uuid.UUID `json:"chosen_solution_id"`
}

// RegenerateImageRequest is the body of POST /api/projects/{pid}/ideas/{iid}/image.
type RegenerateImageRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

// SolutionResponse pairs the completed final stage with the formatted
// solution report.
type SolutionResponse struct {
	Stage  *models.Stage `json:"stage"`
	Report string        `json:"report"`
}

// StagesHandler handles the stage-generation HTTP requests.
type StagesHandler struct {
	pipeline services.StagePipeline
	logger   *zap.Logger
}

// NewStagesHandler creates a new stages handler.
func NewStagesHandler(pipeline services.StagePipeline, logger *zap.Logger) *StagesHandler {
	return &StagesHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers the stages handler's routes on the given mux.
func (h *StagesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{pid}/stages/1/generate", authMiddleware.RequireAuth(h.GenerateAnalysis))
	mux.HandleFunc("POST /api/projects/{pid}/stages/1/generate/stream", authMiddleware.RequireAuth(h.StreamAnalysis))
	mux.HandleFunc("POST /api/projects/{pid}/stages/2/generate", authMiddleware.RequireAuth(h.GenerateProblems))
	mux.HandleFunc("POST /api/projects/{pid}/stages/3/generate", authMiddleware.RequireAuth(h.GenerateIdeas))
	mux.HandleFunc("POST /api/projects/{pid}/stages/4/generate", authMiddleware.RequireAuth(h.ChooseSolution))
	mux.HandleFunc("POST /api/projects/{pid}/ideas/{iid}/image", authMiddleware.RequireAuth(h.RegenerateImage))
}

// GenerateAnalysis handles POST /api/projects/{pid}/stages/1/generate
// Runs the stage 1 document analysis and returns the completed stage.
func (h *StagesHandler) GenerateAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	stage, err := h.pipeline.RunAnalysis(r.Context(), projectID, ownerID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, stage, h.logger)
}

// StreamAnalysis handles POST /api/projects/{pid}/stages/1/generate/stream
// Runs the stage 1 analysis and streams the generated text to the client
// as server-sent events. The "done" event is only sent after the stage has
// been persisted; an "error" event is terminal.
func (h *StagesHandler) StreamAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		WriteError(w, http.StatusInternalServerError, "SSE not supported", h.logger)
		return
	}

	eventChan := make(chan StreamEvent, 100)

	// Run the analysis in the background, forwarding text deltas as events
	go func() {
		defer close(eventChan)
		_, err := h.pipeline.RunAnalysisStream(r.Context(), projectID, ownerID, func(delta string) {
			eventChan <- StreamEvent{Type: StreamEventText, Content: delta}
		})
		if err != nil {
			h.logger.Error("Streaming analysis failed",
				zap.String("project_id", projectID.String()),
				zap.Error(err))
			_, message := statusForError(err)
			eventChan <- StreamEvent{Type: StreamEventError, Content: message}
			return
		}
		eventChan <- StreamEvent{Type: StreamEventDone}
	}()

	// Stream events to client
	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if event.Type == StreamEventDone || event.Type == StreamEventError {
			break
		}
	}
}

// GenerateProblems handles POST /api/projects/{pid}/stages/2/generate
// Derives the fixed set of problem statements from the stage 1 analysis.
func (h *StagesHandler) GenerateProblems(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	stage, err := h.pipeline.GenerateProblems(r.Context(), projectID, ownerID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, stage, h.logger)
}

// GenerateIdeas handles POST /api/projects/{pid}/stages/3/generate
// Generates product ideas for one target problem: either a problem
// statement selected by ID, or custom problem text supplied in the body.
func (h *StagesHandler) GenerateIdeas(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateIdeasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	stage, err := h.pipeline.GenerateIdeas(r.Context(), projectID, ownerID, req.SelectedProblemID, req.CustomProblem)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, stage, h.logger)
}

// ChooseSolution handles POST /api/projects/{pid}/stages/4/generate
// Records the chosen product idea as the final solution and returns the
// completed stage together with the solution report.
func (h *StagesHandler) ChooseSolution(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req ChooseSolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}
	if req.ChosenSolutionID == uuid.Nil {
		WriteError(w, http.StatusBadRequest, "chosen_solution_id is required", h.logger)
		return
	}

	stage, report, err := h.pipeline.ChooseSolution(r.Context(), projectID, ownerID, req.ChosenSolutionID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, SolutionResponse{Stage: stage, Report: report}, h.logger)
}

// RegenerateImage handles POST /api/projects/{pid}/ideas/{iid}/image
// Re-runs image generation for one product idea, optionally steering the
// prompt with feedback text.
func (h *StagesHandler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	ideaID, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	var req RegenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	idea, err := h.pipeline.RegenerateIdeaImage(r.Context(), projectID, ownerID, ideaID, req.Feedback)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, idea, h.logger)
}
