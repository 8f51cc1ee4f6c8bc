package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/services"
)

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	ProblemDomain string `json:"problem_domain"`
}

// SubmitDocumentRequest is the body of POST /api/projects/{pid}/stages/1/document.
type SubmitDocumentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ProjectsHandler handles project lifecycle and document HTTP requests.
type ProjectsHandler struct {
	projectService  services.ProjectService
	documentService services.DocumentService
	logger          *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, documentService services.DocumentService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService:  projectService,
		documentService: documentService,
		logger:          logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/projects/{pid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("DELETE /api/projects/{pid}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/projects/{pid}/stages/{n}", authMiddleware.RequireAuth(h.GetStage))
	mux.HandleFunc("POST /api/projects/{pid}/stages/1/document", authMiddleware.RequireAuth(h.SubmitDocument))
}

// Create handles POST /api/projects
// Creates a new project in the given problem domain with all four stages
// not started.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	project, err := h.projectService.Create(r.Context(), ownerID, req.ProblemDomain)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("problem_domain", project.ProblemDomain))
	WriteData(w, http.StatusCreated, project, h.logger)
}

// List handles GET /api/projects
// Returns all projects owned by the authenticated user, newest first.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projectService.List(r.Context(), ownerID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, projects, h.logger)
}

// Get handles GET /api/projects/{pid}
// Returns one project with its full stage state.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), projectID, ownerID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, project, h.logger)
}

// Delete handles DELETE /api/projects/{pid}
// Removes the project and everything stored under it.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), projectID, ownerID); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("Project deleted", zap.String("project_id", projectID.String()))
	WriteData(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// GetStage handles GET /api/projects/{pid}/stages/{n}
// Returns a single stage, including its typed data payload.
func (h *ProjectsHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	stageNumber, ok := ParseStageNumber(w, r, h.logger)
	if !ok {
		return
	}

	stage, err := h.projectService.GetStage(r.Context(), projectID, ownerID, stageNumber)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteData(w, http.StatusOK, stage, h.logger)
}

// SubmitDocument handles POST /api/projects/{pid}/stages/1/document
// Stores the document text that stage 1 will analyze. Resubmitting
// replaces the project's current document.
func (h *ProjectsHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req SubmitDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	stage, err := h.documentService.Submit(r.Context(), projectID, ownerID, req.Filename, req.Content)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("Document submitted",
		zap.String("project_id", projectID.String()),
		zap.String("filename", req.Filename))
	WriteData(w, http.StatusOK, stage, h.logger)
}
