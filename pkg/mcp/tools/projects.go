// Package tools provides MCP tool implementations for zelta-engine.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/services"
)

// ProjectToolDeps contains dependencies for project tools.
type ProjectToolDeps struct {
	ProjectService services.ProjectService
	Logger         *zap.Logger
}

// RegisterProjectTools registers the read-only project tools.
func RegisterProjectTools(s *server.MCPServer, deps *ProjectToolDeps) {
	registerGetProjectStatusTool(s, deps)
	registerListProblemStatementsTool(s, deps)
	registerListProductIdeasTool(s, deps)
}

// resolveProject authenticates the caller and loads the requested project.
// Ownership is enforced by the service: another user's project behaves
// like a missing one.
func resolveProject(ctx context.Context, deps *ProjectToolDeps, req mcp.CallToolRequest) (*models.Project, error) {
	ownerID, err := auth.RequireOwnerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required")
	}

	rawID, err := req.RequireString("project_id")
	if err != nil {
		return nil, err
	}
	projectID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID: %w", err)
	}

	project, err := deps.ProjectService.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type stageStatusEntry struct {
	StageNumber int       `json:"stage_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type projectStatusResult struct {
	ID            string             `json:"id"`
	ProblemDomain string             `json:"problem_domain"`
	Status        string             `json:"status"`
	Stages        []stageStatusEntry `json:"stages"`
}

// registerGetProjectStatusTool adds the get_project_status tool.
// Returns the project's overall status plus the per-stage progress an
// agent needs to decide which stage to drive next.
func registerGetProjectStatusTool(s *server.MCPServer, deps *ProjectToolDeps) {
	tool := mcp.NewTool(
		"get_project_status",
		mcp.WithDescription(
			"Get the status of an ideation project: its problem domain, overall "+
				"lifecycle status, and the state of each of the four workflow stages "+
				"(document analysis, problem statements, product ideas, chosen solution).",
		),
		mcp.WithString(
			"project_id",
			mcp.Required(),
			mcp.Description("UUID of the project to inspect"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := resolveProject(ctx, deps, req)
		if err != nil {
			return nil, err
		}

		result := projectStatusResult{
			ID:            project.ID.String(),
			ProblemDomain: project.ProblemDomain,
			Status:        string(project.Status),
			Stages:        make([]stageStatusEntry, 0, len(project.Stages)),
		}
		for _, stage := range project.Stages {
			result.Stages = append(result.Stages, stageStatusEntry{
				StageNumber: stage.StageNumber,
				Status:      string(stage.Status),
				UpdatedAt:   stage.UpdatedAt,
			})
		}

		return jsonResult(result)
	})
}

type problemStatementEntry struct {
	ID          string `json:"id"`
	Problem     string `json:"problem"`
	Explanation string `json:"explanation,omitempty"`
	IsCustom    bool   `json:"is_custom"`
}

// registerListProblemStatementsTool adds the list_problem_statements tool.
// Returns the generated and custom problem statements from stage 2, or a
// note when that stage has not produced anything yet.
func registerListProblemStatementsTool(s *server.MCPServer, deps *ProjectToolDeps) {
	tool := mcp.NewTool(
		"list_problem_statements",
		mcp.WithDescription(
			"List the problem statements of an ideation project, both generated "+
				"and user-supplied. Problem statement IDs can be used to target idea "+
				"generation at a specific problem.",
		),
		mcp.WithString(
			"project_id",
			mcp.Required(),
			mcp.Description("UUID of the project to inspect"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := resolveProject(ctx, deps, req)
		if err != nil {
			return nil, err
		}

		stage, err := project.Stage(2)
		if err != nil {
			return nil, err
		}
		data, ok := stage.Data.(*models.ProblemsData)
		if !ok || (len(data.ProblemStatements) == 0 && len(data.CustomProblems) == 0) {
			return jsonResult(struct {
				Note string `json:"note"`
			}{Note: "No problem statements yet; stage 2 has not been generated."})
		}

		result := struct {
			Problems []problemStatementEntry `json:"problem_statements"`
			Count    int                     `json:"count"`
		}{
			Problems: make([]problemStatementEntry, 0, len(data.ProblemStatements)+len(data.CustomProblems)),
		}
		for _, p := range data.ProblemStatements {
			result.Problems = append(result.Problems, toProblemEntry(p))
		}
		for _, p := range data.CustomProblems {
			result.Problems = append(result.Problems, toProblemEntry(p))
		}
		result.Count = len(result.Problems)

		return jsonResult(result)
	})
}

func toProblemEntry(p models.ProblemStatement) problemStatementEntry {
	return problemStatementEntry{
		ID:          p.ID.String(),
		Problem:     p.Problem,
		Explanation: p.Explanation,
		IsCustom:    p.IsCustom,
	}
}

type productIdeaEntry struct {
	ID                  string  `json:"id"`
	Idea                string  `json:"idea"`
	DetailedExplanation string  `json:"detailed_explanation"`
	ProblemID           string  `json:"problem_id"`
	ImageURL            *string `json:"image_url,omitempty"`
}

// registerListProductIdeasTool adds the list_product_ideas tool.
func registerListProductIdeasTool(s *server.MCPServer, deps *ProjectToolDeps) {
	tool := mcp.NewTool(
		"list_product_ideas",
		mcp.WithDescription(
			"List the product ideas of an ideation project, including the problem "+
				"each idea targets and its prototype image URL when one was generated. "+
				"Idea IDs can be used to choose the final solution.",
		),
		mcp.WithString(
			"project_id",
			mcp.Required(),
			mcp.Description("UUID of the project to inspect"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := resolveProject(ctx, deps, req)
		if err != nil {
			return nil, err
		}

		stage, err := project.Stage(3)
		if err != nil {
			return nil, err
		}
		data, ok := stage.Data.(*models.IdeasData)
		if !ok || len(data.ProductIdeas) == 0 {
			return jsonResult(struct {
				Note string `json:"note"`
			}{Note: "No product ideas yet; stage 3 has not been generated."})
		}

		result := struct {
			Ideas []productIdeaEntry `json:"product_ideas"`
			Count int                `json:"count"`
		}{
			Ideas: make([]productIdeaEntry, 0, len(data.ProductIdeas)),
		}
		for _, idea := range data.ProductIdeas {
			result.Ideas = append(result.Ideas, productIdeaEntry{
				ID:                  idea.ID.String(),
				Idea:                idea.Idea,
				DetailedExplanation: idea.DetailedExplanation,
				ProblemID:           idea.ProblemID.String(),
				ImageURL:            idea.ImageURL,
			})
		}
		result.Count = len(result.Ideas)

		return jsonResult(result)
	})
}
