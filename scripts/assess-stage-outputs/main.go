// assess-stage-outputs evaluates the quality of stored generation output for
// one project using ONLY deterministic checks (no LLM-as-judge).
//
// This tool assesses what the generation pipeline persisted, not code
// quality. Focus areas:
// - Stage sequencing: statuses valid, completion order monotonic
// - Contract sizes: exactly 4 problem statements, exactly 3 product ideas
// - Referential integrity: ideas reference existing problems, the chosen
//   solution references an existing idea
// - Completeness: required text fields non-empty, IDs unique
// - Image artifacts: URLs well-formed; missing images are reported but do
//   not fail the assessment (image failures are an accepted outcome)
//
// Usage: go run ./scripts/assess-stage-outputs <project-id>
//
// Database connection: Uses standard PG* environment variables
//
// NOTE: This standalone assessment script reads the project row with a
// direct SQL query rather than the repository layer. This is intentional to
// keep the script self-contained.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// CheckResult is one named assessment with its findings.
type CheckResult struct {
	Name   string   `json:"name"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <project-id>\n", os.Args[0])
		os.Exit(1)
	}

	projectID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid project ID: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	// =========================================================================
	// Phase 1: Data Loading
	// =========================================================================
	fmt.Fprintf(os.Stderr, "Phase 1: Loading project...\n")

	var (
		problemDomain string
		status        string
		stagesJSON    []byte
	)
	if err := conn.QueryRow(ctx, `
		SELECT problem_domain, status, stages
		FROM engine_projects
		WHERE id = $1
	`, projectID).Scan(&problemDomain, &status, &stagesJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load project: %v\n", err)
		os.Exit(1)
	}

	var stages []models.Stage
	if err := json.Unmarshal(stagesJSON, &stages); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode stages: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "  Loaded project %q (%s), %d stages\n", problemDomain, status, len(stages))

	// =========================================================================
	// Phase 2: Deterministic Checks
	// =========================================================================
	fmt.Fprintf(os.Stderr, "Phase 2: Running checks...\n")

	results := []CheckResult{
		checkSequencing(status, stages),
	}
	if len(stages) == models.StageCount {
		results = append(results,
			checkAnalysis(stages[0]),
			checkProblems(stages[1]),
			checkIdeas(stages[1], stages[2]),
			checkSolution(stages[2], stages[3]),
		)
	}

	// =========================================================================
	// Phase 3: Report
	// =========================================================================
	printReport(projectID, problemDomain, results)

	for _, r := range results {
		if !r.Passed {
			os.Exit(1)
		}
	}
}

// checkSequencing validates the stage list shape and the completion order.
func checkSequencing(projectStatus string, stages []models.Stage) CheckResult {
	result := CheckResult{Name: "stage sequencing", Passed: true}

	if len(stages) != models.StageCount {
		result.fail("expected %d stages, found %d", models.StageCount, len(stages))
		return result
	}

	sawIncomplete := false
	for i, stage := range stages {
		if stage.StageNumber != i+1 {
			result.fail("stage at position %d carries stage_number %d", i+1, stage.StageNumber)
		}
		if !models.IsValidStageStatus(stage.Status) {
			result.fail("stage %d has unknown status %q", stage.StageNumber, stage.Status)
		}
		// IN_PROGRESS only ever exists in memory during a run.
		if stage.Status == models.StageStatusInProgress {
			result.fail("stage %d persisted as IN_PROGRESS; a run left partial state", stage.StageNumber)
		}
		if stage.IsCompleted() && sawIncomplete {
			result.fail("stage %d is COMPLETED after an earlier incomplete stage", stage.StageNumber)
		}
		if !stage.IsCompleted() {
			sawIncomplete = true
		}
	}

	finalDone := stages[models.StageCount-1].IsCompleted()
	if finalDone && projectStatus != string(models.ProjectStatusCompleted) {
		result.fail("stage %d is COMPLETED but project status is %q", models.StageCount, projectStatus)
	}
	if !finalDone && projectStatus == string(models.ProjectStatusCompleted) {
		result.fail("project status is COMPLETED but stage %d is not", models.StageCount)
	}
	return result
}

// checkAnalysis validates the stage 1 payload.
func checkAnalysis(stage models.Stage) CheckResult {
	result := CheckResult{Name: "stage 1 analysis", Passed: true}
	if !stage.IsCompleted() {
		result.skip("stage 1 not completed")
		return result
	}

	data, ok := stage.Data.(*models.AnalysisData)
	if !ok {
		result.fail("stage 1 payload has type %T", stage.Data)
		return result
	}
	if data.Analysis == "" {
		result.fail("completed stage 1 has an empty analysis")
	}
	return result
}

// checkProblems validates the stage 2 payload.
func checkProblems(stage models.Stage) CheckResult {
	result := CheckResult{Name: "stage 2 problem statements", Passed: true}
	if !stage.IsCompleted() {
		result.skip("stage 2 not completed")
		return result
	}

	data, ok := stage.Data.(*models.ProblemsData)
	if !ok {
		result.fail("stage 2 payload has type %T", stage.Data)
		return result
	}

	if len(data.ProblemStatements) != models.ProblemStatementCount {
		result.fail("expected %d generated problem statements, found %d",
			models.ProblemStatementCount, len(data.ProblemStatements))
	}

	seen := map[uuid.UUID]bool{}
	for i, p := range data.ProblemStatements {
		if p.ID == uuid.Nil {
			result.fail("generated problem %d has a nil ID", i+1)
		}
		if seen[p.ID] {
			result.fail("duplicate problem ID %s", p.ID)
		}
		seen[p.ID] = true
		if p.Problem == "" {
			result.fail("generated problem %d has empty problem text", i+1)
		}
		if p.Explanation == "" {
			result.fail("generated problem %d has empty explanation", i+1)
		}
		if p.IsCustom {
			result.fail("generated problem %d is flagged is_custom", i+1)
		}
	}
	for i, p := range data.CustomProblems {
		if p.ID == uuid.Nil {
			result.fail("custom problem %d has a nil ID", i+1)
		}
		if seen[p.ID] {
			result.fail("duplicate problem ID %s", p.ID)
		}
		seen[p.ID] = true
		if p.Problem == "" {
			result.fail("custom problem %d has empty problem text", i+1)
		}
		// Custom problems carry no explanation; only the flag matters.
		if !p.IsCustom {
			result.fail("custom problem %d is not flagged is_custom", i+1)
		}
	}
	return result
}

// checkIdeas validates the stage 3 payload against the stage 2 problems.
func checkIdeas(problemsStage, stage models.Stage) CheckResult {
	result := CheckResult{Name: "stage 3 product ideas", Passed: true}
	if !stage.IsCompleted() {
		result.skip("stage 3 not completed")
		return result
	}

	data, ok := stage.Data.(*models.IdeasData)
	if !ok {
		result.fail("stage 3 payload has type %T", stage.Data)
		return result
	}

	if len(data.ProductIdeas) != models.ProductIdeaCount {
		result.fail("expected %d product ideas, found %d",
			models.ProductIdeaCount, len(data.ProductIdeas))
	}

	knownProblems := problemIDs(problemsStage)
	seen := map[uuid.UUID]bool{}
	missingImages := 0
	for i, idea := range data.ProductIdeas {
		if idea.ID == uuid.Nil {
			result.fail("idea %d has a nil ID", i+1)
		}
		if seen[idea.ID] {
			result.fail("duplicate idea ID %s", idea.ID)
		}
		seen[idea.ID] = true
		if idea.Idea == "" {
			result.fail("idea %d has empty idea text", i+1)
		}
		if idea.DetailedExplanation == "" {
			result.fail("idea %d has empty detailed explanation", i+1)
		}
		if !knownProblems[idea.ProblemID] {
			result.fail("idea %d references unknown problem %s", i+1, idea.ProblemID)
		}
		if idea.ImageURL == nil {
			missingImages++
			continue
		}
		if u, err := url.Parse(*idea.ImageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result.fail("idea %d has a malformed image URL %q", i+1, *idea.ImageURL)
		}
	}
	if missingImages > 0 {
		// Reported, not failed: image generation is allowed to miss.
		result.Issues = append(result.Issues,
			fmt.Sprintf("note: %d of %d ideas have no image", missingImages, len(data.ProductIdeas)))
	}
	return result
}

// checkSolution validates the stage 4 snapshot against the stage 3 ideas.
func checkSolution(ideasStage, stage models.Stage) CheckResult {
	result := CheckResult{Name: "stage 4 chosen solution", Passed: true}
	if !stage.IsCompleted() {
		result.skip("stage 4 not completed")
		return result
	}

	data, ok := stage.Data.(*models.SolutionData)
	if !ok {
		result.fail("stage 4 payload has type %T", stage.Data)
		return result
	}
	if data.ChosenSolution == nil {
		result.fail("completed stage 4 has no chosen solution")
		return result
	}
	if data.SourceProblem == nil {
		result.fail("completed stage 4 has no source problem snapshot")
		return result
	}

	if ideas, ok := ideasStage.Data.(*models.IdeasData); ok {
		found := false
		for _, idea := range ideas.ProductIdeas {
			if idea.ID == data.ChosenSolution.ID {
				found = true
				break
			}
		}
		if !found {
			result.fail("chosen solution %s is not among the stage 3 ideas", data.ChosenSolution.ID)
		}
	}
	if data.SourceProblem.ID != data.ChosenSolution.ProblemID {
		result.fail("source problem %s does not match the chosen idea's problem %s",
			data.SourceProblem.ID, data.ChosenSolution.ProblemID)
	}
	return result
}

// problemIDs collects every problem statement ID, generated and custom.
func problemIDs(stage models.Stage) map[uuid.UUID]bool {
	ids := map[uuid.UUID]bool{}
	if data, ok := stage.Data.(*models.ProblemsData); ok {
		for _, p := range data.ProblemStatements {
			ids[p.ID] = true
		}
		for _, p := range data.CustomProblems {
			ids[p.ID] = true
		}
	}
	return ids
}

func printReport(projectID uuid.UUID, problemDomain string, results []CheckResult) {
	fmt.Println()
	fmt.Println("Stage Output Assessment")
	fmt.Printf("Project: %s (%s)\n", projectID, problemDomain)
	fmt.Println()

	passed := 0
	for _, r := range results {
		status := "✓ PASS"
		if !r.Passed {
			status = "✗ FAIL"
		} else {
			passed++
		}
		fmt.Printf("%s  %s\n", status, r.Name)
		for _, issue := range r.Issues {
			fmt.Printf("        %s\n", issue)
		}
	}
	fmt.Printf("\n%d/%d checks passed\n", passed, len(results))
}

func (r *CheckResult) fail(format string, args ...interface{}) {
	r.Passed = false
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

func (r *CheckResult) skip(reason string) {
	r.Issues = append(r.Issues, "skipped: "+reason)
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "postgres")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "zelta_engine")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
