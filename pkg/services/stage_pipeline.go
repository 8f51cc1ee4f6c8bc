package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
	"github.com/zelta-inc/zelta-engine/pkg/audit"
	"github.com/zelta-inc/zelta-engine/pkg/jsonutil"
	"github.com/zelta-inc/zelta-engine/pkg/llm"
	"github.com/zelta-inc/zelta-engine/pkg/metrics"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/prompts"
	"github.com/zelta-inc/zelta-engine/pkg/repositories"
)

// StagePipeline runs the four ordered stages of the ideation workflow.
// Every method loads the project fresh, checks the stage-order
// preconditions, does the work, and persists the resulting stages and
// project status in a single write, so a failed run leaves the stored
// project exactly as it was.
type StagePipeline interface {
	// RunAnalysis executes stage 1: analyze the submitted document.
	RunAnalysis(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Stage, error)

	// RunAnalysisStream is RunAnalysis with the generated text streamed to
	// onDelta as it arrives. The stage is persisted before the method
	// returns, so callers can signal completion to their client only once
	// the result is durable.
	RunAnalysisStream(ctx context.Context, projectID uuid.UUID, ownerID string, onDelta func(delta string)) (*models.Stage, error)

	// GenerateProblems executes stage 2: derive problem statements from
	// the stage 1 analysis. Re-running replaces the generated set but
	// keeps any user-supplied custom problems.
	GenerateProblems(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Stage, error)

	// GenerateIdeas executes stage 3 against exactly one target problem:
	// either selectedProblemID referencing an existing statement, or
	// customProblem text supplied by the user. A custom problem is
	// screened, given a fresh identity, and persisted into stage 2 before
	// any generation happens, so it survives a failed run.
	GenerateIdeas(ctx context.Context, projectID uuid.UUID, ownerID string, selectedProblemID *uuid.UUID, customProblem string) (*models.Stage, error)

	// ChooseSolution executes stage 4: snapshot the chosen idea and its
	// source problem into the final stage, completing the project. No
	// generation happens. Returns the stage together with the formatted
	// solution report.
	ChooseSolution(ctx context.Context, projectID uuid.UUID, ownerID string, chosenIdeaID uuid.UUID) (*models.Stage, string, error)

	// RegenerateIdeaImage re-runs image generation for one stage 3 idea,
	// optionally steering the prompt with user feedback. The idea's image
	// reference is replaced with the new result, or cleared when
	// generation failed. Stage statuses are not touched.
	RegenerateIdeaImage(ctx context.Context, projectID uuid.UUID, ownerID string, ideaID uuid.UUID, feedback string) (*models.ProductIdea, error)
}

// stagePipeline implements StagePipeline.
type stagePipeline struct {
	projectRepo repositories.ProjectRepository
	documents   DocumentService
	chain       *llm.InvocationChain
	images      ImageService
	screener    *audit.Screener
	logger      *zap.Logger
}

// NewStagePipeline creates the pipeline service.
func NewStagePipeline(
	projectRepo repositories.ProjectRepository,
	documents DocumentService,
	chain *llm.InvocationChain,
	images ImageService,
	screener *audit.Screener,
	logger *zap.Logger,
) StagePipeline {
	return &stagePipeline{
		projectRepo: projectRepo,
		documents:   documents,
		chain:       chain,
		images:      images,
		screener:    screener,
		logger:      logger.Named("pipeline"),
	}
}

// ============================================================================
// Model Response Shapes
// ============================================================================

// generatedProblem and generatedIdea mirror the JSON shapes the prompts
// instruct the model to return. Identities and back-references are assigned
// here, never by the model. Decoding is tolerant of the drift models
// produce for individual fields: values that arrive as numbers or booleans,
// and mildly renamed keys.
type generatedProblem struct {
	Problem     string
	Explanation string
}

func (g *generatedProblem) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	g.Problem = jsonutil.FlexibleField(fields, "problem", "problem_statement", "title")
	g.Explanation = jsonutil.FlexibleField(fields, "explanation", "description")
	return nil
}

type problemsResponse struct {
	ProblemStatements []generatedProblem `json:"problem_statements"`
}

type generatedIdea struct {
	Idea                string
	DetailedExplanation string
}

func (g *generatedIdea) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	g.Idea = jsonutil.FlexibleField(fields, "idea", "title", "name")
	g.DetailedExplanation = jsonutil.FlexibleField(fields, "detailed_explanation", "explanation", "description")
	return nil
}

type ideasResponse struct {
	ProductIdeas []generatedIdea `json:"product_ideas"`
}

// ============================================================================
// Stage 1: Document Analysis
// ============================================================================

// RunAnalysis executes stage 1 as a single-shot generation.
func (s *stagePipeline) RunAnalysis(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Stage, error) {
	return s.runAnalysis(ctx, projectID, ownerID, nil)
}

// RunAnalysisStream executes stage 1, forwarding deltas to onDelta.
func (s *stagePipeline) RunAnalysisStream(ctx context.Context, projectID uuid.UUID, ownerID string, onDelta func(delta string)) (*models.Stage, error) {
	return s.runAnalysis(ctx, projectID, ownerID, onDelta)
}

func (s *stagePipeline) runAnalysis(ctx context.Context, projectID uuid.UUID, ownerID string, onDelta func(delta string)) (stage *models.Stage, err error) {
	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if project.DocumentID == nil {
		return nil, fmt.Errorf("no document submitted for analysis: %w", apperrors.ErrValidation)
	}
	documentText, err := s.documents.GetText(ctx, *project.DocumentID)
	if err != nil {
		return nil, err
	}

	defer observeRun(1, time.Now(), &err)

	prompt := prompts.Stage1Analysis(documentText).Render()
	text, err := s.invokeModel(ctx, prompt, onDelta)
	if err != nil {
		return nil, err
	}

	analysis := strings.TrimSpace(text)
	if analysis == "" {
		return nil, fmt.Errorf("analysis came back empty: %w", apperrors.ErrMalformedOutput)
	}

	stage, err = s.completeAndPersist(ctx, project, 1, &models.AnalysisData{Analysis: analysis})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stage 1 completed",
		zap.String("project_id", project.ID.String()),
		zap.Int("analysis_chars", len(analysis)))
	return stage, nil
}

// ============================================================================
// Stage 2: Problem Statements
// ============================================================================

// GenerateProblems executes stage 2.
func (s *stagePipeline) GenerateProblems(ctx context.Context, projectID uuid.UUID, ownerID string) (stage *models.Stage, err error) {
	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if err = requireCompletedThrough(project, 1); err != nil {
		return nil, err
	}
	analysis, err := analysisText(project)
	if err != nil {
		return nil, err
	}

	defer observeRun(2, time.Now(), &err)

	prompt := prompts.Stage2Problems(analysis, s.documentContext(ctx, project)).Render()
	text, err := s.invokeModel(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}

	resp, perr := llm.ParseResponse[problemsResponse](text)
	if perr != nil {
		err = fmt.Errorf("problem statements did not parse: %w", apperrors.ErrMalformedOutput)
		return nil, err
	}
	generated, err := buildProblems(resp)
	if err != nil {
		return nil, err
	}

	// A re-run replaces the generated set wholesale; custom problems are
	// user data and carry over.
	data := &models.ProblemsData{ProblemStatements: generated}
	if existing, ok := stageData[*models.ProblemsData](project, 2); ok {
		data.CustomProblems = existing.CustomProblems
	}

	stage, err = s.completeAndPersist(ctx, project, 2, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stage 2 completed",
		zap.String("project_id", project.ID.String()),
		zap.Int("problem_count", len(generated)))
	return stage, nil
}

// ============================================================================
// Stage 3: Product Ideas
// ============================================================================

// GenerateIdeas executes stage 3.
func (s *stagePipeline) GenerateIdeas(ctx context.Context, projectID uuid.UUID, ownerID string, selectedProblemID *uuid.UUID, customProblem string) (stage *models.Stage, err error) {
	customProblem = strings.TrimSpace(customProblem)
	hasSelection := selectedProblemID != nil
	hasCustom := customProblem != ""
	if hasSelection == hasCustom {
		return nil, fmt.Errorf("provide exactly one of selected_problem_id or custom_problem: %w", apperrors.ErrValidation)
	}

	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if err = requireCompletedThrough(project, 2); err != nil {
		return nil, err
	}
	analysis, err := analysisText(project)
	if err != nil {
		return nil, err
	}
	problems, ok := stageData[*models.ProblemsData](project, 2)
	if !ok {
		return nil, fmt.Errorf("stage 2 holds no problem data: %w", apperrors.ErrStageNotReady)
	}

	var target models.ProblemStatement
	if hasSelection {
		found := problems.FindProblem(*selectedProblemID)
		if found == nil {
			return nil, fmt.Errorf("problem statement %s not found: %w", *selectedProblemID, apperrors.ErrNotFound)
		}
		target = *found
	} else {
		if err = s.screener.ScreenField(ctx, project.ID, "custom_problem", customProblem); err != nil {
			return nil, err
		}
		target = models.ProblemStatement{
			ID:       uuid.New(),
			Problem:  customProblem,
			IsCustom: true,
		}
		if err = s.appendCustomProblem(ctx, project, problems, target); err != nil {
			return nil, err
		}
	}

	defer observeRun(3, time.Now(), &err)

	prompt := prompts.Stage3Ideas(analysis, target.Problem, target.Explanation, s.documentContext(ctx, project)).Render()
	text, err := s.invokeModel(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}

	resp, perr := llm.ParseResponse[ideasResponse](text)
	if perr != nil {
		err = fmt.Errorf("product ideas did not parse: %w", apperrors.ErrMalformedOutput)
		return nil, err
	}
	ideas, err := buildIdeas(resp, target.ID)
	if err != nil {
		return nil, err
	}

	ideas = s.images.AttachImages(ctx, ideas, project.ProblemDomain)

	stage, err = s.completeAndPersist(ctx, project, 3, &models.IdeasData{ProductIdeas: ideas})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stage 3 completed",
		zap.String("project_id", project.ID.String()),
		zap.String("problem_id", target.ID.String()),
		zap.Bool("custom_problem", target.IsCustom),
		zap.Int("idea_count", len(ideas)))
	return stage, nil
}

// appendCustomProblem persists a user-supplied problem into the stage 2
// payload before generation starts, so the statement survives even if the
// run that follows fails. Statuses are left untouched; this is an additive
// edit, not a stage run, and in particular it must not cascade.
func (s *stagePipeline) appendCustomProblem(ctx context.Context, project *models.Project, data *models.ProblemsData, problem models.ProblemStatement) error {
	data.CustomProblems = append(data.CustomProblems, problem)

	stage2, err := project.Stage(2)
	if err != nil {
		return err
	}
	stage2.UpdatedAt = time.Now().UTC()

	if err := s.projectRepo.UpdateStages(ctx, project.ID, project.OwnerID, project.Stages, project.Status); err != nil {
		return fmt.Errorf("persist custom problem: %w", err)
	}

	s.logger.Info("Custom problem added",
		zap.String("project_id", project.ID.String()),
		zap.String("problem_id", problem.ID.String()))
	return nil
}

// ============================================================================
// Stage 4: Solution Choice
// ============================================================================

// ChooseSolution executes stage 4.
func (s *stagePipeline) ChooseSolution(ctx context.Context, projectID uuid.UUID, ownerID string, chosenIdeaID uuid.UUID) (stage *models.Stage, report string, err error) {
	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, "", err
	}
	if err = requireCompletedThrough(project, 3); err != nil {
		return nil, "", err
	}

	ideas, ok := stageData[*models.IdeasData](project, 3)
	if !ok {
		return nil, "", fmt.Errorf("stage 3 holds no idea data: %w", apperrors.ErrStageNotReady)
	}
	idea := ideas.FindIdea(chosenIdeaID)
	if idea == nil {
		return nil, "", fmt.Errorf("product idea %s not found: %w", chosenIdeaID, apperrors.ErrNotFound)
	}

	defer observeRun(4, time.Now(), &err)

	// Snapshot the idea and its source problem so later upstream re-runs
	// cannot rewrite a finished report.
	chosen := *idea
	if idea.ImageURL != nil {
		url := *idea.ImageURL
		chosen.ImageURL = &url
	}

	var source *models.ProblemStatement
	if problems, ok := stageData[*models.ProblemsData](project, 2); ok {
		if found := problems.FindProblem(idea.ProblemID); found != nil {
			copied := *found
			source = &copied
		}
	}
	if source == nil {
		s.logger.Warn("Source problem for chosen idea is missing; report will omit it",
			zap.String("project_id", project.ID.String()),
			zap.String("idea_id", idea.ID.String()),
			zap.String("problem_id", idea.ProblemID.String()))
	}

	solution := &models.SolutionData{ChosenSolution: &chosen, SourceProblem: source}
	stage, err = s.completeAndPersist(ctx, project, 4, solution)
	if err != nil {
		return nil, "", err
	}

	analysis := ""
	if data, ok := stageData[*models.AnalysisData](project, 1); ok {
		analysis = data.Analysis
	}
	problemsExplored := 0
	if problems, ok := stageData[*models.ProblemsData](project, 2); ok {
		problemsExplored = len(problems.ProblemStatements) + len(problems.CustomProblems)
	}
	report = BuildSolutionReport(project, analysis, solution, problemsExplored, len(ideas.ProductIdeas))

	s.logger.Info("Stage 4 completed, project is complete",
		zap.String("project_id", project.ID.String()),
		zap.String("idea_id", chosen.ID.String()))
	return stage, report, nil
}

// ============================================================================
// Image Regeneration
// ============================================================================

// RegenerateIdeaImage replaces one idea's image in place.
func (s *stagePipeline) RegenerateIdeaImage(ctx context.Context, projectID uuid.UUID, ownerID string, ideaID uuid.UUID, feedback string) (*models.ProductIdea, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback != "" {
		if err := s.screener.ScreenField(ctx, projectID, "feedback", feedback); err != nil {
			return nil, err
		}
	}

	project, err := s.projectRepo.Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := requireCompletedThrough(project, 3); err != nil {
		return nil, err
	}

	ideas, ok := stageData[*models.IdeasData](project, 3)
	if !ok {
		return nil, fmt.Errorf("stage 3 holds no idea data: %w", apperrors.ErrStageNotReady)
	}
	idea := ideas.FindIdea(ideaID)
	if idea == nil {
		return nil, fmt.Errorf("product idea %s not found: %w", ideaID, apperrors.ErrNotFound)
	}

	// A stage 4 snapshot of this idea, if one exists, keeps its original
	// image by design.
	idea.ImageURL = s.images.GenerateImageURL(ctx, *idea, project.ProblemDomain, feedback)

	stage3, err := project.Stage(3)
	if err != nil {
		return nil, err
	}
	stage3.UpdatedAt = time.Now().UTC()

	if err := s.projectRepo.UpdateStages(ctx, project.ID, project.OwnerID, project.Stages, project.Status); err != nil {
		return nil, fmt.Errorf("persist regenerated image: %w", err)
	}

	updated := *idea
	s.logger.Info("Idea image regenerated",
		zap.String("project_id", project.ID.String()),
		zap.String("idea_id", ideaID.String()),
		zap.Bool("image_generated", idea.ImageURL != nil))
	return &updated, nil
}

// ============================================================================
// Shared Plumbing
// ============================================================================

// invokeModel runs one chain call, streaming when onDelta is non-nil. A
// failure surfaces as the generic backend-unavailable class; the chain has
// already logged the specifics.
func (s *stagePipeline) invokeModel(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	var (
		text string
		err  error
	)
	if onDelta != nil {
		text, err = s.chain.InvokeStream(ctx, prompt, onDelta)
	} else {
		text, err = s.chain.Invoke(ctx, prompt)
	}
	if err != nil {
		metrics.RecordGenerationAttempt(s.chain.Model(), metrics.OutcomeError)
		return "", apperrors.ErrBackendUnavailable
	}
	metrics.RecordGenerationAttempt(s.chain.Model(), metrics.OutcomeSuccess)
	return text, nil
}

// completeAndPersist applies the completion cascade for stageNumber and
// writes stages and derived project status in one update. The in-memory
// project is refreshed on success.
func (s *stagePipeline) completeAndPersist(ctx context.Context, project *models.Project, stageNumber int, data models.StageData) (*models.Stage, error) {
	stages, err := models.CompleteStage(project.Stages, stageNumber, data, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	status := models.ProjectStatusFor(stages)
	if err := s.projectRepo.UpdateStages(ctx, project.ID, project.OwnerID, stages, status); err != nil {
		return nil, fmt.Errorf("persist stage %d: %w", stageNumber, err)
	}
	project.Stages = stages
	project.Status = status
	return &stages[stageNumber-1], nil
}

// documentContext loads the project's document text for prompt enrichment.
// Best-effort: stages 2 and 3 run off the analysis, so a missing document
// downgrades to an empty excerpt rather than failing the run.
func (s *stagePipeline) documentContext(ctx context.Context, project *models.Project) string {
	if project.DocumentID == nil {
		return ""
	}
	text, err := s.documents.GetText(ctx, *project.DocumentID)
	if err != nil {
		s.logger.Warn("Could not load document for prompt context",
			zap.String("project_id", project.ID.String()),
			zap.Error(err))
		return ""
	}
	return text
}

// requireCompletedThrough checks that stages 1..through are all COMPLETED.
func requireCompletedThrough(project *models.Project, through int) error {
	for n := 1; n <= through; n++ {
		stage, err := project.Stage(n)
		if err != nil {
			return err
		}
		if !stage.IsCompleted() {
			return fmt.Errorf("stage %d is not completed: %w", n, apperrors.ErrStageNotReady)
		}
	}
	return nil
}

// analysisText returns the stage 1 analysis, rejecting an empty one: there
// is nothing downstream stages could generate from.
func analysisText(project *models.Project) (string, error) {
	data, ok := stageData[*models.AnalysisData](project, 1)
	if !ok || strings.TrimSpace(data.Analysis) == "" {
		return "", fmt.Errorf("stage 1 analysis is empty: %w", apperrors.ErrStageNotReady)
	}
	return data.Analysis, nil
}

// stageData returns the typed payload of the given stage, or false when the
// stage is absent or holds a different shape.
func stageData[T models.StageData](project *models.Project, stageNumber int) (T, bool) {
	var zero T
	stage, err := project.Stage(stageNumber)
	if err != nil {
		return zero, false
	}
	data, ok := stage.Data.(T)
	return data, ok
}

// buildProblems validates the extracted payload against the fixed contract
// and assigns identities.
func buildProblems(resp problemsResponse) ([]models.ProblemStatement, error) {
	if len(resp.ProblemStatements) != models.ProblemStatementCount {
		return nil, fmt.Errorf("expected %d problem statements, got %d: %w",
			models.ProblemStatementCount, len(resp.ProblemStatements), apperrors.ErrMalformedOutput)
	}
	out := make([]models.ProblemStatement, len(resp.ProblemStatements))
	for i, p := range resp.ProblemStatements {
		problem := strings.TrimSpace(p.Problem)
		if problem == "" {
			return nil, fmt.Errorf("problem statement %d is empty: %w", i+1, apperrors.ErrMalformedOutput)
		}
		out[i] = models.ProblemStatement{
			ID:          uuid.New(),
			Problem:     problem,
			Explanation: strings.TrimSpace(p.Explanation),
		}
	}
	return out, nil
}

// buildIdeas validates the extracted payload against the fixed contract,
// assigns identities, and tags every idea with the problem it addresses.
func buildIdeas(resp ideasResponse, problemID uuid.UUID) ([]models.ProductIdea, error) {
	if len(resp.ProductIdeas) != models.ProductIdeaCount {
		return nil, fmt.Errorf("expected %d product ideas, got %d: %w",
			models.ProductIdeaCount, len(resp.ProductIdeas), apperrors.ErrMalformedOutput)
	}
	out := make([]models.ProductIdea, len(resp.ProductIdeas))
	for i, idea := range resp.ProductIdeas {
		title := strings.TrimSpace(idea.Idea)
		if title == "" {
			return nil, fmt.Errorf("product idea %d is empty: %w", i+1, apperrors.ErrMalformedOutput)
		}
		out[i] = models.ProductIdea{
			ID:                  uuid.New(),
			Idea:                title,
			DetailedExplanation: strings.TrimSpace(idea.DetailedExplanation),
			ProblemID:           problemID,
		}
	}
	return out, nil
}

// observeRun records the outcome and duration of a stage run that made it
// past its preconditions. Used via defer with a named error return.
func observeRun(stage int, start time.Time, errp *error) {
	outcome := metrics.OutcomeSuccess
	if *errp != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveStageRun(stage, outcome, time.Since(start))
}

// Ensure stagePipeline implements StagePipeline at compile time.
var _ StagePipeline = (*stagePipeline)(nil)
