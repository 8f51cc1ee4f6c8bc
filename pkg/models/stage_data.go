package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Fixed contract sizes for generated collections.
const (
	// ProblemStatementCount is how many problem statements stage 2 must produce.
	ProblemStatementCount = 4
	// ProductIdeaCount is how many product ideas stage 3 must produce.
	ProductIdeaCount = 3
)

// ============================================================================
// Embedded Entities
// ============================================================================

// ProblemStatement is one problem derived from the document analysis.
// Generated entries come from stage 2 runs; custom entries are supplied by
// the user immediately before a stage 3 run and carry IsCustom=true.
type ProblemStatement struct {
	ID          uuid.UUID `json:"id"`
	Problem     string    `json:"problem"`
	Explanation string    `json:"explanation"`
	IsCustom    bool      `json:"is_custom"`
}

// ProductIdea is one candidate solution generated in stage 3. ProblemID is
// a non-owning back-reference to the problem statement the idea addresses.
// ImageURL is populated concurrently after generation and stays nil when
// image generation failed for this item.
type ProductIdea struct {
	ID                  uuid.UUID `json:"id"`
	Idea                string    `json:"idea"`
	DetailedExplanation string    `json:"detailed_explanation"`
	ProblemID           uuid.UUID `json:"problem_id"`
	ImageURL            *string   `json:"image_url,omitempty"`
}

// ============================================================================
// Typed Stage Payloads
// ============================================================================

// StageData is the tagged union of per-stage payloads, keyed by stage
// number. Payloads are always one of the four concrete types below; they
// are never handled as untyped maps.
type StageData interface {
	stageData()
}

// AnalysisData is the stage 1 payload: the plain-text document analysis.
type AnalysisData struct {
	Analysis string `json:"analysis,omitempty"`
}

// ProblemsData is the stage 2 payload. ProblemStatements holds the
// generated set (replaced wholesale on every stage 2 run); CustomProblems
// grows additively as users supply their own problems for stage 3 runs and
// is never touched by generation.
type ProblemsData struct {
	ProblemStatements []ProblemStatement `json:"problem_statements,omitempty"`
	CustomProblems    []ProblemStatement `json:"custom_problems,omitempty"`
}

// IdeasData is the stage 3 payload: the generated product ideas.
type IdeasData struct {
	ProductIdeas []ProductIdea `json:"product_ideas,omitempty"`
}

// SolutionData is the stage 4 payload: a snapshot of the chosen idea and
// the problem statement it addresses, copied at choice time so later
// upstream edits cannot silently rewrite a finished report.
type SolutionData struct {
	ChosenSolution *ProductIdea      `json:"chosen_solution,omitempty"`
	SourceProblem  *ProblemStatement `json:"source_problem,omitempty"`
}

func (*AnalysisData) stageData() {}
func (*ProblemsData) stageData() {}
func (*IdeasData) stageData()    {}
func (*SolutionData) stageData() {}

// EmptyDataFor returns the zero payload for the given stage number, used
// at project creation and by cascade resets.
func EmptyDataFor(stageNumber int) StageData {
	switch stageNumber {
	case 1:
		return &AnalysisData{}
	case 2:
		return &ProblemsData{}
	case 3:
		return &IdeasData{}
	case 4:
		return &SolutionData{}
	default:
		return nil
	}
}

// DecodeStageData unmarshals raw payload bytes into the concrete type for
// the given stage number. Missing or null payloads decode to the empty
// payload.
func DecodeStageData(stageNumber int, raw json.RawMessage) (StageData, error) {
	data := EmptyDataFor(stageNumber)
	if data == nil {
		return nil, fmt.Errorf("stage number %d out of range 1-%d", stageNumber, StageCount)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode stage %d data: %w", stageNumber, err)
	}
	return data, nil
}

// checkDataType verifies that a payload's concrete type matches the stage
// number it is attached to.
func checkDataType(stageNumber int, data StageData) error {
	if data == nil {
		return fmt.Errorf("stage %d has nil data", stageNumber)
	}
	var ok bool
	switch stageNumber {
	case 1:
		_, ok = data.(*AnalysisData)
	case 2:
		_, ok = data.(*ProblemsData)
	case 3:
		_, ok = data.(*IdeasData)
	case 4:
		_, ok = data.(*SolutionData)
	}
	if !ok {
		return fmt.Errorf("stage %d has payload type %T", stageNumber, data)
	}
	return nil
}

// ============================================================================
// Lookups
// ============================================================================

// FindProblem searches the combined generated + custom lists for the given
// identity. Returns nil if absent.
func (d *ProblemsData) FindProblem(id uuid.UUID) *ProblemStatement {
	for i := range d.ProblemStatements {
		if d.ProblemStatements[i].ID == id {
			return &d.ProblemStatements[i]
		}
	}
	for i := range d.CustomProblems {
		if d.CustomProblems[i].ID == id {
			return &d.CustomProblems[i]
		}
	}
	return nil
}

// FindIdea returns the idea with the given identity, or nil if absent.
func (d *IdeasData) FindIdea(id uuid.UUID) *ProductIdea {
	for i := range d.ProductIdeas {
		if d.ProductIdeas[i].ID == id {
			return &d.ProductIdeas[i]
		}
	}
	return nil
}
