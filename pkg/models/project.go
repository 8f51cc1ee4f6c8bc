package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Project Status
// ============================================================================

// ProjectStatus represents the overall lifecycle state of a project.
// A project is IN_PROGRESS from creation until stage 4 completes; any
// cascade that resets stage 4 moves it back to IN_PROGRESS.
type ProjectStatus string

const (
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
)

// ValidProjectStatuses contains all valid project status values.
var ValidProjectStatuses = []ProjectStatus{
	ProjectStatusInProgress,
	ProjectStatusCompleted,
}

// IsValidProjectStatus checks if the given status is valid.
func IsValidProjectStatus(s ProjectStatus) bool {
	for _, v := range ValidProjectStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Project
// ============================================================================

// Project is the aggregate root of the ideation workflow. It owns exactly
// four embedded stages; stages are never added, removed, or reordered.
type Project struct {
	ID            uuid.UUID     `json:"id"`
	OwnerID       string        `json:"owner_id"`
	ProblemDomain string        `json:"problem_domain"`
	DocumentID    *uuid.UUID    `json:"document_id,omitempty"`
	Status        ProjectStatus `json:"status"`
	Stages        []Stage       `json:"stages"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewProject creates a project with four NOT_STARTED stages.
func NewProject(ownerID, problemDomain string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		ProblemDomain: problemDomain,
		Status:        ProjectStatusInProgress,
		Stages:        NewStages(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Stage returns the stage with the given number (1-4).
func (p *Project) Stage(stageNumber int) (*Stage, error) {
	if stageNumber < 1 || stageNumber > StageCount {
		return nil, fmt.Errorf("stage number %d out of range 1-%d", stageNumber, StageCount)
	}
	if len(p.Stages) != StageCount {
		return nil, fmt.Errorf("project %s has %d stages, want %d", p.ID, len(p.Stages), StageCount)
	}
	return &p.Stages[stageNumber-1], nil
}

// Validate checks the structural invariants of the project: exactly four
// stages numbered 1-4 in order, each with a payload matching its number.
func (p *Project) Validate() error {
	if len(p.Stages) != StageCount {
		return fmt.Errorf("project must have exactly %d stages, has %d", StageCount, len(p.Stages))
	}
	for i := range p.Stages {
		s := &p.Stages[i]
		if s.StageNumber != i+1 {
			return fmt.Errorf("stage at index %d has stage_number %d", i, s.StageNumber)
		}
		if !IsValidStageStatus(s.Status) {
			return fmt.Errorf("stage %d has invalid status %q", s.StageNumber, s.Status)
		}
		if err := checkDataType(s.StageNumber, s.Data); err != nil {
			return err
		}
	}
	if !IsValidProjectStatus(p.Status) {
		return fmt.Errorf("invalid project status %q", p.Status)
	}
	return nil
}
