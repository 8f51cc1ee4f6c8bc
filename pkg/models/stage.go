package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StageCount is the fixed number of stages in every project.
const StageCount = 4

// ============================================================================
// Stage Status
// ============================================================================

// StageStatus represents the lifecycle state of a single stage.
// State machine:
//
//	NOT_STARTED → IN_PROGRESS → COMPLETED
//	COMPLETED → NOT_STARTED (cascade reset when an earlier stage is redone)
//
// IN_PROGRESS is only ever observed in memory during a run; persisted
// records hold NOT_STARTED or COMPLETED, so a failed run leaves no
// partial state behind.
type StageStatus string

const (
	StageStatusNotStarted StageStatus = "NOT_STARTED"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
)

// ValidStageStatuses contains all valid stage status values.
var ValidStageStatuses = []StageStatus{
	StageStatusNotStarted,
	StageStatusInProgress,
	StageStatusCompleted,
}

// IsValidStageStatus checks if the given status is valid.
func IsValidStageStatus(s StageStatus) bool {
	for _, v := range ValidStageStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Stage
// ============================================================================

// Stage is one of the four ordered phases of a project. The shape of Data
// is determined entirely by StageNumber; see stage_data.go.
type Stage struct {
	StageNumber int         `json:"stage_number"`
	Status      StageStatus `json:"status"`
	Data        StageData   `json:"data"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// stageAlias mirrors Stage with raw payload bytes for two-phase decoding.
type stageAlias struct {
	StageNumber int             `json:"stage_number"`
	Status      StageStatus     `json:"status"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnmarshalJSON decodes the stage-specific payload into its concrete type
// based on stage_number.
func (s *Stage) UnmarshalJSON(b []byte) error {
	var alias stageAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	data, err := DecodeStageData(alias.StageNumber, alias.Data)
	if err != nil {
		return err
	}
	s.StageNumber = alias.StageNumber
	s.Status = alias.Status
	s.Data = data
	s.CreatedAt = alias.CreatedAt
	s.UpdatedAt = alias.UpdatedAt
	return nil
}

// IsCompleted reports whether the stage has completed a successful run.
func (s *Stage) IsCompleted() bool {
	return s.Status == StageStatusCompleted
}

// NewStages builds the fixed four-stage sequence, all NOT_STARTED with
// empty payloads.
func NewStages(now time.Time) []Stage {
	stages := make([]Stage, StageCount)
	for i := range stages {
		n := i + 1
		stages[i] = Stage{
			StageNumber: n,
			Status:      StageStatusNotStarted,
			Data:        EmptyDataFor(n),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return stages
}

// ============================================================================
// Stage Completion & Cascade
// ============================================================================

// CompleteStage returns a copy of stages where stage stageNumber holds data
// and is COMPLETED, and every later stage is reset to NOT_STARTED with an
// empty payload. This is the single place the cascade is computed; callers
// persist the returned slice atomically so a reader never sees a completed
// stage alongside stale downstream data.
func CompleteStage(stages []Stage, stageNumber int, data StageData, now time.Time) ([]Stage, error) {
	if len(stages) != StageCount {
		return nil, fmt.Errorf("expected %d stages, got %d", StageCount, len(stages))
	}
	if stageNumber < 1 || stageNumber > StageCount {
		return nil, fmt.Errorf("stage number %d out of range 1-%d", stageNumber, StageCount)
	}
	if err := checkDataType(stageNumber, data); err != nil {
		return nil, err
	}

	out := make([]Stage, StageCount)
	copy(out, stages)

	idx := stageNumber - 1
	out[idx].Status = StageStatusCompleted
	out[idx].Data = data
	out[idx].UpdatedAt = now

	for i := idx + 1; i < StageCount; i++ {
		out[i].Status = StageStatusNotStarted
		out[i].Data = EmptyDataFor(i + 1)
		out[i].UpdatedAt = now
	}
	return out, nil
}

// ProjectStatusFor derives the overall project status from its stages:
// COMPLETED exactly when the final stage is COMPLETED.
func ProjectStatusFor(stages []Stage) ProjectStatus {
	if len(stages) == StageCount && stages[StageCount-1].IsCompleted() {
		return ProjectStatusCompleted
	}
	return ProjectStatusInProgress
}
