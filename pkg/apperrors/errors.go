package apperrors

import "errors"

var (
	// ErrNotFound signals that a project, stage, document, or embedded
	// entity does not exist (or is not visible to the requesting user).
	ErrNotFound = errors.New("not found")

	// ErrValidation signals a malformed or contradictory request, such as
	// supplying both a selected problem and a custom problem for stage 3.
	// Deterministic; never retried.
	ErrValidation = errors.New("validation failed")

	// ErrStageNotReady signals that a prerequisite stage has not been
	// completed yet, or that its data is unusable (e.g. empty analysis).
	ErrStageNotReady = errors.New("prerequisite stage not ready")

	// ErrBackendUnavailable signals that the generation backend could not
	// be reached after the full retry chain. Transient; callers may retry
	// the whole stage run later.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrMalformedOutput signals that the backend responded but its output
	// could not be turned into the expected payload shape. Distinct from
	// ErrBackendUnavailable so callers can tell "down" from "confused".
	ErrMalformedOutput = errors.New("generation output malformed")
)
