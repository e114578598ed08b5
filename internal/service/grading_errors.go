package service

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors below wrap one of these so callers can branch
// with errors.Is on the class alone.
var (
	// ErrNotFound is the class of unresolved session, record, question or submission references.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStateTransition is the class of lifecycle violations.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

var (
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("grading session %w", ErrNotFound)
	ErrRecordNotFound     = fmt.Errorf("grading record %w", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("question %w", ErrNotFound)
)

var (
	// ErrRegradeInProgress is returned when a regrade targets a session that is still IN_PROGRESS.
	ErrRegradeInProgress = fmt.Errorf("%w: regrade already underway", ErrInvalidStateTransition)
	// ErrSessionAlreadyCompleted is returned by StartGrading once the current session is COMPLETED.
	ErrSessionAlreadyCompleted = fmt.Errorf("%w: grading already completed, request a regrade instead", ErrInvalidStateTransition)
	// ErrObjectiveRecordLocked is returned when a manual or AI score targets an objective question.
	ErrObjectiveRecordLocked = fmt.Errorf("%w: objective questions are scored automatically", ErrInvalidStateTransition)
)

// ErrGradingIncomplete indicates at least one record of the session has no score.
var ErrGradingIncomplete = errors.New("grading incomplete: some records are unscored")

// ErrInvalidScore indicates a score outside [0, question points].
var ErrInvalidScore = errors.New("invalid score")

// ErrInvalidConfidence indicates a confidence outside [0, 1].
var ErrInvalidConfidence = errors.New("invalid confidence")

// ErrAggregation indicates a total was requested before every record was graded.
var ErrAggregation = errors.New("cannot aggregate partially graded session")

// ErrScorerFailed wraps failures of the external AI scorer for a single record.
var ErrScorerFailed = errors.New("ai scorer failed")

// ErrScorerUnavailable indicates no AI scorer is configured.
var ErrScorerUnavailable = errors.New("ai scorer unavailable")
