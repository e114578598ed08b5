package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// RegradeService supersedes a completed session with the next version.
type RegradeService interface {
	StartRegrading(ctx context.Context, originalSessionID uint, actor ActivityActor) (dto.GradingSessionResponse, error)
}

type regradeService struct {
	sessions  repository.GradingSessionRepository
	questions repository.QuestionRepository
	grader    *AutoGrader
	activity  ActivityRecorder
	events    GradingEventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRegradeService constructs the regrade versioner. grader and events may be nil.
func NewRegradeService(sessions repository.GradingSessionRepository, questions repository.QuestionRepository, grader *AutoGrader, activity ActivityRecorder, events GradingEventPublisher, logger zerolog.Logger) RegradeService {
	if grader == nil {
		grader = NewAutoGrader()
	}
	if events == nil {
		events = noopEventPublisher{}
	}
	return &regradeService{
		sessions:  sessions,
		questions: questions,
		grader:    grader,
		activity:  activity,
		events:    events,
		logger:    logger.With().Str("component", "regrade_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/regrade"),
	}
}

func (s *regradeService) StartRegrading(ctx context.Context, originalSessionID uint, actor ActivityActor) (dto.GradingSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.session.regrade", trace.WithAttributes(
		attribute.Int64("grading.original_session_id", int64(originalSessionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	original, err := s.sessions.GetByID(ctx, originalSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "session_not_found")
			return dto.GradingSessionResponse{}, ErrSessionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_lookup_failed")
		return dto.GradingSessionResponse{}, err
	}

	switch original.Status {
	case models.GradingSessionStatusInProgress:
		span.SetStatus(codes.Error, "regrade_in_progress")
		return dto.GradingSessionResponse{}, ErrRegradeInProgress
	case models.GradingSessionStatusCompleted:
	default:
		span.SetStatus(codes.Error, "session_superseded")
		return dto.GradingSessionResponse{}, ErrInvalidStateTransition
	}

	records := make([]models.QuestionGradingRecord, 0, len(original.Records))
	for _, record := range original.Records {
		records = append(records, s.grader.Reseed(record, s.lookupQuestion(ctx, record.QuestionID)))
	}

	activeKey := original.SubmissionID
	previousID := original.ID
	next := models.GradingSession{
		SubmissionID:      original.SubmissionID,
		ExamID:            original.ExamID,
		Status:            models.GradingSessionStatusInProgress,
		Version:           original.Version + 1,
		ActiveKey:         &activeKey,
		PreviousSessionID: &previousID,
	}

	if err := s.sessions.Supersede(ctx, original, &next, records); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) || errors.Is(err, repository.ErrActiveSessionExists) {
			span.SetStatus(codes.Error, "regrade_conflict")
			return dto.GradingSessionResponse{}, ErrInvalidStateTransition
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "regrade_failed")
		return dto.GradingSessionResponse{}, err
	}

	observability.Regrades().Inc()
	observability.SessionsStarted().Inc()
	for _, record := range next.Records {
		if record.IsGraded() {
			observability.RecordsGraded().WithLabelValues(string(record.ScoringMethod)).Inc()
		}
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionSessionRegraded,
		EntityType: entityGradingSession,
		EntityID:   &next.ID,
		Metadata: map[string]interface{}{
			"submission_id":       next.SubmissionID,
			"previous_session_id": original.ID,
			"previous_version":    original.Version,
			"version":             next.Version,
		},
	})
	s.events.Publish(ctx, EventSessionRegraded, next, actor)

	span.SetAttributes(
		attribute.Int64("grading.session_id", int64(next.ID)),
		attribute.Int("grading.version", next.Version),
	)
	s.logger.Info().
		Uint("session_id", next.ID).
		Uint("previous_session_id", original.ID).
		Int("version", next.Version).
		Msg("grading session superseded by regrade")

	return dto.NewGradingSessionResponse(next, GradingProgress(next.Records)), nil
}

// lookupQuestion returns the current question definition, or nil when it can no
// longer be resolved and the record's own snapshot must be reused.
func (s *regradeService) lookupQuestion(ctx context.Context, questionID uint) *models.Question {
	if s.questions == nil {
		return nil
	}
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("question_id", questionID).Msg("failed to refresh question for regrade")
		}
		return nil
	}
	return &question
}
