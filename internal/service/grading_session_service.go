package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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

// GradingSessionService drives the grading session lifecycle: starting a first
// pass, completing a session and answering session queries.
type GradingSessionService interface {
	StartGrading(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradingSessionResponse, error)
	CompleteGrading(ctx context.Context, sessionID uint, payload dto.CompleteGradingRequest, actor ActivityActor) (dto.GradingSessionResponse, error)
	GetSession(ctx context.Context, sessionID uint) (dto.GradingSessionResponse, error)
	GetCurrentSession(ctx context.Context, submissionID uint) (dto.GradingSessionResponse, error)
	ListSessionHistory(ctx context.Context, submissionID uint) ([]dto.GradingSessionResponse, error)
	GetProgress(ctx context.Context, sessionID uint) (dto.GradingProgressResponse, error)
}

// GradingSessionDependencies groups the collaborators of the session service.
type GradingSessionDependencies struct {
	Sessions    repository.GradingSessionRepository
	Submissions repository.SubmissionRepository
	Questions   repository.QuestionRepository
	Aggregator  *ScoreAggregator
	AutoGrader  *AutoGrader
	Validator   *validator.Validate
	Activity    ActivityRecorder
	Events      GradingEventPublisher
}

type gradingSessionService struct {
	sessions    repository.GradingSessionRepository
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	aggregator  *ScoreAggregator
	grader      *AutoGrader
	validator   *validator.Validate
	activity    ActivityRecorder
	events      GradingEventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingSessionService constructs the session lifecycle service.
func NewGradingSessionService(deps GradingSessionDependencies, logger zerolog.Logger) GradingSessionService {
	grader := deps.AutoGrader
	if grader == nil {
		grader = NewAutoGrader()
	}
	events := deps.Events
	if events == nil {
		events = noopEventPublisher{}
	}
	validate := deps.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &gradingSessionService{
		sessions:    deps.Sessions,
		submissions: deps.Submissions,
		questions:   deps.Questions,
		aggregator:  deps.Aggregator,
		grader:      grader,
		validator:   validate,
		activity:    deps.Activity,
		events:      events,
		logger:      logger.With().Str("component", "grading_session_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/grading_session"),
		now:         time.Now,
	}
}

func (s *gradingSessionService) StartGrading(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradingSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.session.start", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.GradingSessionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.GradingSessionResponse{}, err
	}

	current, found, err := s.currentSession(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_lookup_failed")
		return dto.GradingSessionResponse{}, err
	}
	if found {
		if current.IsInProgress() {
			span.SetAttributes(attribute.Bool("grading.idempotent", true))
			return s.toResponse(current), nil
		}
		span.SetStatus(codes.Error, "session_already_completed")
		return dto.GradingSessionResponse{}, ErrSessionAlreadyCompleted
	}

	records, err := s.seedRecords(ctx, submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "question_lookup_failed")
		return dto.GradingSessionResponse{}, err
	}

	activeKey := submission.ID
	session := models.GradingSession{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		Status:       models.GradingSessionStatusInProgress,
		Version:      1,
		ActiveKey:    &activeKey,
	}

	if err := s.sessions.CreateWithRecords(ctx, &session, records); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			// A concurrent start won the active slot; hand back its session.
			span.SetAttributes(attribute.Bool("grading.lost_race", true))
			return s.resolveLostStart(ctx, submissionID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_create_failed")
		return dto.GradingSessionResponse{}, err
	}

	observability.SessionsStarted().Inc()
	for _, record := range session.Records {
		if record.IsGraded() {
			observability.RecordsGraded().WithLabelValues(string(record.ScoringMethod)).Inc()
		}
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionSessionStarted,
		EntityType: entityGradingSession,
		EntityID:   &session.ID,
		Metadata: map[string]interface{}{
			"submission_id": session.SubmissionID,
			"version":       session.Version,
			"records":       len(session.Records),
		},
	})
	s.events.Publish(ctx, EventSessionStarted, session, actor)

	span.SetAttributes(
		attribute.Int64("grading.session_id", int64(session.ID)),
		attribute.Int("grading.records", len(session.Records)),
	)
	s.logger.Info().Uint("session_id", session.ID).Uint("submission_id", submission.ID).Int("records", len(records)).Msg("grading session started")

	return s.toResponse(session), nil
}

func (s *gradingSessionService) CompleteGrading(ctx context.Context, sessionID uint, payload dto.CompleteGradingRequest, actor ActivityActor) (dto.GradingSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.session.complete", trace.WithAttributes(
		attribute.Int64("grading.session_id", int64(sessionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingSessionResponse{}, err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_lookup_failed")
		return dto.GradingSessionResponse{}, err
	}

	if !session.IsInProgress() {
		span.SetStatus(codes.Error, "session_not_in_progress")
		return dto.GradingSessionResponse{}, ErrInvalidStateTransition
	}

	if err := s.aggregator.CalculateAndUpdateTotalScore(&session); err != nil {
		if errors.Is(err, ErrAggregation) {
			span.SetStatus(codes.Error, "grading_incomplete")
			return dto.GradingSessionResponse{}, ErrGradingIncomplete
		}
		span.RecordError(err)
		return dto.GradingSessionResponse{}, err
	}

	gradedAt := s.now()
	session.GradedAt = &gradedAt
	session.ScoringComment = sanitizeText(payload.Comment)

	if err := s.sessions.Complete(ctx, &session); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			span.SetStatus(codes.Error, "status_conflict")
			return dto.GradingSessionResponse{}, ErrInvalidStateTransition
		case errors.Is(err, repository.ErrRecordsPending):
			span.SetStatus(codes.Error, "grading_incomplete")
			return dto.GradingSessionResponse{}, ErrGradingIncomplete
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "session_complete_failed")
		return dto.GradingSessionResponse{}, err
	}

	// Records may have moved between the first load and completion.
	if stored, err := s.sessions.GetByID(ctx, session.ID); err == nil {
		session = stored
	} else {
		s.logger.Warn().Err(err).Uint("session_id", session.ID).Msg("failed to reload completed session")
	}

	observability.SessionsCompleted().Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionSessionCompleted,
		EntityType: entityGradingSession,
		EntityID:   &session.ID,
		Metadata: map[string]interface{}{
			"submission_id": session.SubmissionID,
			"version":       session.Version,
			"total_score":   *session.TotalScore,
		},
	})
	s.events.Publish(ctx, EventSessionCompleted, session, actor)

	span.SetAttributes(attribute.Float64("grading.total_score", *session.TotalScore))
	return s.toResponse(session), nil
}

func (s *gradingSessionService) GetSession(ctx context.Context, sessionID uint) (dto.GradingSessionResponse, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	return s.toResponse(session), nil
}

func (s *gradingSessionService) GetCurrentSession(ctx context.Context, submissionID uint) (dto.GradingSessionResponse, error) {
	session, found, err := s.currentSession(ctx, submissionID)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	if !found {
		return dto.GradingSessionResponse{}, ErrSessionNotFound
	}
	return s.toResponse(session), nil
}

func (s *gradingSessionService) ListSessionHistory(ctx context.Context, submissionID uint) ([]dto.GradingSessionResponse, error) {
	sessions, err := s.sessions.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSubmissionNotFound
			}
			return nil, err
		}
	}

	responses := make([]dto.GradingSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		// History rows are listed without records; progress is filled from counts.
		resp := dto.NewGradingSessionResponse(session, 0)
		if _, progress, err := s.aggregator.Progress(ctx, session.ID); err == nil {
			resp.Progress = progress
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *gradingSessionService) GetProgress(ctx context.Context, sessionID uint) (dto.GradingProgressResponse, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return dto.GradingProgressResponse{}, err
	}

	counts, progress, err := s.aggregator.Progress(ctx, sessionID)
	if err != nil {
		return dto.GradingProgressResponse{}, err
	}

	return dto.GradingProgressResponse{
		SessionID:    session.ID,
		Status:       string(session.Status),
		GradedCount:  counts.Graded,
		TotalCount:   counts.Total,
		Progress:     progress,
		CurrentScore: counts.ScoreTotal,
		TotalScore:   session.TotalScore,
	}, nil
}

// seedRecords creates one record per answered question of the exam. Answers to
// questions outside the exam's question set are skipped.
func (s *gradingSessionService) seedRecords(ctx context.Context, submission models.Submission) ([]models.QuestionGradingRecord, error) {
	questions, err := s.questions.ListByExam(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Question, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	records := make([]models.QuestionGradingRecord, 0, len(submission.Answers))
	seen := make(map[uint]struct{}, len(submission.Answers))
	for _, answer := range submission.Answers {
		question, ok := byID[answer.QuestionID]
		if !ok {
			s.logger.Warn().Uint("submission_id", submission.ID).Uint("question_id", answer.QuestionID).Msg("answer references question outside exam, skipping")
			continue
		}
		if _, dup := seen[answer.QuestionID]; dup {
			s.logger.Warn().Uint("submission_id", submission.ID).Uint("question_id", answer.QuestionID).Msg("duplicate answer for question, keeping first")
			continue
		}
		seen[answer.QuestionID] = struct{}{}
		records = append(records, s.grader.Seed(question, answer))
	}
	return records, nil
}

func (s *gradingSessionService) resolveLostStart(ctx context.Context, submissionID uint) (dto.GradingSessionResponse, error) {
	current, found, err := s.currentSession(ctx, submissionID)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	if !found {
		return dto.GradingSessionResponse{}, ErrInvalidStateTransition
	}
	if !current.IsInProgress() {
		return dto.GradingSessionResponse{}, ErrSessionAlreadyCompleted
	}
	return s.toResponse(current), nil
}

func (s *gradingSessionService) currentSession(ctx context.Context, submissionID uint) (models.GradingSession, bool, error) {
	session, err := s.sessions.GetCurrentBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradingSession{}, false, nil
		}
		return models.GradingSession{}, false, err
	}
	return session, true, nil
}

func (s *gradingSessionService) loadSession(ctx context.Context, sessionID uint) (models.GradingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradingSession{}, ErrSessionNotFound
		}
		return models.GradingSession{}, err
	}
	return session, nil
}

func (s *gradingSessionService) toResponse(session models.GradingSession) dto.GradingSessionResponse {
	return dto.NewGradingSessionResponse(session, GradingProgress(session.Records))
}
