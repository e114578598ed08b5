package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/ai"
)

const (
	defaultAITimeout     = 20 * time.Second
	defaultAIConcurrency = 4

	outcomeScored = "scored"
	outcomeFailed = "failed"
)

// AIGradingConfig bounds calls to the external scorer.
type AIGradingConfig struct {
	Timeout     time.Duration
	Concurrency int
}

// AIGradingService records machine-proposed scores for subjective records,
// either supplied by the caller or obtained from the configured scorer.
type AIGradingService interface {
	Record(ctx context.Context, recordID uint, payload dto.AIGradeRequest, actor ActivityActor) (dto.GradingRecordResponse, error)
	Score(ctx context.Context, recordID uint, actor ActivityActor) (dto.GradingRecordResponse, error)
	ScoreSession(ctx context.Context, sessionID uint, actor ActivityActor) (dto.AIScoreSessionResponse, error)
}

type aiGradingService struct {
	records   repository.GradingRecordRepository
	sessions  repository.GradingSessionRepository
	questions repository.QuestionRepository
	scorer    ai.Scorer
	validator *validator.Validate
	activity  ActivityRecorder
	config    AIGradingConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAIGradingService constructs the AI-assisted grading coordinator. scorer may
// be nil, in which case only caller-supplied proposals can be recorded.
func NewAIGradingService(records repository.GradingRecordRepository, sessions repository.GradingSessionRepository, questions repository.QuestionRepository, scorer ai.Scorer, validator *validator.Validate, activity ActivityRecorder, config AIGradingConfig, logger zerolog.Logger) AIGradingService {
	if config.Timeout <= 0 {
		config.Timeout = defaultAITimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultAIConcurrency
	}

	return &aiGradingService{
		records:   records,
		sessions:  sessions,
		questions: questions,
		scorer:    scorer,
		validator: validator,
		activity:  activity,
		config:    config,
		logger:    logger.With().Str("component", "ai_grading_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/ai_grading"),
		now:       time.Now,
	}
}

func (s *aiGradingService) Record(ctx context.Context, recordID uint, payload dto.AIGradeRequest, actor ActivityActor) (dto.GradingRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.record.ai", trace.WithAttributes(
		attribute.Int64("grading.record_id", int64(recordID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingRecordResponse{}, err
	}

	record, err := loadRecord(ctx, s.records, recordID)
	if err != nil {
		span.SetStatus(codes.Error, "record_lookup_failed")
		return dto.GradingRecordResponse{}, err
	}

	if err := validateScore(*payload.Score, record.Points); err != nil {
		span.SetStatus(codes.Error, "invalid_score")
		return dto.GradingRecordResponse{}, err
	}
	if err := validateConfidence(*payload.Confidence); err != nil {
		span.SetStatus(codes.Error, "invalid_confidence")
		return dto.GradingRecordResponse{}, err
	}
	if err := ensureMutable(record); err != nil {
		span.SetStatus(codes.Error, "record_locked")
		return dto.GradingRecordResponse{}, err
	}

	proposal := ai.ScoreResponse{
		Score:           *payload.Score,
		IsCorrect:       *payload.IsCorrect,
		ConfidenceScore: *payload.Confidence,
		AnalysisNote:    payload.AnalysisNote,
	}
	if err := s.apply(ctx, &record, proposal, actor, "manual_entry"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_update_failed")
		return dto.GradingRecordResponse{}, err
	}

	return dto.NewGradingRecordResponse(record), nil
}

func (s *aiGradingService) Score(ctx context.Context, recordID uint, actor ActivityActor) (dto.GradingRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.record.ai_score", trace.WithAttributes(
		attribute.Int64("grading.record_id", int64(recordID)),
	))
	defer span.End()

	if s.scorer == nil {
		span.SetStatus(codes.Error, "scorer_unavailable")
		return dto.GradingRecordResponse{}, ErrScorerUnavailable
	}

	record, err := loadRecord(ctx, s.records, recordID)
	if err != nil {
		span.SetStatus(codes.Error, "record_lookup_failed")
		return dto.GradingRecordResponse{}, err
	}
	if err := ensureMutable(record); err != nil {
		span.SetStatus(codes.Error, "record_locked")
		return dto.GradingRecordResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, record.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "question_not_found")
			return dto.GradingRecordResponse{}, ErrQuestionNotFound
		}
		span.RecordError(err)
		return dto.GradingRecordResponse{}, err
	}

	proposal, err := s.callScorer(ctx, record, question)
	if err != nil {
		observability.AIScoringFailures().Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scorer_failed")
		s.logger.Warn().Err(err).Uint("record_id", record.ID).Uint("session_id", record.SessionID).Msg("ai scoring failed, record left unscored")
		return dto.GradingRecordResponse{}, err
	}

	if err := s.apply(ctx, &record, proposal, actor, "scorer"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_update_failed")
		return dto.GradingRecordResponse{}, err
	}

	span.SetAttributes(
		attribute.Float64("grading.score", proposal.Score),
		attribute.Float64("grading.confidence", proposal.ConfidenceScore),
	)
	return dto.NewGradingRecordResponse(record), nil
}

func (s *aiGradingService) ScoreSession(ctx context.Context, sessionID uint, actor ActivityActor) (dto.AIScoreSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.session.ai_score", trace.WithAttributes(
		attribute.Int64("grading.session_id", int64(sessionID)),
	))
	defer span.End()

	if s.scorer == nil {
		span.SetStatus(codes.Error, "scorer_unavailable")
		return dto.AIScoreSessionResponse{}, ErrScorerUnavailable
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "session_not_found")
			return dto.AIScoreSessionResponse{}, ErrSessionNotFound
		}
		span.RecordError(err)
		return dto.AIScoreSessionResponse{}, err
	}
	if !session.IsInProgress() {
		span.SetStatus(codes.Error, "session_not_in_progress")
		return dto.AIScoreSessionResponse{}, ErrInvalidStateTransition
	}

	pending := make([]uint, 0, len(session.Records))
	for _, record := range session.Records {
		if !record.IsObjective() && !record.IsGraded() {
			pending = append(pending, record.ID)
		}
	}

	outcomes := make([]dto.AIScoreOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, recordID := range pending {
		i, recordID := i, recordID
		g.Go(func() error {
			outcome := dto.AIScoreOutcome{RecordID: recordID, Status: outcomeScored}
			if _, err := s.Score(ctx, recordID, actor); err != nil {
				outcome.Status = outcomeFailed
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			// One record failing never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	response := dto.AIScoreSessionResponse{SessionID: session.ID, Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Status == outcomeScored {
			response.Scored++
		} else {
			response.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("grading.ai.scored", response.Scored),
		attribute.Int("grading.ai.failed", response.Failed),
	)
	return response, nil
}

// callScorer asks the external scorer for a proposal and checks its bounds.
// Every failure, including out-of-bound values, is reported as ErrScorerFailed.
func (s *aiGradingService) callScorer(ctx context.Context, record models.QuestionGradingRecord, question models.Question) (ai.ScoreResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	proposal, err := s.scorer.Score(callCtx, ai.ScoreRequest{
		QuestionID:      record.QuestionID,
		Prompt:          question.Prompt,
		AnswerText:      record.AnswerText,
		ReferenceAnswer: question.ReferenceAnswer,
		MaxPoints:       record.Points,
	})
	if err != nil {
		return ai.ScoreResponse{}, fmt.Errorf("%w: %w", ErrScorerFailed, err)
	}
	if err := validateScore(proposal.Score, record.Points); err != nil {
		return ai.ScoreResponse{}, fmt.Errorf("%w: %w", ErrScorerFailed, err)
	}
	if err := validateConfidence(proposal.ConfidenceScore); err != nil {
		return ai.ScoreResponse{}, fmt.Errorf("%w: %w", ErrScorerFailed, err)
	}
	return proposal, nil
}

func (s *aiGradingService) apply(ctx context.Context, record *models.QuestionGradingRecord, proposal ai.ScoreResponse, actor ActivityActor, source string) error {
	score := proposal.Score
	isCorrect := proposal.IsCorrect
	confidence := proposal.ConfidenceScore
	gradedAt := s.now()

	record.Score = &score
	record.IsCorrect = &isCorrect
	record.ConfidenceScore = &confidence
	record.AnalysisNote = sanitizeText(proposal.AnalysisNote)
	record.Feedback = ""
	record.ScoringMethod = models.ScoringMethodAIAssisted
	record.GradedBy = nil
	record.GradedAt = &gradedAt

	if err := s.records.UpdateGrade(ctx, record); err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return ErrInvalidStateTransition
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	observability.RecordsGraded().WithLabelValues(string(models.ScoringMethodAIAssisted)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionRecordAI,
		EntityType: entityGradingRecord,
		EntityID:   &record.ID,
		Metadata: map[string]interface{}{
			"session_id":  record.SessionID,
			"question_id": record.QuestionID,
			"score":       score,
			"confidence":  confidence,
			"source":      source,
		},
	})
	return nil
}
