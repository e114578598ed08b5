package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// ManualGradingService applies human verdicts to subjective question records.
type ManualGradingService interface {
	Grade(ctx context.Context, recordID uint, payload dto.ManualGradeRequest, actor ActivityActor) (dto.GradingRecordResponse, error)
}

type manualGradingService struct {
	records   repository.GradingRecordRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManualGradingService constructs the manual grading coordinator.
func NewManualGradingService(records repository.GradingRecordRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) ManualGradingService {
	return &manualGradingService{
		records:   records,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "manual_grading_service").Logger(),
		now:       time.Now,
	}
}

func (s *manualGradingService) Grade(ctx context.Context, recordID uint, payload dto.ManualGradeRequest, actor ActivityActor) (dto.GradingRecordResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/manual_grading")
	ctx, span := tracer.Start(ctx, "grading.record.manual")
	span.SetAttributes(
		attribute.Int64("grading.record_id", int64(recordID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
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

	score := *payload.Score
	if err := validateScore(score, record.Points); err != nil {
		span.SetStatus(codes.Error, "invalid_score")
		return dto.GradingRecordResponse{}, err
	}

	if err := ensureMutable(record); err != nil {
		span.SetStatus(codes.Error, "record_locked")
		return dto.GradingRecordResponse{}, err
	}

	feedback := sanitizeText(payload.Feedback)
	isCorrect := *payload.IsCorrect

	isIdempotent := record.ScoringMethod == models.ScoringMethodManual &&
		record.Score != nil && math.Abs(*record.Score-score) < 1e-6 &&
		record.IsCorrect != nil && *record.IsCorrect == isCorrect &&
		record.Feedback == feedback &&
		record.GradedBy != nil && *record.GradedBy == actor.ID
	if isIdempotent {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return dto.NewGradingRecordResponse(record), nil
	}

	gradedAt := s.now()
	gradedBy := actor.ID
	record.Score = &score
	record.IsCorrect = &isCorrect
	record.Feedback = feedback
	record.ScoringMethod = models.ScoringMethodManual
	record.ConfidenceScore = nil
	record.AnalysisNote = ""
	record.GradedBy = &gradedBy
	record.GradedAt = &gradedAt

	if err := s.records.UpdateGrade(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			span.SetStatus(codes.Error, "session_not_in_progress")
			return dto.GradingRecordResponse{}, ErrInvalidStateTransition
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "record_not_found")
			return dto.GradingRecordResponse{}, ErrRecordNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_update_failed")
		return dto.GradingRecordResponse{}, err
	}

	observability.RecordsGraded().WithLabelValues(string(models.ScoringMethodManual)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionRecordManual,
		EntityType: entityGradingRecord,
		EntityID:   &record.ID,
		Metadata: map[string]interface{}{
			"session_id":  record.SessionID,
			"question_id": record.QuestionID,
			"score":       score,
			"is_correct":  isCorrect,
		},
	})

	span.SetAttributes(attribute.Float64("grading.score", score))
	return dto.NewGradingRecordResponse(record), nil
}

// loadRecord resolves a record together with its owning session.
func loadRecord(ctx context.Context, records repository.GradingRecordRepository, recordID uint) (models.QuestionGradingRecord, error) {
	record, err := records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QuestionGradingRecord{}, ErrRecordNotFound
		}
		return models.QuestionGradingRecord{}, err
	}
	if record.Session == nil {
		return models.QuestionGradingRecord{}, ErrSessionNotFound
	}
	return record, nil
}

// ensureMutable rejects writes to records of closed sessions and to objective
// records, which only the auto grader scores.
func ensureMutable(record models.QuestionGradingRecord) error {
	if !record.Session.IsInProgress() {
		return ErrInvalidStateTransition
	}
	if record.IsObjective() {
		return ErrObjectiveRecordLocked
	}
	return nil
}

// validateScore enforces 0 <= score <= points exactly; stored scores are never
// clamped.
func validateScore(score, points float64) error {
	if math.IsNaN(score) || score < 0 || score > points {
		return fmt.Errorf("%w: %g not within [0, %g]", ErrInvalidScore, score, points)
	}
	return nil
}

func validateConfidence(confidence float64) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: %g not within [0, 1]", ErrInvalidConfidence, confidence)
	}
	return nil
}
