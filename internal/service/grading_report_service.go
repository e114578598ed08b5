package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

const defaultLowConfidenceThreshold = 0.6

// GradingReportService answers read-only reporting queries over grading records.
type GradingReportService interface {
	ListRecords(ctx context.Context, req dto.GradingRecordListRequest) ([]dto.GradingRecordResponse, error)
	QuestionStats(ctx context.Context, questionID uint) (dto.QuestionStatsResponse, error)
	CorrectRate(ctx context.Context, questionID uint) (float64, error)
	AverageScore(ctx context.Context, questionID uint) (float64, error)
}

// GradingReportConfig tunes reporting defaults.
type GradingReportConfig struct {
	StatsTTL               time.Duration
	LowConfidenceThreshold float64
}

type gradingReportService struct {
	records   repository.GradingRecordRepository
	questions repository.QuestionRepository
	cache     *redis.Client
	validator *validator.Validate
	config    GradingReportConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGradingReportService builds the reporting service. cache may be nil.
func NewGradingReportService(records repository.GradingRecordRepository, questions repository.QuestionRepository, cache *redis.Client, validator *validator.Validate, config GradingReportConfig, logger zerolog.Logger) GradingReportService {
	if config.StatsTTL <= 0 {
		config.StatsTTL = time.Minute
	}
	if config.LowConfidenceThreshold <= 0 || config.LowConfidenceThreshold > 1 {
		config.LowConfidenceThreshold = defaultLowConfidenceThreshold
	}
	return &gradingReportService{
		records:   records,
		questions: questions,
		cache:     cache,
		validator: validator,
		config:    config,
		logger:    logger.With().Str("component", "grading_report_service").Logger(),
		now:       time.Now,
	}
}

func (s *gradingReportService) ListRecords(ctx context.Context, req dto.GradingRecordListRequest) ([]dto.GradingRecordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	filter := repository.GradingRecordFilter{
		SessionID:     req.SessionID,
		QuestionID:    req.QuestionID,
		Method:        models.ScoringMethod(req.Method),
		PendingManual: req.PendingManual,
		MaxConfidence: req.MaxConfidence,
		CurrentOnly:   req.CurrentOnly,
	}
	if req.LowConfidence && filter.MaxConfidence == nil {
		threshold := s.config.LowConfidenceThreshold
		filter.MaxConfidence = &threshold
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGradingRecordResponseSlice(records), nil
}

// QuestionStats aggregates graded records of a question across current sessions.
// Results are cached for the configured TTL; a regrade or new score shows up
// once the entry expires.
func (s *gradingReportService) QuestionStats(ctx context.Context, questionID uint) (dto.QuestionStatsResponse, error) {
	cacheKey := s.cacheKey(questionID)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.QuestionStatsResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.QuestionStatsCache().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("question_id", questionID).Msg("failed to read question stats cache")
		}
	}

	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionStatsResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionStatsResponse{}, err
	}

	records, err := s.records.List(ctx, repository.GradingRecordFilter{QuestionID: &questionID, CurrentOnly: true})
	if err != nil {
		return dto.QuestionStatsResponse{}, err
	}

	response := questionStats(questionID, records)
	response.GeneratedAt = s.now().UTC()

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.config.StatsTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("question_id", questionID).Msg("failed to write question stats cache")
			}
		}
	}
	observability.QuestionStatsCache().WithLabelValues("miss").Inc()

	return response, nil
}

func (s *gradingReportService) CorrectRate(ctx context.Context, questionID uint) (float64, error) {
	stats, err := s.QuestionStats(ctx, questionID)
	if err != nil {
		return 0, err
	}
	return stats.CorrectRate, nil
}

func (s *gradingReportService) AverageScore(ctx context.Context, questionID uint) (float64, error) {
	stats, err := s.QuestionStats(ctx, questionID)
	if err != nil {
		return 0, err
	}
	return stats.AverageScore, nil
}

func (s *gradingReportService) cacheKey(questionID uint) string {
	if s.cache == nil {
		return ""
	}
	return fmt.Sprintf("grading:question:v1:%d:stats", questionID)
}

// questionStats only counts graded records; unscored ones carry no verdict yet.
func questionStats(questionID uint, records []models.QuestionGradingRecord) dto.QuestionStatsResponse {
	response := dto.QuestionStatsResponse{QuestionID: questionID}

	var scoreSum float64
	for _, record := range records {
		if !record.IsGraded() {
			continue
		}
		response.GradedCount++
		scoreSum += *record.Score
		if record.IsCorrect != nil && *record.IsCorrect {
			response.CorrectCount++
		}
	}

	if response.GradedCount > 0 {
		response.CorrectRate = float64(response.CorrectCount) / float64(response.GradedCount)
		response.AverageScore = scoreSum / float64(response.GradedCount)
	}
	return response
}
