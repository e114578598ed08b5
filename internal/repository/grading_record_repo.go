package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// GradingRecordFilter narrows question grading record queries.
type GradingRecordFilter struct {
	SessionID     *uint
	QuestionID    *uint
	Method        models.ScoringMethod
	PendingManual bool
	// MaxConfidence keeps AI_ASSISTED records whose confidence is strictly below the value.
	MaxConfidence *float64
	CurrentOnly   bool
}

// SessionRecordCounts summarises grading progress for a session.
type SessionRecordCounts struct {
	Total      int64
	Graded     int64
	ScoreTotal float64
}

// GradingRecordRepository persists per-question grading outcomes.
type GradingRecordRepository interface {
	GetByID(ctx context.Context, id uint) (models.QuestionGradingRecord, error)
	List(ctx context.Context, filter GradingRecordFilter) ([]models.QuestionGradingRecord, error)
	CountBySession(ctx context.Context, sessionID uint) (SessionRecordCounts, error)
	UpdateGrade(ctx context.Context, record *models.QuestionGradingRecord) error
}

type gradingRecordRepository struct {
	db *gorm.DB
}

// NewGradingRecordRepository constructs the record repository.
func NewGradingRecordRepository(db *gorm.DB) GradingRecordRepository {
	return &gradingRecordRepository{db: db}
}

func (r *gradingRecordRepository) GetByID(ctx context.Context, id uint) (models.QuestionGradingRecord, error) {
	var record models.QuestionGradingRecord
	if err := r.db.WithContext(ctx).Preload("Session").First(&record, id).Error; err != nil {
		return models.QuestionGradingRecord{}, err
	}
	return record, nil
}

func (r *gradingRecordRepository) List(ctx context.Context, filter GradingRecordFilter) ([]models.QuestionGradingRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.QuestionGradingRecord{})

	if filter.CurrentOnly {
		query = query.
			Joins("JOIN grading_sessions ON grading_sessions.id = question_grading_records.session_id").
			Where("grading_sessions.status <> ?", models.GradingSessionStatusRegraded)
	}

	if filter.SessionID != nil {
		query = query.Where("question_grading_records.session_id = ?", *filter.SessionID)
	}

	if filter.QuestionID != nil {
		query = query.Where("question_grading_records.question_id = ?", *filter.QuestionID)
	}

	if filter.Method != "" {
		query = query.Where("question_grading_records.scoring_method = ?", filter.Method)
	}

	if filter.PendingManual {
		query = query.Where("question_grading_records.score IS NULL AND question_grading_records.scoring_method = ?", models.ScoringMethodManual)
	}

	if filter.MaxConfidence != nil {
		query = query.Where("question_grading_records.scoring_method = ? AND question_grading_records.confidence_score < ?", models.ScoringMethodAIAssisted, *filter.MaxConfidence)
	}

	var records []models.QuestionGradingRecord
	if err := query.
		Order("question_grading_records.session_id ASC, question_grading_records.question_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *gradingRecordRepository) CountBySession(ctx context.Context, sessionID uint) (SessionRecordCounts, error) {
	var row struct {
		Total      int64
		Graded     int64
		ScoreTotal float64
	}
	err := r.db.WithContext(ctx).Model(&models.QuestionGradingRecord{}).
		Select("COUNT(*) AS total, COUNT(score) AS graded, COALESCE(SUM(score), 0) AS score_total").
		Where("session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return SessionRecordCounts{}, err
	}
	return SessionRecordCounts{Total: row.Total, Graded: row.Graded, ScoreTotal: row.ScoreTotal}, nil
}

// UpdateGrade overwrites the scoring fields of a record. The write only lands
// while the owning session is IN_PROGRESS; otherwise ErrSessionNotActive. It
// claims the session row first, the same row Complete claims.
func (r *gradingRecordRepository) UpdateGrade(ctx context.Context, record *models.QuestionGradingRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := claimActiveSession(tx, record.SessionID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrSessionNotActive
		}

		result := tx.Model(&models.QuestionGradingRecord{}).
			Where("id = ? AND session_id = ?", record.ID, record.SessionID).
			Updates(map[string]interface{}{
				"score":            record.Score,
				"is_correct":       record.IsCorrect,
				"scoring_method":   record.ScoringMethod,
				"confidence_score": record.ConfidenceScore,
				"feedback":         record.Feedback,
				"analysis_note":    record.AnalysisNote,
				"graded_by":        record.GradedBy,
				"graded_at":        record.GradedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
