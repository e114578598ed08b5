package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// GradingSessionRepository persists grading sessions and their regrade chain.
type GradingSessionRepository interface {
	CreateWithRecords(ctx context.Context, session *models.GradingSession, records []models.QuestionGradingRecord) error
	Supersede(ctx context.Context, original models.GradingSession, next *models.GradingSession, records []models.QuestionGradingRecord) error
	Complete(ctx context.Context, session *models.GradingSession) error
	GetByID(ctx context.Context, id uint) (models.GradingSession, error)
	GetCurrentBySubmission(ctx context.Context, submissionID uint) (models.GradingSession, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingSession, error)
}

type gradingSessionRepository struct {
	db *gorm.DB
}

// NewGradingSessionRepository builds a grading session repository.
func NewGradingSessionRepository(db *gorm.DB) GradingSessionRepository {
	return &gradingSessionRepository{db: db}
}

// CreateWithRecords inserts the session and its seeded records in one transaction.
// A unique violation on the active slot is reported as ErrActiveSessionExists.
func (r *gradingSessionRepository) CreateWithRecords(ctx context.Context, session *models.GradingSession, records []models.QuestionGradingRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(session).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrActiveSessionExists
			}
			return fmt.Errorf("create grading session: %w", err)
		}

		if err := createRecords(tx, session.ID, records); err != nil {
			return err
		}

		session.Records = records
		return nil
	})
}

// Supersede flips the original session COMPLETED -> REGRADED and inserts the next
// version atomically. The flip is conditional on the original still being
// COMPLETED, so concurrent regrades of one session cannot both succeed.
func (r *gradingSessionRepository) Supersede(ctx context.Context, original models.GradingSession, next *models.GradingSession, records []models.QuestionGradingRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GradingSession{}).
			Where("id = ? AND status = ?", original.ID, models.GradingSessionStatusCompleted).
			Updates(map[string]interface{}{
				"status":     models.GradingSessionStatusRegraded,
				"active_key": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("supersede grading session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrStatusConflict
		}

		if err := tx.Omit(clause.Associations).Create(next).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrActiveSessionExists
			}
			return fmt.Errorf("create regrade session: %w", err)
		}

		if err := createRecords(tx, next.ID, records); err != nil {
			return err
		}

		next.Records = records
		return nil
	})
}

// Complete moves the session IN_PROGRESS -> COMPLETED. The session row is
// claimed before the records are summed, so a concurrent UpdateGrade either
// lands before the sum or sees the session closed. The stored total is always
// the sum of the records as committed; session.TotalScore is overwritten.
func (r *gradingSessionRepository) Complete(ctx context.Context, session *models.GradingSession) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := claimActiveSession(tx, session.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrStatusConflict
		}

		var records []models.QuestionGradingRecord
		if err := tx.Select("id", "score").
			Where("session_id = ?", session.ID).
			Order("question_id ASC").
			Find(&records).Error; err != nil {
			return fmt.Errorf("load records for completion: %w", err)
		}

		total := 0.0
		for _, record := range records {
			if record.Score == nil {
				return ErrRecordsPending
			}
			total += *record.Score
		}

		result := tx.Model(&models.GradingSession{}).
			Where("id = ? AND status = ?", session.ID, models.GradingSessionStatusInProgress).
			Updates(map[string]interface{}{
				"status":          models.GradingSessionStatusCompleted,
				"total_score":     total,
				"scoring_comment": session.ScoringComment,
				"graded_at":       session.GradedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusConflict
		}

		session.TotalScore = &total
		return nil
	})
	if err != nil {
		return err
	}

	session.Status = models.GradingSessionStatusCompleted
	return nil
}

func (r *gradingSessionRepository) GetByID(ctx context.Context, id uint) (models.GradingSession, error) {
	var session models.GradingSession
	if err := r.withRecords(ctx).First(&session, id).Error; err != nil {
		return models.GradingSession{}, err
	}
	return session, nil
}

func (r *gradingSessionRepository) GetCurrentBySubmission(ctx context.Context, submissionID uint) (models.GradingSession, error) {
	var session models.GradingSession
	err := r.withRecords(ctx).
		Where("submission_id = ? AND status <> ?", submissionID, models.GradingSessionStatusRegraded).
		Order("version DESC").
		First(&session).Error
	if err != nil {
		return models.GradingSession{}, err
	}
	return session, nil
}

func (r *gradingSessionRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingSession, error) {
	var sessions []models.GradingSession
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("version ASC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gradingSessionRepository) withRecords(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Records", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("question_id ASC")
		})
}

// claimActiveSession touches the session row while it is IN_PROGRESS. On
// Postgres the row stays locked until the surrounding transaction ends, which
// serializes record updates against completion.
func claimActiveSession(tx *gorm.DB, sessionID uint) (bool, error) {
	result := tx.Model(&models.GradingSession{}).
		Where("id = ? AND status = ?", sessionID, models.GradingSessionStatusInProgress).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return false, fmt.Errorf("claim grading session: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func createRecords(tx *gorm.DB, sessionID uint, records []models.QuestionGradingRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		records[i].SessionID = sessionID
	}
	if err := tx.Omit(clause.Associations).Create(&records).Error; err != nil {
		return fmt.Errorf("create grading records: %w", err)
	}
	return nil
}
