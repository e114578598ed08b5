package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// Migrate creates or updates the grading schema, including the unique indexes
// that guard one active session per submission and one row per version.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Question{},
		&models.Submission{},
		&models.SubmissionAnswer{},
		&models.GradingSession{},
		&models.QuestionGradingRecord{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate grading schema: %w", err)
	}
	return nil
}
