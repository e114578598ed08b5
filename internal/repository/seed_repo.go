package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// SeedRepository writes exam fixtures for local and staging environments.
type SeedRepository interface {
	ImportExam(ctx context.Context, questions []models.Question, submissions []models.Submission, resolve func([]models.Question, *models.Submission)) error
}

type seedRepository struct {
	db *gorm.DB
}

// NewSeedRepository constructs the fixture writer.
func NewSeedRepository(db *gorm.DB) SeedRepository {
	return &seedRepository{db: db}
}

// ImportExam inserts questions first, lets resolve bind each submission's
// answers to the generated question ids, then inserts the submissions. Either
// everything is written or nothing is.
func (r *seedRepository) ImportExam(ctx context.Context, questions []models.Question, submissions []models.Submission, resolve func([]models.Question, *models.Submission)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		for i := range submissions {
			if resolve != nil {
				resolve(questions, &submissions[i])
			}
			if err := tx.Create(&submissions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
