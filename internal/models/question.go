package models

import "time"

// QuestionType distinguishes choice-based questions from free-text ones.
type QuestionType string

const (
	// QuestionTypeObjective marks single-choice questions scored against an answer key.
	QuestionTypeObjective QuestionType = "OBJECTIVE"
	// QuestionTypeSubjective marks free-text questions that need a human or AI reviewer.
	QuestionTypeSubjective QuestionType = "SUBJECTIVE"
)

// Question is the read-only exam question metadata consumed by grading.
type Question struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	ExamID          uint         `gorm:"not null;index" json:"exam_id"`
	Position        int          `gorm:"not null;default:0" json:"position"`
	Prompt          string       `gorm:"type:text" json:"prompt"`
	Type            QuestionType `gorm:"size:16;not null" json:"type"`
	Points          float64      `gorm:"not null" json:"points"`
	CorrectChoice   *int         `json:"correct_choice,omitempty"`
	ReferenceAnswer string       `gorm:"type:text" json:"reference_answer,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsObjective reports whether the question can be scored by the answer key alone.
func (q Question) IsObjective() bool {
	return q.Type == QuestionTypeObjective
}
