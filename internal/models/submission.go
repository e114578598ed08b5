package models

import "time"

// Submission is a student's finalized set of answers for one exam instance.
type Submission struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	ExamID      uint               `gorm:"not null;index" json:"exam_id"`
	StudentID   uint               `gorm:"not null;index" json:"student_id"`
	SubmittedAt time.Time          `gorm:"not null" json:"submitted_at"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Answers     []SubmissionAnswer `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers"`
}

// SubmissionAnswer holds either the selected choice or the free-text answer for a question.
type SubmissionAnswer struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	SubmissionID   uint   `gorm:"not null;index" json:"submission_id"`
	QuestionID     uint   `gorm:"not null;index" json:"question_id"`
	SelectedChoice *int   `json:"selected_choice,omitempty"`
	AnswerText     string `gorm:"type:text" json:"answer_text,omitempty"`
}
