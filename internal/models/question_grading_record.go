package models

import "time"

// ScoringMethod identifies the process that produced a record's current score.
type ScoringMethod string

const (
	ScoringMethodAuto       ScoringMethod = "AUTO"
	ScoringMethodManual     ScoringMethod = "MANUAL"
	ScoringMethodAIAssisted ScoringMethod = "AI_ASSISTED"
)

// QuestionGradingRecord is the scored outcome for one question within a session.
// Question and answer fields are snapshotted when the record is seeded so that
// scoring never depends on a later edit of the exam.
type QuestionGradingRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SessionID       uint            `gorm:"not null;uniqueIndex:idx_grading_records_session_question,priority:1" json:"session_id"`
	QuestionID      uint            `gorm:"not null;index;uniqueIndex:idx_grading_records_session_question,priority:2" json:"question_id"`
	AnswerID        uint            `gorm:"not null" json:"answer_id"`
	QuestionType    QuestionType    `gorm:"size:16;not null" json:"question_type"`
	Points          float64         `gorm:"not null" json:"points"`
	CorrectChoice   *int            `json:"-"`
	SelectedChoice  *int            `json:"selected_choice,omitempty"`
	AnswerText      string          `gorm:"type:text" json:"answer_text,omitempty"`
	Score           *float64        `json:"score"`
	IsCorrect       *bool           `json:"is_correct"`
	ScoringMethod   ScoringMethod   `gorm:"size:16;not null;index" json:"scoring_method"`
	ConfidenceScore *float64        `json:"confidence_score"`
	Feedback        string          `gorm:"type:text" json:"feedback"`
	AnalysisNote    string          `gorm:"type:text" json:"analysis_note"`
	GradedBy        *uint           `json:"graded_by"`
	GradedAt        *time.Time      `json:"graded_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Session         *GradingSession `gorm:"foreignKey:SessionID" json:"-"`
}

// IsGraded reports whether a score has been assigned by any method.
func (r QuestionGradingRecord) IsGraded() bool {
	return r.Score != nil
}

// IsObjective reports whether the record belongs to a choice-based question.
func (r QuestionGradingRecord) IsObjective() bool {
	return r.QuestionType == QuestionTypeObjective
}
