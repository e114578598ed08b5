package models

import "time"

// GradingSessionStatus enumerates the lifecycle states of a grading session.
type GradingSessionStatus string

const (
	GradingSessionStatusInProgress GradingSessionStatus = "IN_PROGRESS"
	GradingSessionStatusCompleted  GradingSessionStatus = "COMPLETED"
	GradingSessionStatusRegraded   GradingSessionStatus = "REGRADED"
)

// GradingSession is one versioned grading attempt for a submission.
//
// ActiveKey carries the submission id while the session is IN_PROGRESS or
// COMPLETED and is NULL once superseded; its unique index keeps a single
// non-superseded session per submission.
type GradingSession struct {
	ID                uint                    `gorm:"primaryKey" json:"id"`
	SubmissionID      uint                    `gorm:"not null;uniqueIndex:idx_grading_sessions_submission_version,priority:1" json:"submission_id"`
	ExamID            uint                    `gorm:"not null;index" json:"exam_id"`
	Status            GradingSessionStatus    `gorm:"size:32;not null;index" json:"status"`
	Version           int                     `gorm:"not null;uniqueIndex:idx_grading_sessions_submission_version,priority:2" json:"version"`
	ActiveKey         *uint                   `gorm:"uniqueIndex:idx_grading_sessions_active_key" json:"-"`
	TotalScore        *float64                `json:"total_score"`
	ScoringComment    string                  `gorm:"type:text" json:"scoring_comment"`
	GradedAt          *time.Time              `json:"graded_at"`
	PreviousSessionID *uint                   `json:"previous_session_id"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	Records           []QuestionGradingRecord `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"records"`
}

// IsInProgress reports whether records of the session may still be mutated.
func (s GradingSession) IsInProgress() bool {
	return s.Status == GradingSessionStatusInProgress
}

// IsSuperseded reports whether a newer version replaced this session.
func (s GradingSession) IsSuperseded() bool {
	return s.Status == GradingSessionStatusRegraded
}
