package dto

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// CompleteGradingRequest finalises a session with an optional overall comment.
type CompleteGradingRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=4000"`
}

// ManualGradeRequest carries a human grader's verdict for one record.
// Score bounds depend on the question and are checked by the service.
type ManualGradeRequest struct {
	Score     *float64 `json:"score" validate:"required"`
	IsCorrect *bool    `json:"is_correct" validate:"required"`
	Feedback  string   `json:"feedback" validate:"omitempty,max=4000"`
}

// AIGradeRequest carries a machine-proposed score returned by an external scorer.
type AIGradeRequest struct {
	Score        *float64 `json:"score" validate:"required"`
	IsCorrect    *bool    `json:"is_correct" validate:"required"`
	Confidence   *float64 `json:"confidence" validate:"required"`
	AnalysisNote string   `json:"analysis_note" validate:"omitempty,max=8000"`
}

// GradingRecordListRequest describes the record query surface. LowConfidence
// selects AI_ASSISTED records below the configured threshold unless
// MaxConfidence overrides it.
type GradingRecordListRequest struct {
	SessionID     *uint
	QuestionID    *uint
	Method        string `validate:"omitempty,oneof=AUTO MANUAL AI_ASSISTED"`
	PendingManual bool
	LowConfidence bool
	MaxConfidence *float64 `validate:"omitempty,gte=0,lte=1"`
	CurrentOnly   bool
}

// GradingRecordResponse serializes a question grading record.
type GradingRecordResponse struct {
	ID              uint       `json:"id"`
	SessionID       uint       `json:"session_id"`
	QuestionID      uint       `json:"question_id"`
	AnswerID        uint       `json:"answer_id"`
	QuestionType    string     `json:"question_type"`
	Points          float64    `json:"points"`
	SelectedChoice  *int       `json:"selected_choice"`
	AnswerText      string     `json:"answer_text"`
	Score           *float64   `json:"score"`
	IsCorrect       *bool      `json:"is_correct"`
	ScoringMethod   string     `json:"scoring_method"`
	ConfidenceScore *float64   `json:"confidence_score"`
	Feedback        string     `json:"feedback"`
	AnalysisNote    string     `json:"analysis_note"`
	GradedBy        *uint      `json:"graded_by"`
	GradedAt        *time.Time `json:"graded_at"`
}

// GradingSessionResponse serializes a grading session and, when loaded, its records.
type GradingSessionResponse struct {
	ID                uint                    `json:"id"`
	SubmissionID      uint                    `json:"submission_id"`
	ExamID            uint                    `json:"exam_id"`
	Status            string                  `json:"status"`
	Version           int                     `json:"version"`
	TotalScore        *float64                `json:"total_score"`
	ScoringComment    string                  `json:"scoring_comment"`
	GradedAt          *time.Time              `json:"graded_at"`
	PreviousSessionID *uint                   `json:"previous_session_id"`
	Progress          float64                 `json:"progress"`
	Records           []GradingRecordResponse `json:"records"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// GradingProgressResponse reports how far grading of a session has advanced.
type GradingProgressResponse struct {
	SessionID    uint     `json:"session_id"`
	Status       string   `json:"status"`
	GradedCount  int64    `json:"graded_count"`
	TotalCount   int64    `json:"total_count"`
	Progress     float64  `json:"progress"`
	CurrentScore float64  `json:"current_score"`
	TotalScore   *float64 `json:"total_score"`
}

// QuestionStatsResponse reports aggregate outcomes for a question over current sessions.
type QuestionStatsResponse struct {
	QuestionID   uint      `json:"question_id"`
	GradedCount  int       `json:"graded_count"`
	CorrectCount int       `json:"correct_count"`
	CorrectRate  float64   `json:"correct_rate"`
	AverageScore float64   `json:"average_score"`
	GeneratedAt  time.Time `json:"generated_at"`
	CacheHit     bool      `json:"cache_hit"`
}

// AIScoreOutcome describes the result of scoring one record with the AI scorer.
type AIScoreOutcome struct {
	RecordID uint   `json:"record_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// AIScoreSessionResponse summarises a batch AI scoring run over a session.
type AIScoreSessionResponse struct {
	SessionID uint             `json:"session_id"`
	Scored    int              `json:"scored"`
	Failed    int              `json:"failed"`
	Outcomes  []AIScoreOutcome `json:"outcomes"`
}

// NewGradingRecordResponse converts a record model into its DTO.
func NewGradingRecordResponse(record models.QuestionGradingRecord) GradingRecordResponse {
	return GradingRecordResponse{
		ID:              record.ID,
		SessionID:       record.SessionID,
		QuestionID:      record.QuestionID,
		AnswerID:        record.AnswerID,
		QuestionType:    string(record.QuestionType),
		Points:          record.Points,
		SelectedChoice:  record.SelectedChoice,
		AnswerText:      record.AnswerText,
		Score:           record.Score,
		IsCorrect:       record.IsCorrect,
		ScoringMethod:   string(record.ScoringMethod),
		ConfidenceScore: record.ConfidenceScore,
		Feedback:        record.Feedback,
		AnalysisNote:    record.AnalysisNote,
		GradedBy:        record.GradedBy,
		GradedAt:        record.GradedAt,
	}
}

// NewGradingRecordResponseSlice converts a list of records.
func NewGradingRecordResponseSlice(records []models.QuestionGradingRecord) []GradingRecordResponse {
	responses := make([]GradingRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewGradingRecordResponse(record))
	}
	return responses
}

// NewGradingSessionResponse converts a session model into its DTO. progress is
// supplied by the caller because it depends on the loaded records.
func NewGradingSessionResponse(session models.GradingSession, progress float64) GradingSessionResponse {
	return GradingSessionResponse{
		ID:                session.ID,
		SubmissionID:      session.SubmissionID,
		ExamID:            session.ExamID,
		Status:            string(session.Status),
		Version:           session.Version,
		TotalScore:        session.TotalScore,
		ScoringComment:    session.ScoringComment,
		GradedAt:          session.GradedAt,
		PreviousSessionID: session.PreviousSessionID,
		Progress:          progress,
		Records:           NewGradingRecordResponseSlice(session.Records),
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}
