package ai

import (
	"context"
	"errors"
)

// ErrMalformedResponse indicates the model reply could not be decoded into a ScoreResponse.
var ErrMalformedResponse = errors.New("malformed scorer response")

// ScoreRequest contains what an external scorer needs to assess one free-text answer.
type ScoreRequest struct {
	QuestionID      uint    `json:"question_id"`
	Prompt          string  `json:"prompt,omitempty"`
	AnswerText      string  `json:"answer_text"`
	ReferenceAnswer string  `json:"reference_answer"`
	MaxPoints       float64 `json:"max_points"`
}

// ScoreResponse is the proposal returned by the scorer. Values are passed on as
// received; bounds are enforced by the caller before anything is stored.
type ScoreResponse struct {
	Score           float64 `json:"score"`
	IsCorrect       bool    `json:"is_correct"`
	ConfidenceScore float64 `json:"confidence_score"`
	AnalysisNote    string  `json:"analysis_note"`
}

// Scorer describes an AI model capable of scoring subjective answers.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResponse, error)
}
