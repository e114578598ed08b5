package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

func fixedGrader(at time.Time) *AutoGrader {
	return &AutoGrader{now: func() time.Time { return at }}
}

func TestAutoGraderScoresCorrectChoice(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	grader := fixedGrader(at)
	record := models.QuestionGradingRecord{
		QuestionType:   models.QuestionTypeObjective,
		Points:         10,
		CorrectChoice:  ptrInt(3),
		SelectedChoice: ptrInt(3),
	}

	require.True(t, grader.Grade(&record))
	require.Equal(t, 10.0, *record.Score)
	require.True(t, *record.IsCorrect)
	require.Equal(t, models.ScoringMethodAuto, record.ScoringMethod)
	require.Equal(t, 1.0, *record.ConfidenceScore)
	require.Equal(t, at, *record.GradedAt)
}

func TestAutoGraderWrongOrMissingChoiceScoresZero(t *testing.T) {
	grader := NewAutoGrader()

	wrong := models.QuestionGradingRecord{QuestionType: models.QuestionTypeObjective, Points: 4, CorrectChoice: ptrInt(1), SelectedChoice: ptrInt(2)}
	require.True(t, grader.Grade(&wrong))
	require.Equal(t, 0.0, *wrong.Score)
	require.False(t, *wrong.IsCorrect)

	blank := models.QuestionGradingRecord{QuestionType: models.QuestionTypeObjective, Points: 4, CorrectChoice: ptrInt(1)}
	require.True(t, grader.Grade(&blank))
	require.Equal(t, 0.0, *blank.Score)
	require.False(t, *blank.IsCorrect)
}

func TestAutoGraderIsIdempotent(t *testing.T) {
	grader := NewAutoGrader()
	record := models.QuestionGradingRecord{QuestionType: models.QuestionTypeObjective, Points: 5, CorrectChoice: ptrInt(2), SelectedChoice: ptrInt(2)}

	require.True(t, grader.Grade(&record))
	firstScore, firstCorrect := *record.Score, *record.IsCorrect

	require.True(t, grader.Grade(&record))
	require.Equal(t, firstScore, *record.Score)
	require.Equal(t, firstCorrect, *record.IsCorrect)
}

func TestAutoGraderLeavesSubjectiveUntouched(t *testing.T) {
	grader := NewAutoGrader()
	record := models.QuestionGradingRecord{QuestionType: models.QuestionTypeSubjective, Points: 10, AnswerText: "essay"}

	require.False(t, grader.Grade(&record))
	require.Nil(t, record.Score)
	require.Empty(t, record.ScoringMethod)
}

func TestAutoGraderSeedSubjectiveWaitsForManualInput(t *testing.T) {
	grader := NewAutoGrader()
	question := models.Question{ID: 3, Type: models.QuestionTypeSubjective, Points: 10}
	answer := models.SubmissionAnswer{ID: 8, QuestionID: 3, AnswerText: "free text"}

	record := grader.Seed(question, answer)
	require.Equal(t, uint(3), record.QuestionID)
	require.Equal(t, uint(8), record.AnswerID)
	require.Nil(t, record.Score)
	require.Nil(t, record.GradedAt)
	require.Equal(t, models.ScoringMethodManual, record.ScoringMethod)
}

func TestAutoGraderReseedUsesCorrectedKey(t *testing.T) {
	grader := NewAutoGrader()
	original := models.QuestionGradingRecord{
		QuestionID:     1,
		QuestionType:   models.QuestionTypeObjective,
		Points:         2,
		CorrectChoice:  ptrInt(0),
		SelectedChoice: ptrInt(1),
	}
	require.True(t, grader.Grade(&original))
	require.False(t, *original.IsCorrect)

	corrected := models.Question{ID: 1, Type: models.QuestionTypeObjective, Points: 3, CorrectChoice: ptrInt(1)}
	next := grader.Reseed(original, &corrected)
	require.True(t, *next.IsCorrect)
	require.Equal(t, 3.0, *next.Score)

	unchanged := grader.Reseed(original, nil)
	require.False(t, *unchanged.IsCorrect)
	require.Equal(t, 0.0, *unchanged.Score)
}

func TestAutoGraderReseedResetsSubjective(t *testing.T) {
	grader := NewAutoGrader()
	gradedAt := time.Now()
	original := models.QuestionGradingRecord{
		QuestionID:      4,
		QuestionType:    models.QuestionTypeSubjective,
		Points:          10,
		AnswerText:      "essay",
		Score:           ptrFloat(7),
		IsCorrect:       ptrBool(true),
		ScoringMethod:   models.ScoringMethodAIAssisted,
		ConfidenceScore: ptrFloat(0.7),
		Feedback:        "good",
		AnalysisNote:    "mentions base case",
		GradedBy:        ptrUint(2),
		GradedAt:        &gradedAt,
	}

	next := grader.Reseed(original, nil)
	require.Equal(t, "essay", next.AnswerText)
	require.Nil(t, next.Score)
	require.Nil(t, next.IsCorrect)
	require.Nil(t, next.ConfidenceScore)
	require.Nil(t, next.GradedBy)
	require.Nil(t, next.GradedAt)
	require.Empty(t, next.Feedback)
	require.Empty(t, next.AnalysisNote)
	require.Equal(t, models.ScoringMethodManual, next.ScoringMethod)
}
