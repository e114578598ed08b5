package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestGradingRecordRepositoryFilters(t *testing.T) {
	db := setupGradingTestDB(t)
	sessions := NewGradingSessionRepository(db)
	repo := NewGradingRecordRepository(db)
	ctx := context.Background()

	correct := true
	now := time.Now().UTC()
	superseded := models.GradingSession{SubmissionID: 1, ExamID: 1, Status: models.GradingSessionStatusRegraded, Version: 1}
	require.NoError(t, sessions.CreateWithRecords(ctx, &superseded, []models.QuestionGradingRecord{
		{QuestionID: 10, AnswerID: 1, QuestionType: models.QuestionTypeSubjective, Points: 5, Score: floatPtr(1), IsCorrect: &correct, ScoringMethod: models.ScoringMethodAIAssisted, ConfidenceScore: floatPtr(0.2), GradedAt: &now},
	}))

	current := models.GradingSession{SubmissionID: 1, ExamID: 1, Status: models.GradingSessionStatusInProgress, Version: 2, ActiveKey: activeKey(1)}
	require.NoError(t, sessions.CreateWithRecords(ctx, &current, []models.QuestionGradingRecord{
		{QuestionID: 10, AnswerID: 1, QuestionType: models.QuestionTypeSubjective, Points: 5, Score: floatPtr(2), IsCorrect: &correct, ScoringMethod: models.ScoringMethodAIAssisted, ConfidenceScore: floatPtr(0.4), GradedAt: &now},
		{QuestionID: 11, AnswerID: 2, QuestionType: models.QuestionTypeSubjective, Points: 5, ScoringMethod: models.ScoringMethodManual},
		{QuestionID: 12, AnswerID: 3, QuestionType: models.QuestionTypeObjective, Points: 2, Score: floatPtr(2), IsCorrect: &correct, ScoringMethod: models.ScoringMethodAuto, ConfidenceScore: floatPtr(1), GradedAt: &now},
	}))

	pending, err := repo.List(ctx, GradingRecordFilter{SessionID: &current.ID, PendingManual: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, uint(11), pending[0].QuestionID)

	lowConfidence, err := repo.List(ctx, GradingRecordFilter{MaxConfidence: floatPtr(0.5), CurrentOnly: true})
	require.NoError(t, err)
	require.Len(t, lowConfidence, 1)
	require.Equal(t, current.ID, lowConfidence[0].SessionID)

	questionID := uint(10)
	allVersions, err := repo.List(ctx, GradingRecordFilter{QuestionID: &questionID})
	require.NoError(t, err)
	require.Len(t, allVersions, 2)

	auto, err := repo.List(ctx, GradingRecordFilter{Method: models.ScoringMethodAuto})
	require.NoError(t, err)
	require.Len(t, auto, 1)

	counts, err := repo.CountBySession(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.Total)
	require.Equal(t, int64(2), counts.Graded)
	require.InDelta(t, 4, counts.ScoreTotal, 1e-9)
}

func TestGradingRecordRepositoryUpdateGradeRequiresActiveSession(t *testing.T) {
	db := setupGradingTestDB(t)
	sessions := NewGradingSessionRepository(db)
	repo := NewGradingRecordRepository(db)
	ctx := context.Background()

	active := models.GradingSession{SubmissionID: 2, ExamID: 1, Status: models.GradingSessionStatusInProgress, Version: 1, ActiveKey: activeKey(2)}
	require.NoError(t, sessions.CreateWithRecords(ctx, &active, []models.QuestionGradingRecord{
		{QuestionID: 1, AnswerID: 1, QuestionType: models.QuestionTypeSubjective, Points: 4, ScoringMethod: models.ScoringMethodManual},
	}))

	record := active.Records[0]
	record.Score = floatPtr(3)
	require.NoError(t, repo.UpdateGrade(ctx, &record))

	stored, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.InDelta(t, 3, *stored.Score, 1e-9)
	require.NotNil(t, stored.Session)
	require.Equal(t, active.ID, stored.Session.ID)

	require.NoError(t, db.Model(&models.GradingSession{}).Where("id = ?", active.ID).Update("status", models.GradingSessionStatusCompleted).Error)

	record.Score = floatPtr(1)
	require.ErrorIs(t, repo.UpdateGrade(ctx, &record), ErrSessionNotActive)

	stored, err = repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.InDelta(t, 3, *stored.Score, 1e-9)
}
