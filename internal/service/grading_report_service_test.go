package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestQuestionStatsCountsCurrentSessionsOnly(t *testing.T) {
	h := newGradingHarness(t, nil)
	_, questions, original := completedSession(t, h, 2, 0)

	// Correct the second key; after the regrade both answers are right.
	require.NoError(t, h.db.Model(&models.Question{}).Where("id = ?", questions[1].ID).Update("correct_choice", 0).Error)
	_, err := h.regrade.StartRegrading(context.Background(), original.ID, reviewer)
	require.NoError(t, err)

	stats, err := h.report.QuestionStats(context.Background(), questions[1].ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.GradedCount)
	require.Equal(t, 1, stats.CorrectCount)
	require.Equal(t, 1.0, stats.CorrectRate)
	require.Equal(t, 2.0, stats.AverageScore)

	rate, err := h.report.CorrectRate(context.Background(), questions[0].ID)
	require.NoError(t, err)
	require.Equal(t, 1.0, rate)
}

func TestQuestionStatsAveragesAcrossSubmissions(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	essay := session.Records[0]

	_, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(4, ""), reviewer)
	require.NoError(t, err)

	second := models.Submission{ExamID: 1, StudentID: 43, Answers: []models.SubmissionAnswer{{QuestionID: essay.QuestionID, AnswerText: "other"}}}
	require.NoError(t, h.db.Create(&second).Error)
	other, err := h.sessions.StartGrading(context.Background(), second.ID, reviewer)
	require.NoError(t, err)
	_, err = h.manual.Grade(context.Background(), other.Records[0].ID, dto.ManualGradeRequest{Score: ptrFloat(0), IsCorrect: ptrBool(false)}, reviewer)
	require.NoError(t, err)

	average, err := h.report.AverageScore(context.Background(), essay.QuestionID)
	require.NoError(t, err)
	require.Equal(t, 2.0, average)

	stats, err := h.report.QuestionStats(context.Background(), essay.QuestionID)
	require.NoError(t, err)
	require.Equal(t, 0.5, stats.CorrectRate)
}

func TestQuestionStatsUnknownQuestion(t *testing.T) {
	h := newGradingHarness(t, nil)

	_, err := h.report.QuestionStats(context.Background(), 555)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionStatsCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	h := newGradingHarnessWithCache(t, nil, redisClient)
	session := startedSession(t, h, 1, 0)
	questionID := session.Records[0].QuestionID

	first, err := h.report.QuestionStats(context.Background(), questionID)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 1, first.GradedCount)
	require.True(t, server.Exists("grading:question:v1:1:stats"))

	// Drop the records; the cached answer is served until it expires.
	require.NoError(t, h.db.Where("1 = 1").Delete(&models.QuestionGradingRecord{}).Error)

	cached, err := h.report.QuestionStats(context.Background(), questionID)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, 1, cached.GradedCount)

	server.FastForward(2 * time.Minute)
	fresh, err := h.report.QuestionStats(context.Background(), questionID)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 0, fresh.GradedCount)
}

func TestListRecordsFilters(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 1, 3)

	essays := make([]dto.GradingRecordResponse, 0, 3)
	for _, record := range session.Records {
		if record.QuestionType == string(models.QuestionTypeSubjective) {
			essays = append(essays, record)
		}
	}
	_, err := h.ai.Record(context.Background(), essays[0].ID, aiGrade(3, 0.3), reviewer)
	require.NoError(t, err)
	_, err = h.ai.Record(context.Background(), essays[1].ID, aiGrade(9, 0.95), reviewer)
	require.NoError(t, err)

	sessionID := session.ID
	pending, err := h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{SessionID: &sessionID, PendingManual: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, essays[2].ID, pending[0].ID)

	low, err := h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{SessionID: &sessionID, LowConfidence: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, essays[0].ID, low[0].ID)

	threshold := 0.99
	below, err := h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{SessionID: &sessionID, MaxConfidence: &threshold})
	require.NoError(t, err)
	require.Len(t, below, 2)

	auto, err := h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{SessionID: &sessionID, Method: string(models.ScoringMethodAuto)})
	require.NoError(t, err)
	require.Len(t, auto, 1)

	questionID := essays[0].QuestionID
	byQuestion, err := h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{QuestionID: &questionID})
	require.NoError(t, err)
	require.Len(t, byQuestion, 1)

	_, err = h.report.ListRecords(context.Background(), dto.GradingRecordListRequest{Method: "GUESS"})
	require.Error(t, err)
}
