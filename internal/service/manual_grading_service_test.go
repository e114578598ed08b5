package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func startedSession(t *testing.T, h *gradingHarness, objectives, subjectives int) dto.GradingSessionResponse {
	t.Helper()
	submission, _ := seedExam(t, h.db, 1, objectives, subjectives)
	session, err := h.sessions.StartGrading(context.Background(), submission.ID, reviewer)
	require.NoError(t, err)
	return session
}

func firstRecord(session dto.GradingSessionResponse, questionType models.QuestionType) dto.GradingRecordResponse {
	for _, record := range session.Records {
		if record.QuestionType == string(questionType) {
			return record
		}
	}
	return dto.GradingRecordResponse{}
}

func manualGrade(score float64, feedback string) dto.ManualGradeRequest {
	return dto.ManualGradeRequest{Score: ptrFloat(score), IsCorrect: ptrBool(score > 0), Feedback: feedback}
}

func TestManualGradingRejectsOutOfBoundScores(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	essay := firstRecord(session, models.QuestionTypeSubjective)

	for _, score := range []float64{essay.Points + 1, -1} {
		_, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(score, "nope"), reviewer)
		require.ErrorIs(t, err, ErrInvalidScore)
	}

	stored := h.reloadRecord(t, essay.ID)
	require.Nil(t, stored.Score)
	require.Empty(t, stored.Feedback)
}

func TestManualGradingRejectsScoresJustOutsideBounds(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	essay := firstRecord(session, models.QuestionTypeSubjective)

	for _, score := range []float64{-5e-10, essay.Points + 5e-10} {
		_, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(score, "edge"), reviewer)
		require.ErrorIs(t, err, ErrInvalidScore)
	}

	require.Nil(t, h.reloadRecord(t, essay.ID).Score)
}

func TestManualGradingAcceptsBoundaryScores(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 2)

	resp, err := h.manual.Grade(context.Background(), session.Records[0].ID, manualGrade(session.Records[0].Points, "full marks"), reviewer)
	require.NoError(t, err)
	require.Equal(t, session.Records[0].Points, *resp.Score)

	resp, err = h.manual.Grade(context.Background(), session.Records[1].ID, manualGrade(0, "blank"), reviewer)
	require.NoError(t, err)
	require.Equal(t, 0.0, *resp.Score)
	require.Equal(t, string(models.ScoringMethodManual), resp.ScoringMethod)
	require.Equal(t, reviewer.ID, *resp.GradedBy)
	require.NotNil(t, resp.GradedAt)
}

func TestManualGradingRejectsObjectiveRecords(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 1, 0)
	objective := firstRecord(session, models.QuestionTypeObjective)

	_, err := h.manual.Grade(context.Background(), objective.ID, manualGrade(1, "override"), reviewer)
	require.ErrorIs(t, err, ErrObjectiveRecordLocked)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	stored := h.reloadRecord(t, objective.ID)
	require.Equal(t, models.ScoringMethodAuto, stored.ScoringMethod)
}

func TestManualGradingRejectsClosedSession(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	h.gradeSubjective(t, session, 5)
	_, err := h.sessions.CompleteGrading(context.Background(), session.ID, dto.CompleteGradingRequest{}, reviewer)
	require.NoError(t, err)

	_, err = h.manual.Grade(context.Background(), session.Records[0].ID, manualGrade(8, "late change"), reviewer)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	require.Equal(t, 5.0, *h.reloadRecord(t, session.Records[0].ID).Score)
}

func TestManualGradingUnknownRecord(t *testing.T) {
	h := newGradingHarness(t, nil)

	_, err := h.manual.Grade(context.Background(), 1234, manualGrade(1, ""), reviewer)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestManualGradingRequiresScore(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)

	_, err := h.manual.Grade(context.Background(), session.Records[0].ID, dto.ManualGradeRequest{IsCorrect: ptrBool(true)}, reviewer)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidScore)
}

func TestManualGradingOverwritesAIProposal(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	essay := session.Records[0]

	_, err := h.ai.Record(context.Background(), essay.ID, dto.AIGradeRequest{
		Score:        ptrFloat(4),
		IsCorrect:    ptrBool(false),
		Confidence:   ptrFloat(0.4),
		AnalysisNote: "misses the base case",
	}, reviewer)
	require.NoError(t, err)

	resp, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(8, "<i>Good</i> reasoning"), reviewer)
	require.NoError(t, err)
	require.Equal(t, "Good reasoning", resp.Feedback)

	stored := h.reloadRecord(t, essay.ID)
	require.Equal(t, models.ScoringMethodManual, stored.ScoringMethod)
	require.Equal(t, 8.0, *stored.Score)
	require.True(t, *stored.IsCorrect)
	require.Nil(t, stored.ConfidenceScore)
	require.Empty(t, stored.AnalysisNote)
}

func TestManualGradingRepeatIsIdempotent(t *testing.T) {
	h := newGradingHarness(t, nil)
	session := startedSession(t, h, 0, 1)
	essay := session.Records[0]

	first, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(6, "ok"), reviewer)
	require.NoError(t, err)
	second, err := h.manual.Grade(context.Background(), essay.ID, manualGrade(6, "ok"), reviewer)
	require.NoError(t, err)
	require.Equal(t, first.GradedAt.Unix(), second.GradedAt.Unix())

	var logs int64
	require.NoError(t, h.db.Model(&models.ActivityLog{}).Where("action = ?", ActionRecordManual).Count(&logs).Error)
	require.Equal(t, int64(1), logs)
}
