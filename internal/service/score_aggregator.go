package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// ScoreAggregator turns record scores into session totals and progress figures.
type ScoreAggregator struct {
	records repository.GradingRecordRepository
}

// NewScoreAggregator constructs the aggregator.
func NewScoreAggregator(records repository.GradingRecordRepository) *ScoreAggregator {
	return &ScoreAggregator{records: records}
}

// CalculateAndUpdateTotalScore stores the sum of the loaded records on the
// session. It refuses to publish a partial total.
func (a *ScoreAggregator) CalculateAndUpdateTotalScore(session *models.GradingSession) error {
	graded, total := countGraded(session.Records)
	if graded != total {
		return fmt.Errorf("%w: %d of %d records graded", ErrAggregation, graded, total)
	}

	sum := SumScores(session.Records)
	session.TotalScore = &sum
	return nil
}

// IsAllQuestionsGraded reports whether no record of the session is unscored.
func (a *ScoreAggregator) IsAllQuestionsGraded(ctx context.Context, sessionID uint) (bool, error) {
	counts, err := a.records.CountBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return counts.Graded == counts.Total, nil
}

// Progress returns the persisted counts and the graded fraction for a session.
func (a *ScoreAggregator) Progress(ctx context.Context, sessionID uint) (repository.SessionRecordCounts, float64, error) {
	counts, err := a.records.CountBySession(ctx, sessionID)
	if err != nil {
		return repository.SessionRecordCounts{}, 0, err
	}
	return counts, progressRatio(counts.Graded, counts.Total), nil
}

// SumScores adds the scores of graded records; unscored records count as zero.
func SumScores(records []models.QuestionGradingRecord) float64 {
	var sum float64
	for _, record := range records {
		if record.Score != nil {
			sum += *record.Score
		}
	}
	return sum
}

// GradingProgress is graded / total. An empty session has nothing left to grade
// and reports 1.
func GradingProgress(records []models.QuestionGradingRecord) float64 {
	graded, total := countGraded(records)
	return progressRatio(int64(graded), int64(total))
}

func countGraded(records []models.QuestionGradingRecord) (int, int) {
	graded := 0
	for _, record := range records {
		if record.IsGraded() {
			graded++
		}
	}
	return graded, len(records)
}

func progressRatio(graded, total int64) float64 {
	if total == 0 {
		return 1
	}
	return float64(graded) / float64(total)
}
