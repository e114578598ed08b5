package service

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// AutoGrader scores objective questions against their answer key.
// It performs no I/O and never fails for well-formed records.
type AutoGrader struct {
	now func() time.Time
}

// NewAutoGrader constructs an AutoGrader using the wall clock.
func NewAutoGrader() *AutoGrader {
	return &AutoGrader{now: time.Now}
}

// Grade scores the record in place and reports whether it applied. Subjective
// records are left untouched.
func (g *AutoGrader) Grade(record *models.QuestionGradingRecord) bool {
	if record == nil || !record.IsObjective() {
		return false
	}

	correct := record.SelectedChoice != nil && record.CorrectChoice != nil && *record.SelectedChoice == *record.CorrectChoice
	score := 0.0
	if correct {
		score = record.Points
	}
	confidence := 1.0
	gradedAt := g.now()

	record.Score = &score
	record.IsCorrect = &correct
	record.ScoringMethod = models.ScoringMethodAuto
	record.ConfidenceScore = &confidence
	record.Feedback = ""
	record.AnalysisNote = ""
	record.GradedBy = nil
	record.GradedAt = &gradedAt
	return true
}

// Seed builds the initial record for an answered question: objective answers are
// scored immediately, subjective ones wait unscored as MANUAL.
func (g *AutoGrader) Seed(question models.Question, answer models.SubmissionAnswer) models.QuestionGradingRecord {
	record := models.QuestionGradingRecord{
		QuestionID:     question.ID,
		AnswerID:       answer.ID,
		QuestionType:   question.Type,
		Points:         question.Points,
		CorrectChoice:  copyInt(question.CorrectChoice),
		SelectedChoice: copyInt(answer.SelectedChoice),
		AnswerText:     answer.AnswerText,
	}
	g.reset(&record)
	return record
}

// Reseed clones a record of a superseded session for the next version. When the
// question is still available its current points and answer key are used, so a
// corrected key is picked up by the regrade.
func (g *AutoGrader) Reseed(original models.QuestionGradingRecord, question *models.Question) models.QuestionGradingRecord {
	record := models.QuestionGradingRecord{
		QuestionID:     original.QuestionID,
		AnswerID:       original.AnswerID,
		QuestionType:   original.QuestionType,
		Points:         original.Points,
		CorrectChoice:  copyInt(original.CorrectChoice),
		SelectedChoice: copyInt(original.SelectedChoice),
		AnswerText:     original.AnswerText,
	}
	if question != nil {
		record.QuestionType = question.Type
		record.Points = question.Points
		record.CorrectChoice = copyInt(question.CorrectChoice)
	}
	g.reset(&record)
	return record
}

func (g *AutoGrader) reset(record *models.QuestionGradingRecord) {
	if g.Grade(record) {
		return
	}
	record.Score = nil
	record.IsCorrect = nil
	record.ScoringMethod = models.ScoringMethodManual
	record.ConfidenceScore = nil
	record.Feedback = ""
	record.AnalysisNote = ""
	record.GradedBy = nil
	record.GradedAt = nil
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
