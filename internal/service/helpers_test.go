package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Question{},
		&models.Submission{},
		&models.SubmissionAnswer{},
		&models.GradingSession{},
		&models.QuestionGradingRecord{},
		&models.ActivityLog{},
	))
	return db
}

// seedExam creates an exam with the given number of objective questions (2 points,
// key 1) followed by subjective questions (10 points), and a submission answering
// all of them. Even-indexed objective answers are correct, odd-indexed ones pick 0.
func seedExam(t *testing.T, db *gorm.DB, examID uint, objectives, subjectives int) (models.Submission, []models.Question) {
	t.Helper()

	questions := make([]models.Question, 0, objectives+subjectives)
	for i := 0; i < objectives; i++ {
		questions = append(questions, models.Question{
			ExamID:        examID,
			Position:      len(questions) + 1,
			Prompt:        fmt.Sprintf("Objective %d", i+1),
			Type:          models.QuestionTypeObjective,
			Points:        2,
			CorrectChoice: ptrInt(1),
		})
	}
	for i := 0; i < subjectives; i++ {
		questions = append(questions, models.Question{
			ExamID:          examID,
			Position:        len(questions) + 1,
			Prompt:          fmt.Sprintf("Essay %d", i+1),
			Type:            models.QuestionTypeSubjective,
			Points:          10,
			ReferenceAnswer: "A function calling itself",
		})
	}
	if len(questions) > 0 {
		require.NoError(t, db.Create(&questions).Error)
	}

	answers := make([]models.SubmissionAnswer, 0, len(questions))
	for i, question := range questions {
		answer := models.SubmissionAnswer{QuestionID: question.ID}
		if question.IsObjective() {
			if i%2 == 0 {
				answer.SelectedChoice = ptrInt(1)
			} else {
				answer.SelectedChoice = ptrInt(0)
			}
		} else {
			answer.AnswerText = fmt.Sprintf("Answer to essay %d", i+1)
		}
		answers = append(answers, answer)
	}

	submission := models.Submission{
		ExamID:      examID,
		StudentID:   42,
		SubmittedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Answers:     answers,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission, questions
}

type stubScorer struct {
	mu       sync.Mutex
	calls    int
	response ai.ScoreResponse
	err      error
	failFor  map[uint]error
	block    bool
}

func (s *stubScorer) Score(ctx context.Context, req ai.ScoreRequest) (ai.ScoreResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return ai.ScoreResponse{}, ctx.Err()
	}
	if err, ok := s.failFor[req.QuestionID]; ok {
		return ai.ScoreResponse{}, err
	}
	if s.err != nil {
		return ai.ScoreResponse{}, s.err
	}
	return s.response, nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// gradingHarness wires every grading service over one sqlite database.
type gradingHarness struct {
	db       *gorm.DB
	sessions GradingSessionService
	regrade  RegradeService
	manual   ManualGradingService
	ai       AIGradingService
	report   GradingReportService
	records  repository.GradingRecordRepository
}

func newGradingHarness(t *testing.T, scorer ai.Scorer) *gradingHarness {
	t.Helper()
	return newGradingHarnessWithCache(t, scorer, nil)
}

func newGradingHarnessWithCache(t *testing.T, scorer ai.Scorer, cache *redis.Client) *gradingHarness {
	t.Helper()

	db := setupServiceDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := testLogger()

	sessionRepo := repository.NewGradingSessionRepository(db)
	recordRepo := repository.NewGradingRecordRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activity := NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	grader := NewAutoGrader()

	return &gradingHarness{
		db: db,
		sessions: NewGradingSessionService(GradingSessionDependencies{
			Sessions:    sessionRepo,
			Submissions: submissionRepo,
			Questions:   questionRepo,
			Aggregator:  NewScoreAggregator(recordRepo),
			AutoGrader:  grader,
			Validator:   validate,
			Activity:    activity,
		}, logger),
		regrade: NewRegradeService(sessionRepo, questionRepo, grader, activity, nil, logger),
		manual:  NewManualGradingService(recordRepo, validate, activity, logger),
		ai: NewAIGradingService(recordRepo, sessionRepo, questionRepo, scorer, validate, activity, AIGradingConfig{
			Timeout:     50 * time.Millisecond,
			Concurrency: 2,
		}, logger),
		report:  NewGradingReportService(recordRepo, questionRepo, cache, validate, GradingReportConfig{StatsTTL: time.Minute, LowConfidenceThreshold: 0.5}, logger),
		records: recordRepo,
	}
}

var reviewer = ActivityActor{ID: 9, Role: "teacher"}

// gradeSubjective manually scores every unscored record of the session.
func (h *gradingHarness) gradeSubjective(t *testing.T, session dto.GradingSessionResponse, score float64) {
	t.Helper()
	for _, record := range session.Records {
		if record.Score != nil {
			continue
		}
		_, err := h.manual.Grade(context.Background(), record.ID, dto.ManualGradeRequest{
			Score:     ptrFloat(score),
			IsCorrect: ptrBool(score > 0),
			Feedback:  "Reviewed",
		}, reviewer)
		require.NoError(t, err)
	}
}

func (h *gradingHarness) reloadRecord(t *testing.T, id uint) models.QuestionGradingRecord {
	t.Helper()
	var record models.QuestionGradingRecord
	require.NoError(t, h.db.First(&record, id).Error)
	return record
}
