package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
	// ErrSeedInvalid indicates a fixture that references unknown questions or breaks question rules.
	ErrSeedInvalid = errors.New("invalid exam fixture")
)

// SeedService imports exam fixtures so grading can run without the upstream
// exam delivery system.
type SeedService interface {
	ImportExam(ctx context.Context, token string, payload dto.SeedExamRequest) (dto.SeedExamResponse, error)
}

type seedService struct {
	repo      repository.SeedRepository
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSeedService constructs a seeding service.
func NewSeedService(repo repository.SeedRepository, validator *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		repo:      repo,
		validator: validator,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
		now:       time.Now,
	}
}

func (s *seedService) ImportExam(ctx context.Context, token string, payload dto.SeedExamRequest) (dto.SeedExamResponse, error) {
	if !s.enabled {
		return dto.SeedExamResponse{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.SeedExamResponse{}, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SeedExamResponse{}, err
	}

	questions, positions, err := buildSeedQuestions(payload)
	if err != nil {
		return dto.SeedExamResponse{}, err
	}
	submissions, err := s.buildSeedSubmissions(payload, positions)
	if err != nil {
		return dto.SeedExamResponse{}, err
	}

	resolve := func(created []models.Question, submission *models.Submission) {
		for i := range submission.Answers {
			// QuestionID temporarily carries the slice index of the question.
			submission.Answers[i].QuestionID = created[submission.Answers[i].QuestionID].ID
		}
	}
	if err := s.repo.ImportExam(ctx, questions, submissions, resolve); err != nil {
		return dto.SeedExamResponse{}, err
	}

	response := dto.SeedExamResponse{
		ExamID:        payload.ExamID,
		QuestionIDs:   make([]uint, 0, len(questions)),
		SubmissionIDs: make([]uint, 0, len(submissions)),
	}
	for _, question := range questions {
		response.QuestionIDs = append(response.QuestionIDs, question.ID)
	}
	for _, submission := range submissions {
		response.SubmissionIDs = append(response.SubmissionIDs, submission.ID)
	}

	s.logger.Info().
		Uint("exam_id", payload.ExamID).
		Int("questions", len(questions)).
		Int("submissions", len(submissions)).
		Msg("exam fixture imported")
	return response, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func buildSeedQuestions(payload dto.SeedExamRequest) ([]models.Question, map[int]int, error) {
	questions := make([]models.Question, 0, len(payload.Questions))
	positions := make(map[int]int, len(payload.Questions))
	for _, item := range payload.Questions {
		if _, exists := positions[item.Position]; exists {
			return nil, nil, fmt.Errorf("%w: duplicate position %d", ErrSeedInvalid, item.Position)
		}
		if item.CorrectChoice != nil && *item.CorrectChoice < 0 {
			return nil, nil, fmt.Errorf("%w: negative answer key at position %d", ErrSeedInvalid, item.Position)
		}

		question := models.Question{
			ExamID:          payload.ExamID,
			Position:        item.Position,
			Prompt:          item.Prompt,
			Type:            models.QuestionType(item.Type),
			Points:          item.Points,
			ReferenceAnswer: item.ReferenceAnswer,
		}
		if question.IsObjective() {
			question.CorrectChoice = item.CorrectChoice
		}
		positions[item.Position] = len(questions)
		questions = append(questions, question)
	}
	return questions, positions, nil
}

func (s *seedService) buildSeedSubmissions(payload dto.SeedExamRequest, positions map[int]int) ([]models.Submission, error) {
	submissions := make([]models.Submission, 0, len(payload.Submissions))
	for _, item := range payload.Submissions {
		submittedAt := item.SubmittedAt
		if submittedAt.IsZero() {
			submittedAt = s.now().UTC()
		}

		answers := make([]models.SubmissionAnswer, 0, len(item.Answers))
		for _, answer := range item.Answers {
			index, ok := positions[answer.Position]
			if !ok {
				return nil, fmt.Errorf("%w: answer references unknown position %d", ErrSeedInvalid, answer.Position)
			}
			answers = append(answers, models.SubmissionAnswer{
				QuestionID:     uint(index),
				SelectedChoice: answer.SelectedChoice,
				AnswerText:     answer.AnswerText,
			})
		}

		submissions = append(submissions, models.Submission{
			ExamID:      payload.ExamID,
			StudentID:   item.StudentID,
			SubmittedAt: submittedAt,
			Answers:     answers,
		})
	}
	return submissions, nil
}
