package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

type mockSeedService struct {
	err         error
	lastToken   string
	lastPayload dto.SeedExamRequest
}

func (m *mockSeedService) ImportExam(_ context.Context, token string, payload dto.SeedExamRequest) (dto.SeedExamResponse, error) {
	m.lastToken = token
	m.lastPayload = payload
	if m.err != nil {
		return dto.SeedExamResponse{}, m.err
	}
	return dto.SeedExamResponse{ExamID: payload.ExamID, QuestionIDs: []uint{1}, SubmissionIDs: []uint{}}, nil
}

func postSeed(t *testing.T, svc service.SeedService) *http.Response {
	t.Helper()
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/seed"))

	body, err := json.Marshal(map[string]interface{}{
		"exam_id":   3,
		"questions": []map[string]interface{}{{"position": 1, "prompt": "Essay", "type": "SUBJECTIVE", "points": 5}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/exams", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Seed-Token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSeedHandler_ImportSuccess(t *testing.T) {
	svc := &mockSeedService{}
	resp := postSeed(t, svc)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "secret", svc.lastToken)
	require.Equal(t, uint(3), svc.lastPayload.ExamID)
	require.Len(t, svc.lastPayload.Questions, 1)
}

func TestSeedHandler_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		service.ErrSeedDisabled:     http.StatusForbidden,
		service.ErrSeedUnauthorized: http.StatusForbidden,
		service.ErrSeedInvalid:      http.StatusBadRequest,
		errors.New("disk full"):     http.StatusInternalServerError,
	}
	for err, status := range cases {
		resp := postSeed(t, &mockSeedService{err: err})
		require.Equal(t, status, resp.StatusCode, err.Error())
	}
}
