package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// GradingRecordHandler accepts manual and AI-assisted scores for single records.
type GradingRecordHandler struct {
	manual service.ManualGradingService
	ai     service.AIGradingService
	logger zerolog.Logger
}

// NewGradingRecordHandler constructs the handler.
func NewGradingRecordHandler(manual service.ManualGradingService, ai service.AIGradingService, logger zerolog.Logger) *GradingRecordHandler {
	return &GradingRecordHandler{
		manual: manual,
		ai:     ai,
		logger: logger.With().Str("component", "grading_record_handler").Logger(),
	}
}

// Register attaches record endpoints to the grading router group.
func (h *GradingRecordHandler) Register(router fiber.Router) {
	router.Patch("/records/:id/manual", h.gradeManual)
	router.Patch("/records/:id/ai", h.recordAI)
}

// RegisterAIScoring attaches the scorer-backed endpoint behind the given middlewares.
func (h *GradingRecordHandler) RegisterAIScoring(router fiber.Router, middlewares ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(middlewares)+1)
	handlers = append(handlers, middlewares...)
	handlers = append(handlers, h.scoreAI)
	router.Post("/records/:id/ai-score", handlers...)
}

func (h *GradingRecordHandler) gradeManual(c *fiber.Ctx) error {
	recordID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	var payload dto.ManualGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.manual.Grade(c.UserContext(), recordID, payload, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "grade record")
	}

	return utils.SendSuccess(c, "record graded", record)
}

func (h *GradingRecordHandler) recordAI(c *fiber.Ctx) error {
	recordID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	var payload dto.AIGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.ai.Record(c.UserContext(), recordID, payload, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "record ai score")
	}

	return utils.SendSuccess(c, "ai score recorded", record)
}

func (h *GradingRecordHandler) scoreAI(c *fiber.Ctx) error {
	recordID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	record, err := h.ai.Score(c.UserContext(), recordID, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "score record with ai")
	}

	return utils.SendSuccess(c, "record scored by ai", record)
}
