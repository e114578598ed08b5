package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// GradingReportHandler serves record queries and per-question statistics.
type GradingReportHandler struct {
	service service.GradingReportService
	logger  zerolog.Logger
}

// NewGradingReportHandler constructs the handler.
func NewGradingReportHandler(service service.GradingReportService, logger zerolog.Logger) *GradingReportHandler {
	return &GradingReportHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_report_handler").Logger(),
	}
}

// Register attaches report endpoints to the grading router group.
func (h *GradingReportHandler) Register(router fiber.Router) {
	router.Get("/sessions/:id/records", h.sessionRecords)
	router.Get("/questions/:id/records", h.questionRecords)
	router.Get("/questions/:id/stats", h.questionStats)
}

func (h *GradingReportHandler) sessionRecords(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	req, err := recordListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	req.SessionID = &sessionID

	return h.list(c, req)
}

func (h *GradingReportHandler) questionRecords(c *fiber.Ctx) error {
	questionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	req, err := recordListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	req.QuestionID = &questionID
	// Question views default to current sessions; ?current=false opts into history.
	if c.Query("current") == "" {
		req.CurrentOnly = true
	}

	return h.list(c, req)
}

func (h *GradingReportHandler) list(c *fiber.Ctx, req dto.GradingRecordListRequest) error {
	records, err := h.service.ListRecords(c.UserContext(), req)
	if err != nil {
		return writeGradingError(c, h.logger, err, "list grading records")
	}
	return utils.OK(c, records, "grading records retrieved", fiber.Map{"count": len(records)})
}

func (h *GradingReportHandler) questionStats(c *fiber.Ctx) error {
	questionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	stats, err := h.service.QuestionStats(c.UserContext(), questionID)
	if err != nil {
		return writeGradingError(c, h.logger, err, "compute question stats")
	}

	return utils.SendSuccess(c, "question stats retrieved", stats)
}

func recordListRequest(c *fiber.Ctx) (dto.GradingRecordListRequest, error) {
	req := dto.GradingRecordListRequest{Method: c.Query("method")}

	var err error
	if req.PendingManual, err = parseQueryBool(c, "pending"); err != nil {
		return req, err
	}
	if req.LowConfidence, err = parseQueryBool(c, "low_confidence"); err != nil {
		return req, err
	}
	if req.CurrentOnly, err = parseQueryBool(c, "current"); err != nil {
		return req, err
	}
	if req.MaxConfidence, err = parseQueryFloat(c, "max_confidence"); err != nil {
		return req, err
	}
	return req, nil
}
