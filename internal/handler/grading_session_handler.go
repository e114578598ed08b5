package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// GradingSessionHandler exposes the session lifecycle: start, complete, regrade
// and the read-side queries over sessions of a submission.
type GradingSessionHandler struct {
	sessions service.GradingSessionService
	regrade  service.RegradeService
	ai       service.AIGradingService
	logger   zerolog.Logger
}

// NewGradingSessionHandler constructs the handler.
func NewGradingSessionHandler(sessions service.GradingSessionService, regrade service.RegradeService, ai service.AIGradingService, logger zerolog.Logger) *GradingSessionHandler {
	return &GradingSessionHandler{
		sessions: sessions,
		regrade:  regrade,
		ai:       ai,
		logger:   logger.With().Str("component", "grading_session_handler").Logger(),
	}
}

// Register attaches session endpoints to the grading router group.
func (h *GradingSessionHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/sessions", h.start)
	router.Get("/submissions/:id/sessions", h.history)
	router.Get("/submissions/:id/sessions/current", h.current)
	router.Get("/sessions/:id", h.get)
	router.Get("/sessions/:id/progress", h.progress)
	router.Post("/sessions/:id/complete", h.complete)
	router.Post("/sessions/:id/regrade", h.regradeSession)
}

// RegisterAIScoring attaches the batch AI scoring endpoint. It is separate so
// the router can put a rate limiter in front of it.
func (h *GradingSessionHandler) RegisterAIScoring(router fiber.Router, middlewares ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(middlewares)+1)
	handlers = append(handlers, middlewares...)
	handlers = append(handlers, h.aiScore)
	router.Post("/sessions/:id/ai-score", handlers...)
}

func (h *GradingSessionHandler) start(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	session, err := h.sessions.StartGrading(c.UserContext(), submissionID, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "start grading")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading session ready", session)
}

func (h *GradingSessionHandler) history(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	sessions, err := h.sessions.ListSessionHistory(c.UserContext(), submissionID)
	if err != nil {
		return writeGradingError(c, h.logger, err, "list grading sessions")
	}

	return utils.OK(c, sessions, "grading sessions retrieved", fiber.Map{"count": len(sessions)})
}

func (h *GradingSessionHandler) current(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	session, err := h.sessions.GetCurrentSession(c.UserContext(), submissionID)
	if err != nil {
		return writeGradingError(c, h.logger, err, "load current grading session")
	}

	return utils.SendSuccess(c, "current grading session retrieved", session)
}

func (h *GradingSessionHandler) get(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.sessions.GetSession(c.UserContext(), sessionID)
	if err != nil {
		return writeGradingError(c, h.logger, err, "load grading session")
	}

	return utils.SendSuccess(c, "grading session retrieved", session)
}

func (h *GradingSessionHandler) progress(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	progress, err := h.sessions.GetProgress(c.UserContext(), sessionID)
	if err != nil {
		return writeGradingError(c, h.logger, err, "load grading progress")
	}

	return utils.SendSuccess(c, "grading progress retrieved", progress)
}

func (h *GradingSessionHandler) complete(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	var payload dto.CompleteGradingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	session, err := h.sessions.CompleteGrading(c.UserContext(), sessionID, payload, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "complete grading")
	}

	return utils.SendSuccess(c, "grading completed", session)
}

func (h *GradingSessionHandler) regradeSession(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.regrade.StartRegrading(c.UserContext(), sessionID, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "start regrading")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "regrade session started", session)
}

func (h *GradingSessionHandler) aiScore(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid session id")
	}

	result, err := h.ai.ScoreSession(c.UserContext(), sessionID, activityActorFromContext(c))
	if err != nil {
		return writeGradingError(c, h.logger, err, "score session with ai")
	}

	requestLogger(h.logger, c).Info().
		Uint("session_id", sessionID).
		Int("scored", result.Scored).
		Int("failed", result.Failed).
		Msg("ai scoring run finished")
	return utils.SendSuccess(c, "ai scoring finished", result)
}
