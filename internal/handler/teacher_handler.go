package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/observability"
	"github.com/noah-isme/quill-go-api/internal/service"
	"github.com/noah-isme/quill-go-api/internal/utils"
)

// TeacherHandler serves the authenticated review flow: the live dashboard,
// feedback generation, approval, and quota visibility.
type TeacherHandler struct {
	sessions service.SessionService
	credits  service.CreditService
	sync     dto.SyncConfig
	logger   zerolog.Logger
}

// NewTeacherHandler builds a teacher handler instance. The sync config is
// echoed back on dashboard polls so clients follow the configured cadence.
func NewTeacherHandler(sessions service.SessionService, credits service.CreditService, sync dto.SyncConfig, logger zerolog.Logger) *TeacherHandler {
	return &TeacherHandler{
		sessions: sessions,
		credits:  credits,
		sync:     sync,
		logger:   logger.With().Str("component", "teacher_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. The group is
// expected to sit behind JWT authentication.
func (h *TeacherHandler) Register(router fiber.Router) {
	router.Get("/sessions/:id/dashboard", h.dashboard)
	router.Post("/students/:id/generate", h.generate)
	router.Post("/generate/batch", h.generateBatch)
	router.Post("/students/:id/approve", h.approve)
	router.Put("/students/:id/feedback", h.editFeedback)
	router.Get("/usage", h.usage)
}

// dashboard is the teacher's poll endpoint; the same payload backs the
// authoritative reconcile on the client.
func (h *TeacherHandler) dashboard(c *fiber.Ctx) error {
	observability.PollRequests().WithLabelValues("teacher").Inc()

	dashboard, err := h.sessions.Dashboard(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, dashboard, "session dashboard", h.sync)
}

func (h *TeacherHandler) generate(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	state, err := h.sessions.Generate(c.Context(), teacherID, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "feedback generated", state)
}

func (h *TeacherHandler) generateBatch(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	var payload dto.BatchGenerateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.sessions.GenerateBatch(c.Context(), teacherID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batch generation finished", result)
}

func (h *TeacherHandler) approve(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	var payload dto.ApproveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.sessions.Approve(c.Context(), teacherID, c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "feedback released", state)
}

func (h *TeacherHandler) editFeedback(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	var payload dto.EditFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.sessions.EditFeedback(c.Context(), teacherID, c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "feedback updated", state)
}

func (h *TeacherHandler) usage(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	usage, err := h.credits.Usage(c.Context(), teacherID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "generation usage", usage)
}

func (h *TeacherHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrQuotaExhausted):
		return utils.SendError(c, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrGenerationFailed):
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("teacher request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
