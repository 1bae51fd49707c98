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

// SessionHandler serves the unauthenticated student flow: resolving a task
// code, joining, submitting drafts, and walking the revision loop.
type SessionHandler struct {
	service service.SessionService
	sync    dto.SyncConfig
	logger  zerolog.Logger
}

// NewSessionHandler builds a session handler instance. The sync config is
// echoed back on poll responses so clients follow the configured cadence.
func NewSessionHandler(service service.SessionService, sync dto.SyncConfig, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		sync:    sync,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("/tasks/:code", h.resolveTask)
	router.Post("/join", h.join)
	router.Get("/students/:id", h.studentState)
	router.Post("/students/:id/submit", h.submit)
	router.Post("/students/:id/revise", h.revise)
	router.Post("/students/:id/next-step", h.selectNextStep)
	router.Post("/students/:id/complete", h.markCompleted)
}

func (h *SessionHandler) resolveTask(c *fiber.Ctx) error {
	task, err := h.service.ResolveTask(c.Context(), c.Params("code"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task resolved", task)
}

func (h *SessionHandler) join(c *fiber.Ctx) error {
	var payload dto.JoinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	joined, err := h.service.Join(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "joined session", joined)
}

// studentState is the student's poll endpoint; it returns the full current
// state including released feedback.
func (h *SessionHandler) studentState(c *fiber.Ctx) error {
	observability.PollRequests().WithLabelValues("student").Inc()

	state, err := h.service.StudentState(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, state, "student state", h.sync)
}

func (h *SessionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.Submit(c.Context(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "work submitted", state)
}

func (h *SessionHandler) revise(c *fiber.Ctx) error {
	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.ReviseSubmit(c.Context(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "revision submitted", state)
}

func (h *SessionHandler) selectNextStep(c *fiber.Ctx) error {
	var payload dto.SelectNextStepRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.SelectNextStep(c.Context(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "next step selected", state)
}

func (h *SessionHandler) markCompleted(c *fiber.Ctx) error {
	state, err := h.service.MarkCompleted(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "session completed", state)
}

func (h *SessionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTaskInactive):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrRevisionLimitReached):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("session request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
