package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/models"
	"github.com/noah-isme/quill-go-api/internal/repository"
	"github.com/noah-isme/quill-go-api/internal/service"
	"github.com/noah-isme/quill-go-api/internal/utils"
)

// TaskHandler serves the teacher's task workspace.
type TaskHandler struct {
	service service.TaskService
	logger  zerolog.Logger
}

// NewTaskHandler builds a task handler instance.
func NewTaskHandler(service service.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. The group is
// expected to sit behind JWT authentication.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/tasks", h.list)
	router.Post("/tasks", h.create)
	router.Get("/tasks/:id", h.get)
	router.Patch("/tasks/:id/status", h.setStatus)
	router.Patch("/tasks/:id/folder", h.move)
	router.Post("/tasks/:id/end-session", h.endSession)
	router.Get("/folders", h.listFolders)
	router.Post("/folders", h.createFolder)
	router.Delete("/folders/:id", h.deleteFolder)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	filter := repository.TaskFilter{}
	if status := c.Query("status"); status != "" {
		parsed := models.TaskStatus(status)
		filter.Status = &parsed
	}
	if folderID, err := parseQueryUint(c, "folder_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid folder_id")
	} else if folderID != nil {
		filter.FolderID = folderID
	}

	tasks, err := h.service.List(c.Context(), teacherID, filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "tasks retrieved", tasks)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "teacher identity missing")
	}

	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.service.Create(c.Context(), teacherID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	task, err := h.service.Get(c.Context(), teacherID, taskID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) setStatus(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.TaskStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.service.SetStatus(c.Context(), teacherID, taskID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task status updated", task)
}

func (h *TaskHandler) move(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.TaskMoveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.service.Move(c.Context(), teacherID, taskID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task moved", task)
}

func (h *TaskHandler) endSession(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	task, err := h.service.EndLiveSession(c.Context(), teacherID, taskID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "live session ended", task)
}

func (h *TaskHandler) listFolders(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	folders, err := h.service.ListFolders(c.Context(), teacherID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "folders retrieved", folders)
}

func (h *TaskHandler) createFolder(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	var payload dto.FolderCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	folder, err := h.service.CreateFolder(c.Context(), teacherID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "folder created", folder)
}

func (h *TaskHandler) deleteFolder(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	folderID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteFolder(c.Context(), teacherID, folderID); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "folder deleted", nil)
}

func (h *TaskHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, service.ErrFolderNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("task request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
