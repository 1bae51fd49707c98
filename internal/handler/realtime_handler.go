package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quill-go-api/internal/middleware"
	"github.com/noah-isme/quill-go-api/internal/service"
)

// RealtimeHandler wires the push channel websocket upgrade for both roles.
// Students connect unauthenticated with their session and student ids;
// teachers connect behind JWT and may subscribe to any room.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// RegisterStudent binds the student push endpoint under the provided group.
func (h *RealtimeHandler) RegisterStudent(router fiber.Router) {
	router.Use("/ws", upgradeGate)
	router.Get("/ws", websocket.New(h.handleStudentConnection))
}

// RegisterTeacher binds the teacher push endpoint under the provided group.
// The group is expected to sit behind JWT authentication.
func (h *RealtimeHandler) RegisterTeacher(router fiber.Router) {
	router.Use("/ws", upgradeGate)
	router.Get("/ws", websocket.New(h.handleTeacherConnection))
}

func upgradeGate(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
		c.Locals("request_ctx", ctx)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *RealtimeHandler) handleStudentConnection(conn *websocket.Conn) {
	sessionID := strings.TrimSpace(conn.Query("session_id"))
	studentID := strings.TrimSpace(conn.Query("student_id"))
	if sessionID == "" || studentID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "session_id and student_id required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	opts := service.RealtimeConnectionOptions{
		SessionID: sessionID,
		StudentID: studentID,
		Context:   baseCtx,
	}

	h.logger.Info().Str("session_id", sessionID).Str("student_id", studentID).Msg("student push channel connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("session_id", sessionID).Str("student_id", studentID).Msg("student push channel disconnected")
}

func (h *RealtimeHandler) handleTeacherConnection(conn *websocket.Conn) {
	teacherID := websocketTeacherID(conn)
	if teacherID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "teacher identity missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	opts := service.RealtimeConnectionOptions{
		TeacherID: teacherID,
		SessionID: strings.TrimSpace(conn.Query("session_id")),
		Context:   baseCtx,
	}

	h.logger.Info().Uint("teacher_id", teacherID).Msg("teacher push channel connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("teacher_id", teacherID).Msg("teacher push channel disconnected")
}

func websocketTeacherID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case float64:
			if v < 0 {
				return 0
			}
			return uint(v)
		case uint:
			return v
		case int:
			if v < 0 {
				return 0
			}
			return uint(v)
		}
	}
	return 0
}
