package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/delivery/http/middleware"
	"github.com/arena-oj/arena/internal/usecase"
)

const streamInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes a submission's state until it is terminal.
type WebSocketHandler struct {
	getUC  *usecase.GetSubmissionUsecase
	logger *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getUC *usecase.GetSubmissionUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{getUC: getUC, logger: logger}
}

// Stream handles GET /api/v1/submissions/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID format", "code": "VALIDATION_ERROR"})
		return
	}
	userID := middleware.GetUserID(c)

	// Fail before upgrading so the client gets a proper status code.
	if _, err := h.getUC.Execute(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, "Stream submission", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("submission_id", idStr))

	ctx := c.Request.Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		sub, err := h.getUC.Execute(ctx, userID, id)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": "Submission not found"})
			return
		}

		if err := conn.WriteJSON(sub); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		if sub.Status.IsTerminal() {
			h.logger.Debug("Submission reached terminal state, closing WebSocket", zap.String("submission_id", idStr))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
