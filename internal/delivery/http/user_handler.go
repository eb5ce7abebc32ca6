package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/delivery/http/middleware"
	"github.com/arena-oj/arena/internal/usecase"
)

// UserHandler serves the caller's progress and the activity hooks that count
// toward streaks.
type UserHandler struct {
	touchUC    *usecase.TouchStreakUsecase
	progressUC *usecase.GetProgressUsecase
	logger     *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(touchUC *usecase.TouchStreakUsecase, progressUC *usecase.GetProgressUsecase, logger *zap.Logger) *UserHandler {
	return &UserHandler{touchUC: touchUC, progressUC: progressUC, logger: logger}
}

// Progress handles GET /api/v1/users/me/progress
func (h *UserHandler) Progress(c *gin.Context) {
	p, err := h.progressUC.Execute(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "Get progress", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Session handles GET /api/v1/users/me/session
func (h *UserHandler) Session(c *gin.Context) {
	h.touch(c, "Session check")
}

// LoginActivity handles POST /api/v1/users/me/login-activity
func (h *UserHandler) LoginActivity(c *gin.Context) {
	h.touch(c, "Login activity")
}

func (h *UserHandler) touch(c *gin.Context, op string) {
	userID := middleware.GetUserID(c)
	s, err := h.touchUC.Execute(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":  userID,
		"streaks": s,
	})
}
