package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// LeaderboardReader returns the top of the points ranking.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the points ranking.
type LeaderboardHandler struct {
	board  LeaderboardReader
	logger *zap.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(board LeaderboardReader, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// Top handles GET /api/v1/leaderboard?limit=N
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "code": "VALIDATION_ERROR"})
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, "Leaderboard", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
