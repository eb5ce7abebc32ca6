package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/config"
	"github.com/arena-oj/arena/internal/delivery/http/middleware"
	"github.com/arena-oj/arena/internal/ratelimit"
	"github.com/arena-oj/arena/internal/usecase"
)

// Usecases bundles everything the router dispatches to.
type Usecases struct {
	Run         *usecase.RunCodeUsecase
	Submit      *usecase.SubmitSolutionUsecase
	Get         *usecase.GetSubmissionUsecase
	TouchStreak *usecase.TouchStreakUsecase
	Progress    *usecase.GetProgressUsecase
}

// RouterDeps are the router's non-use-case collaborators.
type RouterDeps struct {
	Limiter      middleware.Allower
	Leaderboard  LeaderboardReader
	HealthChecks map[string]Check
	RateLimits   config.RateLimitConfig
	MaxBodyBytes int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(uc Usecases, deps RouterDeps, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Identity())
	router.Use(middleware.Logger(logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	submitLimit := middleware.RateLimiter(deps.Limiter, policy("submit", deps.RateLimits.Submit), logger)
	runLimit := middleware.RateLimiter(deps.Limiter, policy("run", deps.RateLimits.Run), logger)
	readLimit := middleware.RateLimiter(deps.Limiter, policy("read", deps.RateLimits.Read), logger)
	bodyLimit := middleware.BodySizeLimit(deps.MaxBodyBytes)
	authed := middleware.RequireUser()

	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.HealthChecks, logger)
		v1.GET("/health", healthHandler.Health)

		langHandler := NewLanguageHandler()
		v1.GET("/languages", langHandler.List)

		subHandler := NewSubmissionHandler(uc.Run, uc.Submit, uc.Get, logger)
		v1.POST("/problems/:id/run", runLimit, bodyLimit, subHandler.Run)
		v1.POST("/problems/:id/submit", authed, submitLimit, bodyLimit, subHandler.Submit)
		v1.GET("/submissions/:id", authed, readLimit, subHandler.GetByID)

		wsHandler := NewWebSocketHandler(uc.Get, logger)
		v1.GET("/submissions/:id/stream", authed, readLimit, wsHandler.Stream)

		lbHandler := NewLeaderboardHandler(deps.Leaderboard, logger)
		v1.GET("/leaderboard", readLimit, lbHandler.Top)

		userHandler := NewUserHandler(uc.TouchStreak, uc.Progress, logger)
		me := v1.Group("/users/me", authed, readLimit)
		me.GET("/progress", userHandler.Progress)
		me.GET("/session", userHandler.Session)
		me.POST("/login-activity", userHandler.LoginActivity)
	}

	return router
}

func policy(name string, p config.RatePolicy) ratelimit.Policy {
	return ratelimit.Policy{Name: name, Window: p.Window, MaxRequests: p.MaxRequests}
}
