package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/config"
	handler "github.com/arena-oj/arena/internal/delivery/http"
	"github.com/arena-oj/arena/internal/judge"
	"github.com/arena-oj/arena/internal/leaderboard"
	"github.com/arena-oj/arena/internal/publisher"
	"github.com/arena-oj/arena/internal/ratelimit"
	"github.com/arena-oj/arena/internal/repository/postgres"
	"github.com/arena-oj/arena/internal/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Arena API Server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Server.WriteTimeout <= cfg.Judge.PollTimeout {
		logger.Warn("API_WRITE_TIMEOUT does not exceed JUDGE_POLL_TIMEOUT; slow submissions will be cut off",
			zap.Duration("write_timeout", cfg.Server.WriteTimeout),
			zap.Duration("poll_timeout", cfg.Judge.PollTimeout),
		)
	}

	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	judgeClient, err := judge.NewHTTPClient(cfg.Judge, logger)
	if err != nil {
		logger.Fatal("Failed to initialize judge client", zap.Error(err))
	}
	defer judgeClient.Close()

	submissionRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	problemRepo := postgres.NewPostgresProblemRepository(dbPool)
	userRepo := postgres.NewPostgresUserRepository(dbPool)

	progress := usecase.NewProgressUpdater(userRepo, logger)
	acceptance := usecase.NewAcceptanceAggregator(submissionRepo, problemRepo, logger)

	router := handler.NewRouter(
		handler.Usecases{
			Run:         usecase.NewRunCodeUsecase(problemRepo, judgeClient, cfg.Judge.PollTimeout, logger),
			Submit:      usecase.NewSubmitSolutionUsecase(submissionRepo, problemRepo, judgeClient, progress, acceptance, pub, cfg.Judge.PollTimeout, logger),
			Get:         usecase.NewGetSubmissionUsecase(submissionRepo, logger),
			TouchStreak: usecase.NewTouchStreakUsecase(userRepo, logger),
			Progress:    usecase.NewGetProgressUsecase(userRepo),
		},
		handler.RouterDeps{
			Limiter:     ratelimit.NewLimiter(rdb),
			Leaderboard: leaderboard.NewStore(rdb, cfg.Leaderboard.Key),
			HealthChecks: map[string]handler.Check{
				"postgres": dbPool.Ping,
				"redis": func(ctx context.Context) error {
					return rdb.Ping(ctx).Err()
				},
			},
			RateLimits:   cfg.RateLimit,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	// In-flight submissions may still be polling the judge.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Judge.PollTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
