package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
)

// EventLock guards against folding the same event twice.
type EventLock interface {
	Acquire(ctx context.Context, submissionID uuid.UUID) (bool, error)
	Release(ctx context.Context, submissionID uuid.UUID) error
}

// Scoreboard accumulates awarded points per user.
type Scoreboard interface {
	AddPoints(ctx context.Context, userID string, points int) (int, error)
}

// RecordJudgedEventUsecase folds first-solve points from judged events into
// the leaderboard.
type RecordJudgedEventUsecase struct {
	lock   EventLock
	board  Scoreboard
	logger *zap.Logger
}

// NewRecordJudgedEventUsecase creates a new RecordJudgedEventUsecase.
func NewRecordJudgedEventUsecase(lock EventLock, board Scoreboard, logger *zap.Logger) *RecordJudgedEventUsecase {
	return &RecordJudgedEventUsecase{lock: lock, board: board, logger: logger}
}

// Execute applies one event. Returns (isDuplicate, error).
func (uc *RecordJudgedEventUsecase) Execute(ctx context.Context, event *domain.SubmissionJudgedEvent) (bool, error) {
	if event.PointsEarned <= 0 {
		return false, nil
	}

	acquired, err := uc.lock.Acquire(ctx, event.SubmissionID)
	if err != nil {
		return false, err
	}
	if !acquired {
		uc.logger.Info("Duplicate event detected, skipping",
			zap.String("submission_id", event.SubmissionID.String()),
		)
		return true, nil
	}

	total, err := uc.board.AddPoints(ctx, event.UserID, event.PointsEarned)
	if err != nil {
		// The pool requeues a first failure once; release so it can retry.
		if relErr := uc.lock.Release(ctx, event.SubmissionID); relErr != nil {
			uc.logger.Warn("Failed to release event lock", zap.Error(relErr))
		}
		return false, fmt.Errorf("add points: %w", err)
	}

	uc.logger.Info("Leaderboard updated",
		zap.String("submission_id", event.SubmissionID.String()),
		zap.String("user_id", event.UserID),
		zap.Int("points", event.PointsEarned),
		zap.Int("total", total),
	)
	return false, nil
}
