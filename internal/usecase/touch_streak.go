package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
	"github.com/arena-oj/arena/internal/streak"
)

// TouchStreakUsecase counts a login or session check toward the user's streak.
type TouchStreakUsecase struct {
	users  repository.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewTouchStreakUsecase creates a new TouchStreakUsecase.
func NewTouchStreakUsecase(users repository.UserRepository, logger *zap.Logger) *TouchStreakUsecase {
	return &TouchStreakUsecase{users: users, logger: logger, now: time.Now}
}

// Execute applies today's activity and returns the stored streak.
func (uc *TouchStreakUsecase) Execute(ctx context.Context, userID string) (domain.Streak, error) {
	if userID == "" {
		return domain.Streak{}, domain.ErrUnauthenticated
	}
	now := uc.now().UTC()
	s, err := uc.users.TouchStreak(ctx, userID, func(cur domain.Streak) domain.Streak {
		return streak.Update(cur, now)
	})
	if err != nil {
		return domain.Streak{}, err
	}
	uc.logger.Debug("Streak touched",
		zap.String("user_id", userID),
		zap.Int("current", s.Current),
		zap.Int("longest", s.Longest),
	)
	return s, nil
}
