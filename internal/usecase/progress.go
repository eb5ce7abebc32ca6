package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
	"github.com/arena-oj/arena/internal/streak"
)

const defaultPoints = 10

var pointsByDifficulty = map[domain.Difficulty]int{
	domain.DifficultyEasy:      10,
	domain.DifficultyMedium:    20,
	domain.DifficultyHard:      30,
	domain.DifficultySuperHard: 50,
}

// PointsFor returns the first-solve award for a difficulty tier.
func PointsFor(d domain.Difficulty) int {
	if p, ok := pointsByDifficulty[d]; ok {
		return p
	}
	return defaultPoints
}

// ProgressUpdater awards points, the solved entry and a streak tick on a
// user's first accepted submission for a problem.
type ProgressUpdater struct {
	users  repository.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewProgressUpdater creates a new ProgressUpdater.
func NewProgressUpdater(users repository.UserRepository, logger *zap.Logger) *ProgressUpdater {
	return &ProgressUpdater{users: users, logger: logger, now: time.Now}
}

// OnFirstSolve records the solve and returns the points awarded. It returns 0
// when a concurrent submission already claimed the first solve.
func (p *ProgressUpdater) OnFirstSolve(ctx context.Context, userID string, problem *domain.Problem, lang domain.Language) (int, error) {
	now := p.now().UTC()
	solved := domain.SolvedProblem{
		ProblemID:    problem.ID,
		Language:     lang,
		SolvedAt:     now,
		PointsEarned: PointsFor(problem.Difficulty),
	}

	awarded, err := p.users.ApplyFirstSolve(ctx, userID, solved, func(s domain.Streak) domain.Streak {
		return streak.Update(s, now)
	})
	if err != nil {
		return 0, err
	}
	if !awarded {
		p.logger.Info("First solve already recorded, no points awarded",
			zap.String("user_id", userID),
			zap.String("problem_id", problem.ID),
		)
		return 0, nil
	}

	p.logger.Info("First solve recorded",
		zap.String("user_id", userID),
		zap.String("problem_id", problem.ID),
		zap.Int("points", solved.PointsEarned),
	)
	return solved.PointsEarned, nil
}
