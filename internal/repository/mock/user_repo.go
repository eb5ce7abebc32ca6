package mock

import (
	"context"
	"sync"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

var _ repository.UserRepository = (*UserRepository)(nil)

// UserRepository is an in-memory progress store for testing. A single mutex
// serializes ApplyFirstSolve the way the row lock does in Postgres.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.UserProgress

	GetProgressFunc     func(ctx context.Context, userID string) (*domain.UserProgress, error)
	ApplyFirstSolveFunc func(ctx context.Context, userID string, solved domain.SolvedProblem, update repository.StreakFunc) (bool, error)
	TouchStreakFunc     func(ctx context.Context, userID string, update repository.StreakFunc) (domain.Streak, error)
}

// NewUserRepository creates a mock with the given users registered.
func NewUserRepository(userIDs ...string) *UserRepository {
	m := &UserRepository{users: make(map[string]*domain.UserProgress)}
	for _, id := range userIDs {
		m.users[id] = &domain.UserProgress{
			UserID:         id,
			ProblemsSolved: make(map[string]domain.SolvedProblem),
		}
	}
	return m
}

func (m *UserRepository) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if m.GetProgressFunc != nil {
		return m.GetProgressFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	cp.ProblemsSolved = make(map[string]domain.SolvedProblem, len(u.ProblemsSolved))
	for k, v := range u.ProblemsSolved {
		cp.ProblemsSolved[k] = v
	}
	return &cp, nil
}

func (m *UserRepository) ApplyFirstSolve(ctx context.Context, userID string, solved domain.SolvedProblem, update repository.StreakFunc) (bool, error) {
	if m.ApplyFirstSolveFunc != nil {
		return m.ApplyFirstSolveFunc(ctx, userID, solved, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if _, dup := u.ProblemsSolved[solved.ProblemID]; dup {
		return false, nil
	}
	u.ProblemsSolved[solved.ProblemID] = solved
	u.Points += solved.PointsEarned
	u.TotalProblemsSolved++
	u.Streaks = update(u.Streaks)
	return true, nil
}

func (m *UserRepository) TouchStreak(ctx context.Context, userID string, update repository.StreakFunc) (domain.Streak, error) {
	if m.TouchStreakFunc != nil {
		return m.TouchStreakFunc(ctx, userID, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.Streak{}, domain.ErrUserNotFound
	}
	u.Streaks = update(u.Streaks)
	return u.Streaks, nil
}

// SetStreak overwrites a user's streak (for test setup).
func (m *UserRepository) SetStreak(userID string, s domain.Streak) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Streaks = s
	}
}
