package mock

import (
	"context"
	"sync"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

var _ repository.ProblemRepository = (*ProblemRepository)(nil)

// ProblemRepository is an in-memory problem store for testing.
type ProblemRepository struct {
	mu       sync.RWMutex
	problems map[string]*domain.Problem

	GetByIDFunc          func(ctx context.Context, id string) (*domain.Problem, error)
	UpdateAcceptanceFunc func(ctx context.Context, id string, percentage int) error
}

// NewProblemRepository creates a mock seeded with problems.
func NewProblemRepository(problems ...*domain.Problem) *ProblemRepository {
	m := &ProblemRepository{problems: make(map[string]*domain.Problem)}
	for _, p := range problems {
		m.problems[p.ID] = p
	}
	return m
}

func (m *ProblemRepository) GetByID(ctx context.Context, id string) (*domain.Problem, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *ProblemRepository) UpdateAcceptance(ctx context.Context, id string, percentage int) error {
	if m.UpdateAcceptanceFunc != nil {
		return m.UpdateAcceptanceFunc(ctx, id, percentage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return domain.ErrProblemNotFound
	}
	p.Acceptance = percentage
	return nil
}

// Acceptance returns the stored acceptance for id (for test assertions).
func (m *ProblemRepository) Acceptance(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.problems[id]; ok {
		return p.Acceptance
	}
	return -1
}
