package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

// Ensure SubmissionRepository implements repository.SubmissionRepository.
var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository is an in-memory submission store for testing.
type SubmissionRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*domain.Submission

	// Hook functions for injecting errors
	CreateFunc          func(ctx context.Context, sub *domain.Submission) error
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	CompleteFunc        func(ctx context.Context, sub *domain.Submission) error
	MarkErrorFunc       func(ctx context.Context, id uuid.UUID, message string) error
	HasAcceptedFunc     func(ctx context.Context, userID, problemID string, exclude uuid.UUID) (bool, error)
	CountForProblemFunc func(ctx context.Context, problemID string) (int, int, error)
}

// NewSubmissionRepository creates an empty mock repository.
func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{subs: make(map[uuid.UUID]*domain.Submission)}
}

func (m *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *SubmissionRepository) Complete(ctx context.Context, sub *domain.Submission) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subs[sub.ID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	if stored.Status != domain.StatusPending {
		return domain.ErrAlreadyCompleted
	}
	sub.UpdatedAt = time.Now().UTC()
	cp := *sub
	cp.CreatedAt = stored.CreatedAt
	m.subs[sub.ID] = &cp
	return nil
}

func (m *SubmissionRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	if m.MarkErrorFunc != nil {
		return m.MarkErrorFunc(ctx, id, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	if stored.Status != domain.StatusPending {
		return domain.ErrAlreadyCompleted
	}
	stored.Status = domain.StatusError
	stored.ErrorMessage = message
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *SubmissionRepository) HasAccepted(ctx context.Context, userID, problemID string, exclude uuid.UUID) (bool, error) {
	if m.HasAcceptedFunc != nil {
		return m.HasAcceptedFunc(ctx, userID, problemID, exclude)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, s := range m.subs {
		if id != exclude && s.UserID == userID && s.ProblemID == problemID && s.Status == domain.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *SubmissionRepository) CountForProblem(ctx context.Context, problemID string) (int, int, error) {
	if m.CountForProblemFunc != nil {
		return m.CountForProblemFunc(ctx, problemID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accepted, judged int
	for _, s := range m.subs {
		if s.ProblemID != problemID || s.Status == domain.StatusPending {
			continue
		}
		judged++
		if s.Status == domain.StatusAccepted {
			accepted++
		}
	}
	return accepted, judged, nil
}

// Put stores sub as-is (for test setup).
func (m *SubmissionRepository) Put(sub *domain.Submission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
}

// GetAll returns copies of all stored submissions (for test assertions).
func (m *SubmissionRepository) GetAll() []*domain.Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Submission, 0, len(m.subs))
	for _, s := range m.subs {
		cp := *s
		out = append(out, &cp)
	}
	return out
}
