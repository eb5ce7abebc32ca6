package mock

import (
	"context"
	"sync"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/publisher"
)

// Ensure Publisher implements publisher.Publisher.
var _ publisher.Publisher = (*Publisher)(nil)

// Publisher records published events for assertions.
type Publisher struct {
	mu        sync.Mutex
	Published []*domain.SubmissionJudgedEvent
	PublishFn func(ctx context.Context, event *domain.SubmissionJudgedEvent) error
	Closed    bool
}

// NewPublisher creates a new mock publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (m *Publisher) PublishJudged(ctx context.Context, event *domain.SubmissionJudgedEvent) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, event)
	return nil
}

// Events returns a snapshot of the recorded events.
func (m *Publisher) Events() []*domain.SubmissionJudgedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SubmissionJudgedEvent(nil), m.Published...)
}

func (m *Publisher) Close() error {
	m.Closed = true
	return nil
}
