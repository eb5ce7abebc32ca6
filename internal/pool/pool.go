// Package pool runs a fixed number of goroutines over consumed events.
package pool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/metrics"
)

var errPanic = errors.New("pool: processor panicked")

// Processor handles one event. It reports duplicates so they can be acked
// without side effects.
type Processor interface {
	Execute(ctx context.Context, event *domain.SubmissionJudgedEvent) (duplicate bool, err error)
}

// WorkerPool manages a fixed-size pool of goroutines that process events.
type WorkerPool struct {
	size      int
	events    <-chan *domain.EventMessage
	processor Processor
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, events <-chan *domain.EventMessage, processor Processor, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      max(size, 1),
		events:    events,
		processor: processor,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current events and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.events:
			if !ok {
				p.logger.Debug("Event channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.EventMessage) {
	event := msg.Event
	log := p.logger.With(
		zap.Int("worker_id", id),
		zap.String("submission_id", event.SubmissionID.String()),
	)

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	duplicate, err := p.process(ctx, event)
	switch {
	case err != nil:
		// Transient failures get one more delivery. After that, or on a panic,
		// the broker dead-letters the message so it cannot loop forever.
		requeue := !msg.Redelivered && !errors.Is(err, errPanic)
		log.Error("Event processing failed", zap.Error(err), zap.Bool("requeue", requeue))
		if nackErr := msg.Nack(requeue); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		metrics.EventsProcessed.WithLabelValues("error").Inc()
		return
	case duplicate:
		log.Debug("Duplicate event skipped")
		metrics.EventsProcessed.WithLabelValues("duplicate").Inc()
	default:
		metrics.EventsProcessed.WithLabelValues("ok").Inc()
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message", zap.Error(ackErr))
	}
}

// process isolates a panicking processor so the worker survives it.
func (p *WorkerPool) process(ctx context.Context, event *domain.SubmissionJudgedEvent) (duplicate bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered", zap.Any("panic", r))
			duplicate, err = false, errPanic
		}
	}()
	return p.processor.Execute(ctx, event)
}
