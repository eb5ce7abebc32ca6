package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arena-oj/arena/internal/judge"
)

// Ensure Client implements judge.Client.
var _ judge.Client = (*Client)(nil)

// Client is a test double for judge.Client. By default every execution is
// accepted with its expected output.
type Client struct {
	mu sync.Mutex

	SubmitBatchFn func(ctx context.Context, execs []judge.Execution) ([]string, error)
	AwaitFn       func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error)

	// Recorded calls for assertions.
	Batches    [][]judge.Execution
	AwaitCalls [][]string
	Closed     bool

	pending map[string]judge.Execution
}

func (m *Client) SubmitBatch(ctx context.Context, execs []judge.Execution) ([]string, error) {
	m.mu.Lock()
	m.Batches = append(m.Batches, execs)
	if m.pending == nil {
		m.pending = make(map[string]judge.Execution)
	}
	m.mu.Unlock()
	if m.SubmitBatchFn != nil {
		return m.SubmitBatchFn(ctx, execs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]string, len(execs))
	for i, e := range execs {
		tok := fmt.Sprintf("tok-%d-%d", len(m.Batches), i)
		m.pending[tok] = e
		tokens[i] = tok
	}
	return tokens, nil
}

func (m *Client) Await(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
	m.mu.Lock()
	m.AwaitCalls = append(m.AwaitCalls, tokens)
	m.mu.Unlock()
	if m.AwaitFn != nil {
		return m.AwaitFn(ctx, tokens, budget)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]judge.RawResult, len(tokens))
	for i, tok := range tokens {
		e := m.pending[tok]
		out[i] = judge.RawResult{
			Token:             tok,
			StatusID:          judge.StatusAccepted,
			StatusDescription: "Accepted",
			Time:              0.01,
			Memory:            1024,
			Stdout:            e.ExpectedOutput,
		}
	}
	return out, nil
}

func (m *Client) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Verdicts builds an AwaitFn that reports the given statuses in order, each
// taking time seconds and memory KB.
func Verdicts(statuses ...int) func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
	return func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		out := make([]judge.RawResult, len(tokens))
		for i, tok := range tokens {
			id := judge.StatusAccepted
			if i < len(statuses) {
				id = statuses[i]
			}
			out[i] = judge.RawResult{
				Token:    tok,
				StatusID: id,
				Time:     float64(i+1) * 0.1,
				Memory:   (i + 1) * 1000,
			}
		}
		return out, nil
	}
}
