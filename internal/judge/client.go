package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/config"
	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/metrics"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultPollInterval = time.Second
	maxResponseBytes    = 8 << 20

	resultFields = "token,status,time,memory,stdout,stderr,compile_output,message"
)

// Execution is one test case to run on the judge.
type Execution struct {
	Source         string
	LanguageID     int
	Stdin          string
	ExpectedOutput string
}

// RawResult is the judge's report for one execution.
type RawResult struct {
	Token             string
	StatusID          int
	StatusDescription string
	Time              float64 // seconds
	Memory            int     // KB
	Stdout            string
	Stderr            string
	CompileOutput     string
	Message           string
}

// Client submits batches to the judge service and waits for their results.
// Implementations must be safe for concurrent use.
type Client interface {
	// SubmitBatch sends all executions in one request and returns one token per
	// execution, in order. The batch fails as a whole.
	SubmitBatch(ctx context.Context, execs []Execution) ([]string, error)

	// Await polls until every token is final or the budget elapses. Results
	// are returned in token order.
	Await(ctx context.Context, tokens []string, budget time.Duration) ([]RawResult, error)

	// Close releases the client's connections.
	Close() error
}

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to a Judge0-compatible REST API.
type HTTPClient struct {
	baseURL      string
	authToken    string
	rapidKey     string
	rapidHost    string
	pollInterval time.Duration
	http         *http.Client
	logger       *zap.Logger
}

// NewHTTPClient creates a judge client from configuration.
func NewHTTPClient(cfg config.JudgeConfig, logger *zap.Logger) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("judge: invalid base url %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		authToken:    cfg.AuthToken,
		rapidKey:     cfg.RapidAPIKey,
		rapidHost:    cfg.RapidAPIHost,
		pollInterval: interval,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}, nil
}

type batchSubmission struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type batchToken struct {
	Token string `json:"token"`
}

type resultStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type resultItem struct {
	Token         string          `json:"token"`
	Status        *resultStatus   `json:"status"`
	Time          json.RawMessage `json:"time"`
	Memory        *int            `json:"memory"`
	Stdout        *string         `json:"stdout"`
	Stderr        *string         `json:"stderr"`
	CompileOutput *string         `json:"compile_output"`
	Message       *string         `json:"message"`
}

type resultBatch struct {
	Submissions *[]resultItem `json:"submissions"`
}

func (c *HTTPClient) SubmitBatch(ctx context.Context, execs []Execution) ([]string, error) {
	if len(execs) == 0 {
		return nil, fmt.Errorf("judge: submit batch: %w: no executions", domain.ErrValidation)
	}

	payload := struct {
		Submissions []batchSubmission `json:"submissions"`
	}{Submissions: make([]batchSubmission, 0, len(execs))}
	for _, e := range execs {
		payload.Submissions = append(payload.Submissions, batchSubmission{
			SourceCode:     e.Source,
			LanguageID:     e.LanguageID,
			Stdin:          e.Stdin,
			ExpectedOutput: e.ExpectedOutput,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("judge: marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/submissions/batch?base64_encoded=false", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judge: build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.JudgeRequestsTotal.WithLabelValues("submit", "transport_error").Inc()
		return nil, fmt.Errorf("%w: submit batch: %v", domain.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.JudgeRequestsTotal.WithLabelValues("submit", "transport_error").Inc()
		return nil, fmt.Errorf("%w: read batch response: %v", domain.ErrJudgeUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.JudgeRequestsTotal.WithLabelValues("submit", "http_"+strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("%w: submit batch: status %d: %s", domain.ErrJudgeUnavailable, resp.StatusCode, truncate(string(raw), 256))
	}

	var tokens []batchToken
	if err := json.Unmarshal(raw, &tokens); err != nil {
		metrics.JudgeRequestsTotal.WithLabelValues("submit", "malformed").Inc()
		return nil, fmt.Errorf("%w: submit batch: %v", domain.ErrJudgeUnavailable, err)
	}
	if len(tokens) != len(execs) {
		metrics.JudgeRequestsTotal.WithLabelValues("submit", "malformed").Inc()
		return nil, fmt.Errorf("%w: submit batch: got %d tokens for %d executions", domain.ErrJudgeUnavailable, len(tokens), len(execs))
	}

	out := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if t.Token == "" {
			metrics.JudgeRequestsTotal.WithLabelValues("submit", "rejected").Inc()
			return nil, fmt.Errorf("%w: submit batch: execution %d was rejected", domain.ErrJudgeUnavailable, i)
		}
		out = append(out, t.Token)
	}

	metrics.JudgeRequestsTotal.WithLabelValues("submit", "ok").Inc()
	c.logger.Debug("Submitted batch to judge", zap.Int("executions", len(out)))
	return out, nil
}

func (c *HTTPClient) Await(ctx context.Context, tokens []string, budget time.Duration) ([]RawResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	start := time.Now()
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	polls := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("judge: await: %w", ctx.Err())
		case <-deadline.C:
			metrics.JudgeRequestsTotal.WithLabelValues("poll", "timeout").Inc()
			if lastErr != nil {
				return nil, fmt.Errorf("%w after %d polls: %w", domain.ErrPollTimeout, polls, lastErr)
			}
			return nil, fmt.Errorf("%w after %d polls", domain.ErrPollTimeout, polls)
		case <-ticker.C:
		}

		polls++
		results, err := c.fetch(ctx, tokens)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedJudgeResponse) {
				metrics.JudgeRequestsTotal.WithLabelValues("poll", "malformed").Inc()
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("judge: await: %w", ctx.Err())
			}
			metrics.JudgeRequestsTotal.WithLabelValues("poll", "transient_error").Inc()
			c.logger.Warn("Judge poll failed, retrying", zap.Int("attempt", polls), zap.Error(err))
			lastErr = err
			continue
		}

		if allFinal(results) {
			metrics.JudgeRequestsTotal.WithLabelValues("poll", "ok").Inc()
			metrics.JudgeAwaitDuration.Observe(time.Since(start).Seconds())
			return results, nil
		}
	}
}

func (c *HTTPClient) fetch(ctx context.Context, tokens []string) ([]RawResult, error) {
	q := url.Values{}
	q.Set("tokens", strings.Join(tokens, ","))
	q.Set("base64_encoded", "false")
	q.Set("fields", resultFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/submissions/batch?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build poll request: %v", domain.ErrMalformedJudgeResponse, err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll: %v", domain.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read poll response: %v", domain.ErrJudgeUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: poll: status %d", domain.ErrJudgeUnavailable, resp.StatusCode)
	}

	var batch resultBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedJudgeResponse, err)
	}
	if batch.Submissions == nil {
		return nil, fmt.Errorf("%w: missing submissions array", domain.ErrMalformedJudgeResponse)
	}
	items := *batch.Submissions
	if len(items) != len(tokens) {
		return nil, fmt.Errorf("%w: got %d results for %d tokens", domain.ErrMalformedJudgeResponse, len(items), len(tokens))
	}

	out := make([]RawResult, len(tokens))
	index := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		index[tok] = i
	}
	seen := make([]bool, len(tokens))
	for i, it := range items {
		if it.Status == nil {
			return nil, fmt.Errorf("%w: result %q has no status", domain.ErrMalformedJudgeResponse, it.Token)
		}
		r := RawResult{
			Token:             it.Token,
			StatusID:          it.Status.ID,
			StatusDescription: it.Status.Description,
			Time:              parseSeconds(it.Time),
			Stdout:            deref(it.Stdout),
			Stderr:            deref(it.Stderr),
			CompileOutput:     deref(it.CompileOutput),
			Message:           deref(it.Message),
		}
		if it.Memory != nil {
			r.Memory = *it.Memory
		}

		// Results come back in request order unless the judge echoes tokens,
		// in which case every echoed token must belong to this batch.
		pos := i
		if it.Token != "" {
			var ok bool
			if pos, ok = index[it.Token]; !ok {
				return nil, fmt.Errorf("%w: unknown token %q", domain.ErrMalformedJudgeResponse, it.Token)
			}
		}
		if seen[pos] {
			return nil, fmt.Errorf("%w: duplicate result for token %q", domain.ErrMalformedJudgeResponse, tokens[pos])
		}
		seen[pos] = true
		out[pos] = r
	}
	return out, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}
	if c.rapidKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.rapidKey)
		if c.rapidHost != "" {
			req.Header.Set("X-RapidAPI-Host", c.rapidHost)
		}
	}
}

// Close releases idle connections held by the client.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func allFinal(results []RawResult) bool {
	for _, r := range results {
		if !IsFinal(r.StatusID) {
			return false
		}
	}
	return true
}

// parseSeconds accepts the judge's time field as a decimal string, a number, or null.
func parseSeconds(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
