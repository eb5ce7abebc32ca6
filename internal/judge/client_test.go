package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/config"
	"github.com/arena-oj/arena/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(config.JudgeConfig{
		BaseURL:      srv.URL,
		AuthToken:    "secret",
		HTTPTimeout:  time.Second,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func pollBody(items ...string) string {
	return `{"submissions":[` + strings.Join(items, ",") + `]}`
}

func item(token string, status int, stdout string) string {
	return fmt.Sprintf(`{"token":%q,"status":{"id":%d,"description":"x"},"time":"0.015","memory":2048,"stdout":%q,"stderr":null,"compile_output":null,"message":null}`,
		token, status, stdout)
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	if _, err := NewHTTPClient(config.JudgeConfig{BaseURL: "not a url"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

func TestSubmitBatch_Success(t *testing.T) {
	var got struct {
		Submissions []batchSubmission `json:"submissions"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submissions/batch" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("base64_encoded") != "false" {
			t.Errorf("expected base64_encoded=false, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("X-Auth-Token") != "secret" {
			t.Errorf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"token":"a"},{"token":"b"}]`))
	})

	tokens, err := c.SubmitBatch(context.Background(), []Execution{
		{Source: "print(1)", LanguageID: 71, Stdin: "1", ExpectedOutput: "1"},
		{Source: "print(1)", LanguageID: 71, Stdin: "2", ExpectedOutput: "2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "a" || tokens[1] != "b" {
		t.Errorf("unexpected tokens %v", tokens)
	}
	if len(got.Submissions) != 2 || got.Submissions[1].Stdin != "2" || got.Submissions[0].LanguageID != 71 {
		t.Errorf("unexpected payload %+v", got.Submissions)
	}
}

func TestSubmitBatch_FailsAtomically(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":"down"}`},
		{"token count mismatch", http.StatusCreated, `[{"token":"a"}]`},
		{"rejected execution", http.StatusCreated, `[{"token":"a"},{"language_id":["is invalid"]}]`},
		{"not json", http.StatusCreated, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			tokens, err := c.SubmitBatch(context.Background(), []Execution{{Source: "x"}, {Source: "y"}})
			if !errors.Is(err, domain.ErrJudgeUnavailable) {
				t.Fatalf("expected ErrJudgeUnavailable, got %v", err)
			}
			if tokens != nil {
				t.Errorf("expected no tokens on failure, got %v", tokens)
			}
		})
	}
}

func TestSubmitBatch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, _ := NewHTTPClient(config.JudgeConfig{BaseURL: srv.URL}, zap.NewNop())
	srv.Close()

	if _, err := c.SubmitBatch(context.Background(), []Execution{{Source: "x"}}); !errors.Is(err, domain.ErrJudgeUnavailable) {
		t.Fatalf("expected ErrJudgeUnavailable, got %v", err)
	}
}

func TestAwait_PollsUntilAllFinal(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tokens"); got != "a,b" {
			t.Errorf("tokens = %q", got)
		}
		if polls.Add(1) < 3 {
			w.Write([]byte(pollBody(item("a", StatusAccepted, "1"), item("b", StatusProcessing, ""))))
			return
		}
		w.Write([]byte(pollBody(item("a", StatusAccepted, "1"), item("b", StatusWrongAnswer, "3"))))
	})

	results, err := c.Await(context.Background(), []string{"a", "b"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", polls.Load())
	}
	if results[0].StatusID != StatusAccepted || results[1].StatusID != StatusWrongAnswer {
		t.Errorf("unexpected statuses %d, %d", results[0].StatusID, results[1].StatusID)
	}
	if results[1].Stdout != "3" || results[1].Memory != 2048 || results[1].Time != 0.015 {
		t.Errorf("fields not decoded: %+v", results[1])
	}
}

func TestAwait_OrdersByToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollBody(item("b", StatusWrongAnswer, ""), item("a", StatusAccepted, ""))))
	})

	results, err := c.Await(context.Background(), []string{"a", "b"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Token != "a" || results[1].Token != "b" {
		t.Errorf("results not in token order: %s, %s", results[0].Token, results[1].Token)
	}
}

func TestAwait_PositionalWithoutTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollBody(item("", StatusAccepted, "first"), item("", StatusWrongAnswer, "second"))))
	})

	results, err := c.Await(context.Background(), []string{"a", "b"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Stdout != "first" || results[1].Stdout != "second" {
		t.Errorf("results not in request order: %q, %q", results[0].Stdout, results[1].Stdout)
	}
}

func TestAwait_MismatchedTokensAreMalformed(t *testing.T) {
	tests := []struct {
		name  string
		items []string
	}{
		{"unknown token", []string{item("b", StatusAccepted, ""), item("c", StatusAccepted, "")}},
		{"duplicate token", []string{item("a", StatusAccepted, ""), item("a", StatusAccepted, "")}},
		{"echoed token collides with position", []string{item("", StatusAccepted, ""), item("a", StatusAccepted, "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(pollBody(tt.items...)))
			})

			results, err := c.Await(context.Background(), []string{"a", "b"}, time.Second)
			if !errors.Is(err, domain.ErrMalformedJudgeResponse) {
				t.Fatalf("expected ErrMalformedJudgeResponse, got %v (%+v)", err, results)
			}
		})
	}
}

func TestAwait_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollBody(item("a", StatusInQueue, ""))))
	})

	_, err := c.Await(context.Background(), []string{"a"}, 80*time.Millisecond)
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestAwait_RetriesTransientErrors(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(pollBody(item("a", StatusAccepted, "ok"))))
	})

	results, err := c.Await(context.Background(), []string{"a"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Stdout != "ok" {
		t.Errorf("unexpected result %+v", results[0])
	}
}

func TestAwait_TimeoutSurfacesLastTransientError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Await(context.Background(), []string{"a"}, 80*time.Millisecond)
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if !errors.Is(err, domain.ErrJudgeUnavailable) {
		t.Errorf("expected last transient error to be wrapped, got %v", err)
	}
}

func TestAwait_MalformedIsNotRetried(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Write([]byte(`{"error":"nope"}`))
	})

	_, err := c.Await(context.Background(), []string{"a"}, time.Second)
	if !errors.Is(err, domain.ErrMalformedJudgeResponse) {
		t.Fatalf("expected ErrMalformedJudgeResponse, got %v", err)
	}
	if polls.Load() != 1 {
		t.Errorf("expected a single poll, got %d", polls.Load())
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollBody(item("a", StatusProcessing, ""))))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Await(ctx, []string{"a"}, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := map[string]float64{
		`"0.125"`: 0.125,
		`0.5`:     0.5,
		`null`:    0,
		``:        0,
		`"abc"`:   0,
		`-1`:      0,
	}
	for in, want := range tests {
		if got := parseSeconds(json.RawMessage(in)); got != want {
			t.Errorf("parseSeconds(%s) = %v, want %v", in, got, want)
		}
	}
}
