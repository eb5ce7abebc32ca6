package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/judge"
	mockjudge "github.com/arena-oj/arena/internal/judge/mock"
	mockpub "github.com/arena-oj/arena/internal/publisher/mock"
	"github.com/arena-oj/arena/internal/repository"
	mockrepo "github.com/arena-oj/arena/internal/repository/mock"
	"github.com/arena-oj/arena/internal/usecase"
)

const testUser = "user-1"

type fixture struct {
	subs     *mockrepo.SubmissionRepository
	problems *mockrepo.ProblemRepository
	users    *mockrepo.UserRepository
	judge    *mockjudge.Client
	pub      *mockpub.Publisher
	submit   *usecase.SubmitSolutionUsecase
	run      *usecase.RunCodeUsecase
}

func testProblem() *domain.Problem {
	return &domain.Problem{
		ID:         "sum",
		Title:      "Sum of Two",
		Difficulty: domain.DifficultyMedium,
		Code: map[domain.Language]domain.CodeFragments{
			domain.LangPython: {Header: "import sys", Driver: "print(solve(*map(int, sys.stdin.read().split())))"},
			domain.LangCpp:    {Header: "#include <iostream>"},
		},
		VisibleTests: []domain.TestCase{
			{Input: "1 2", Output: "3"},
			{Input: "2 2", Output: "4"},
			{Input: "5 5", Output: "10"},
		},
		HiddenTests: []domain.TestCase{
			{Input: "0 0", Output: "0"},
			{Input: "1 1", Output: "2"},
			{Input: "-1 1", Output: "0"},
			{Input: "10 20", Output: "30"},
			{Input: "7 8", Output: "15"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		subs:     mockrepo.NewSubmissionRepository(),
		problems: mockrepo.NewProblemRepository(testProblem()),
		users:    mockrepo.NewUserRepository(testUser, "user-2"),
		judge:    &mockjudge.Client{},
		pub:      mockpub.NewPublisher(),
	}
	progress := usecase.NewProgressUpdater(f.users, logger)
	acceptance := usecase.NewAcceptanceAggregator(f.subs, f.problems, logger)
	f.submit = usecase.NewSubmitSolutionUsecase(f.subs, f.problems, f.judge, progress, acceptance, f.pub, time.Second, logger)
	f.run = usecase.NewRunCodeUsecase(f.problems, f.judge, time.Second, logger)
	return f
}

func pythonSolution() *domain.CodeRequest {
	return &domain.CodeRequest{Code: "def solve(a, b):\n    return a + b", Language: "python"}
}

// onlySubmission returns the single stored submission.
func (f *fixture) onlySubmission(t *testing.T) *domain.Submission {
	t.Helper()
	all := f.subs.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 stored submission, got %d", len(all))
	}
	return all[0]
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSubmit_MediumFirstSolveAwards20Points(t *testing.T) {
	f := newFixture(t)

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted || res.Status != domain.StatusAccepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if res.PointsEarned != 20 {
		t.Errorf("PointsEarned = %d, want 20", res.PointsEarned)
	}
	if res.TestCasesPassed != 5 || res.TotalTestCases != 5 {
		t.Errorf("passed %d/%d, want 5/5", res.TestCasesPassed, res.TotalTestCases)
	}

	stored := f.onlySubmission(t)
	if stored.Status != domain.StatusAccepted || stored.PointsEarned != 20 {
		t.Errorf("stored submission %+v", stored)
	}

	progress, _ := f.users.GetProgress(context.Background(), testUser)
	if progress.Points != 20 || progress.TotalProblemsSolved != 1 {
		t.Errorf("progress = %d points / %d solved, want 20 / 1", progress.Points, progress.TotalProblemsSolved)
	}
	if progress.ProblemsSolved["sum"].Language != domain.LangPython {
		t.Errorf("solved entry = %+v", progress.ProblemsSolved["sum"])
	}
	if progress.Streaks.Current != 1 {
		t.Errorf("streak = %+v, want current 1", progress.Streaks)
	}

	if got := f.problems.Acceptance("sum"); got != 100 {
		t.Errorf("acceptance = %d, want 100", got)
	}

	events := f.pub.Events()
	if len(events) != 1 || !events[0].FirstSolve || events[0].PointsEarned != 20 {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSubmit_SendsOneBatchOfHiddenTests(t *testing.T) {
	f := newFixture(t)

	if _, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.judge.Batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(f.judge.Batches))
	}
	batch := f.judge.Batches[0]
	if len(batch) != 5 {
		t.Fatalf("expected 5 executions, got %d", len(batch))
	}
	wantSource := "import sys\ndef solve(a, b):\n    return a + b\nprint(solve(*map(int, sys.stdin.read().split())))"
	for i, e := range batch {
		if e.LanguageID != 71 {
			t.Errorf("execution %d: language id %d, want 71", i, e.LanguageID)
		}
		if e.Source != wantSource {
			t.Errorf("execution %d: source %q", i, e.Source)
		}
		if e.Stdin != testProblem().HiddenTests[i].Input {
			t.Errorf("execution %d: stdin %q", i, e.Stdin)
		}
	}
}

func TestSubmit_RuntimeErrorOnThirdTest(t *testing.T) {
	f := newFixture(t)
	f.judge.AwaitFn = mockjudge.Verdicts(
		judge.StatusAccepted, judge.StatusAccepted, judge.StatusRuntimeNZEC,
		judge.StatusAccepted, judge.StatusAccepted,
	)

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusRuntimeError || res.Accepted {
		t.Errorf("status = %s, want runtime-error", res.Status)
	}
	if res.TestCasesPassed != 2 {
		t.Errorf("passed = %d, want 2", res.TestCasesPassed)
	}
	// Only tests 1 and 2 count: 0.1s + 0.2s, max(1000, 2000) KB.
	if !approx(res.Runtime, 0.3) || res.Memory != 2000 {
		t.Errorf("runtime/memory = %v/%d, want 0.3/2000", res.Runtime, res.Memory)
	}
	if res.PointsEarned != 0 {
		t.Errorf("PointsEarned = %d, want 0", res.PointsEarned)
	}
	if res.ErrorMessage != "Execution failed" {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}

	if stored := f.onlySubmission(t); stored.Status != domain.StatusRuntimeError || stored.TestCasesPassed > stored.TestCasesTotal {
		t.Errorf("stored submission %+v", stored)
	}
	progress, _ := f.users.GetProgress(context.Background(), testUser)
	if progress.Points != 0 || progress.TotalProblemsSolved != 0 {
		t.Errorf("progress must not change on failure: %+v", progress)
	}
	if got := f.problems.Acceptance("sum"); got != 0 {
		t.Errorf("acceptance = %d, want 0", got)
	}
}

func TestSubmit_FailureMessages(t *testing.T) {
	tests := []struct {
		name       string
		result     judge.RawResult
		wantStatus domain.Status
		wantMsg    string
	}{
		{
			name:       "wrong answer",
			result:     judge.RawResult{StatusID: judge.StatusWrongAnswer, Stdout: "1\n"},
			wantStatus: domain.StatusWrong,
			wantMsg:    "Wrong answer on test case 1\nInput: 0 0\nExpected: 0\nOutput: 1",
		},
		{
			name:       "time limit",
			result:     judge.RawResult{StatusID: judge.StatusTimeLimitExceeded},
			wantStatus: domain.StatusTLE,
			wantMsg:    "Time limit exceeded",
		},
		{
			name:       "compile error",
			result:     judge.RawResult{StatusID: judge.StatusCompilationError, CompileOutput: "SyntaxError: invalid syntax\n", Stderr: "ignored"},
			wantStatus: domain.StatusCompileError,
			wantMsg:    "SyntaxError: invalid syntax",
		},
		{
			name:       "runtime stderr",
			result:     judge.RawResult{StatusID: judge.StatusRuntimeSIGSEGV, Stderr: "Segmentation fault"},
			wantStatus: domain.StatusRuntimeError,
			wantMsg:    "Segmentation fault",
		},
		{
			name:       "judge message",
			result:     judge.RawResult{StatusID: judge.StatusInternalError, Message: "sandbox crashed"},
			wantStatus: domain.StatusError,
			wantMsg:    "sandbox crashed",
		},
		{
			name:       "unknown status",
			result:     judge.RawResult{StatusID: 42},
			wantStatus: domain.StatusError,
			wantMsg:    "Execution failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
				out := make([]judge.RawResult, len(tokens))
				out[0] = tt.result
				for i := 1; i < len(out); i++ {
					out[i] = judge.RawResult{StatusID: judge.StatusAccepted}
				}
				return out, nil
			}

			res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if res.ErrorMessage != tt.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, tt.wantMsg)
			}
			if res.TestCasesPassed != 0 {
				t.Errorf("passed = %d, want 0", res.TestCasesPassed)
			}
		})
	}
}

func TestSubmit_PollTimeoutEndsInError(t *testing.T) {
	f := newFixture(t)
	f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		return nil, fmt.Errorf("%w after 30 polls", domain.ErrPollTimeout)
	}

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}

	stored := f.onlySubmission(t)
	if stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
	if stored.ErrorMessage != "Judging failed, please resubmit" {
		t.Errorf("ErrorMessage = %q", stored.ErrorMessage)
	}
	if len(f.pub.Events()) != 0 {
		t.Error("no event should be published for an unjudged submission")
	}
}

func TestSubmit_JudgeUnavailableIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.judge.SubmitBatchFn = func(ctx context.Context, execs []judge.Execution) ([]string, error) {
		return nil, fmt.Errorf("%w: connection refused", domain.ErrJudgeUnavailable)
	}

	_, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if !errors.Is(err, domain.ErrJudgeUnavailable) {
		t.Fatalf("expected ErrJudgeUnavailable, got %v", err)
	}
	if len(f.judge.Batches) != 1 {
		t.Errorf("expected exactly 1 batch attempt, got %d", len(f.judge.Batches))
	}
	if len(f.judge.AwaitCalls) != 0 {
		t.Errorf("await must not run after a failed batch")
	}
	if stored := f.onlySubmission(t); stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestSubmit_CancelledRequestStillFinalizes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		cancel()
		return nil, ctx.Err()
	}

	_, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stored := f.onlySubmission(t); stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestSubmit_PanicStillFinalizes(t *testing.T) {
	f := newFixture(t)
	f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		panic("boom")
	}

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if err == nil || res != nil {
		t.Fatalf("expected error from panic, got %+v, %v", res, err)
	}
	if stored := f.onlySubmission(t); stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestSubmit_MalformedResultCount(t *testing.T) {
	f := newFixture(t)
	f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		return []judge.RawResult{{StatusID: judge.StatusAccepted}}, nil
	}

	_, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if !errors.Is(err, domain.ErrMalformedJudgeResponse) {
		t.Fatalf("expected ErrMalformedJudgeResponse, got %v", err)
	}
	if stored := f.onlySubmission(t); stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestSubmit_NotFirstSolveEarnsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution())
	if err != nil || first.PointsEarned != 20 {
		t.Fatalf("first solve = %+v, %v", first, err)
	}

	second, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Accepted || second.PointsEarned != 0 {
		t.Errorf("second solve = %+v, want accepted with 0 points", second)
	}

	progress, _ := f.users.GetProgress(ctx, testUser)
	if progress.Points != 20 || progress.TotalProblemsSolved != 1 {
		t.Errorf("progress = %+v", progress)
	}
	events := f.pub.Events()
	if len(events) != 2 || events[1].FirstSolve {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSubmit_ConcurrentFirstSolvesAwardOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	points := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution())
			errs[i] = err
			if res != nil {
				points[i] = res.PointsEarned
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := range points {
		if errs[i] != nil {
			t.Fatalf("submission %d: %v", i, errs[i])
		}
		total += points[i]
	}
	if total != 20 {
		t.Errorf("points awarded across submissions = %d, want 20", total)
	}
	progress, _ := f.users.GetProgress(ctx, testUser)
	if progress.Points != 20 || progress.TotalProblemsSolved != 1 {
		t.Errorf("progress = %d points / %d solved, want 20 / 1", progress.Points, progress.TotalProblemsSolved)
	}
}

func TestSubmit_RejectedBeforeJudging(t *testing.T) {
	big := strings.Repeat("x", 64<<10+1)
	tests := []struct {
		name    string
		user    string
		problem string
		req     *domain.CodeRequest
		wantErr error
	}{
		{"anonymous", "", "sum", pythonSolution(), domain.ErrUnauthenticated},
		{"blank code", testUser, "sum", &domain.CodeRequest{Code: "  \n", Language: "python"}, domain.ErrValidation},
		{"missing language", testUser, "sum", &domain.CodeRequest{Code: "x"}, domain.ErrValidation},
		{"too large", testUser, "sum", &domain.CodeRequest{Code: big, Language: "python"}, domain.ErrPayloadTooLarge},
		{"unknown language", testUser, "sum", &domain.CodeRequest{Code: "puts 1", Language: "ruby"}, domain.ErrUnsupportedLanguage},
		{"no template for language", testUser, "sum", &domain.CodeRequest{Code: "class Main {}", Language: "java"}, domain.ErrUnsupportedLanguage},
		{"unknown problem", testUser, "nope", pythonSolution(), domain.ErrProblemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.submit.Execute(context.Background(), tt.user, tt.problem, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(f.judge.Batches) != 0 {
				t.Error("judge must not be called")
			}
			if len(f.subs.GetAll()) != 0 {
				t.Error("no submission may be created")
			}
		})
	}
}

func TestSubmit_CppAliasResolves(t *testing.T) {
	f := newFixture(t)
	res, err := f.submit.Execute(context.Background(), testUser, "sum", &domain.CodeRequest{Code: "int main() {}", Language: "cpp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.judge.Batches[0][0].LanguageID != 54 {
		t.Errorf("language id = %d, want 54", f.judge.Batches[0][0].LanguageID)
	}
	if stored, _ := f.subs.GetByID(context.Background(), res.SubmissionID); stored.Language != domain.LangCpp {
		t.Errorf("stored language = %s, want c++", stored.Language)
	}
}

func TestSubmit_CompletionFailureIsAggregationFailure(t *testing.T) {
	f := newFixture(t)
	f.subs.CompleteFunc = func(ctx context.Context, sub *domain.Submission) error {
		return errors.New("connection reset")
	}

	_, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if !errors.Is(err, domain.ErrAggregationFailed) {
		t.Fatalf("expected ErrAggregationFailed, got %v", err)
	}
	stored := f.onlySubmission(t)
	if stored.Status != domain.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestSubmit_ProgressFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.users.ApplyFirstSolveFunc = func(ctx context.Context, userID string, solved domain.SolvedProblem, update repository.StreakFunc) (bool, error) {
		return false, errors.New("deadlock detected")
	}

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted || res.PointsEarned != 0 {
		t.Errorf("result = %+v, want accepted with 0 points", res)
	}
	if stored := f.onlySubmission(t); stored.Status != domain.StatusAccepted {
		t.Errorf("status = %s, want accepted", stored.Status)
	}
}

func TestSubmit_PublishFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	f.pub.PublishFn = func(ctx context.Context, event *domain.SubmissionJudgedEvent) error {
		return errors.New("broker down")
	}

	res, err := f.submit.Execute(context.Background(), testUser, "sum", pythonSolution())
	if err != nil || !res.Accepted {
		t.Fatalf("expected accepted result, got %+v, %v", res, err)
	}
}

func TestSubmit_AcceptanceCountsEveryJudgedAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.judge.AwaitFn = mockjudge.Verdicts(judge.StatusWrongAnswer)
	if _, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.problems.Acceptance("sum"); got != 0 {
		t.Errorf("acceptance = %d, want 0", got)
	}

	f.judge.AwaitFn = nil
	if _, err := f.submit.Execute(ctx, "user-2", "sum", pythonSolution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.problems.Acceptance("sum"); got != 50 {
		t.Errorf("acceptance = %d, want 50", got)
	}

	f.judge.AwaitFn = mockjudge.Verdicts(judge.StatusTimeLimitExceeded)
	if _, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.problems.Acceptance("sum"); got != 33 {
		t.Errorf("acceptance = %d, want 33", got)
	}
}

func TestSubmit_UnjudgedAttemptStillCountsTowardAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.submit.Execute(ctx, testUser, "sum", pythonSolution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.problems.Acceptance("sum"); got != 100 {
		t.Fatalf("acceptance = %d, want 100", got)
	}

	f.judge.AwaitFn = func(ctx context.Context, tokens []string, budget time.Duration) ([]judge.RawResult, error) {
		cancel()
		return nil, fmt.Errorf("%w after 30 polls", domain.ErrPollTimeout)
	}
	if _, err := f.submit.Execute(ctx, "user-2", "sum", pythonSolution()); !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if got := f.problems.Acceptance("sum"); got != 50 {
		t.Errorf("acceptance = %d, want 50 after an errored attempt", got)
	}
}
