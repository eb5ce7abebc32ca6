package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/judge"
	"github.com/arena-oj/arena/internal/repository"
	"github.com/arena-oj/arena/internal/source"
)

const (
	maxCodeBytes = 64 << 10 // 64 KB

	// judgeFailureMessage is what users see when judging could not finish.
	judgeFailureMessage = "Judging failed, please resubmit"
)

// evaluation is a validated request ready to be sent to the judge.
type evaluation struct {
	problem *domain.Problem
	lang    judge.LanguageInfo
	source  string
	tests   []domain.TestCase
}

// prepare runs every check that must pass before the judge is called. pick
// selects the test set (visible for runs, hidden for submissions).
func prepare(ctx context.Context, problems repository.ProblemRepository, problemID string, req *domain.CodeRequest, pick func(*domain.Problem) []domain.TestCase) (*evaluation, error) {
	if req == nil || strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrValidation)
	}
	if len(req.Code) > maxCodeBytes {
		return nil, domain.ErrPayloadTooLarge
	}
	if strings.TrimSpace(req.Language) == "" {
		return nil, fmt.Errorf("%w: language is required", domain.ErrValidation)
	}
	if strings.TrimSpace(problemID) == "" {
		return nil, fmt.Errorf("%w: problem id is required", domain.ErrValidation)
	}

	lang, err := judge.Resolve(req.Language)
	if err != nil {
		return nil, err
	}

	problem, err := problems.GetByID(ctx, problemID)
	if err != nil {
		return nil, err
	}

	src, err := source.Assemble(problem, lang.Name, req.Code)
	if err != nil {
		return nil, err
	}

	tests := pick(problem)
	if len(tests) == 0 {
		return nil, fmt.Errorf("%w: problem %s has no test cases", domain.ErrValidation, problemID)
	}

	return &evaluation{problem: problem, lang: lang, source: src, tests: tests}, nil
}

func visibleTests(p *domain.Problem) []domain.TestCase { return p.VisibleTests }

func hiddenTests(p *domain.Problem) []domain.TestCase { return p.HiddenTests }

// judgeAll sends one execution per test case as a single batch and waits for
// every result.
func judgeAll(ctx context.Context, client judge.Client, ev *evaluation, budget time.Duration) ([]judge.RawResult, error) {
	execs := make([]judge.Execution, len(ev.tests))
	for i, tc := range ev.tests {
		execs[i] = judge.Execution{
			Source:         ev.source,
			LanguageID:     ev.lang.JudgeID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
		}
	}

	tokens, err := client.SubmitBatch(ctx, execs)
	if err != nil {
		return nil, err
	}
	results, err := client.Await(ctx, tokens, budget)
	if err != nil {
		return nil, err
	}
	if len(results) != len(ev.tests) {
		return nil, fmt.Errorf("%w: %d results for %d tests", domain.ErrMalformedJudgeResponse, len(results), len(ev.tests))
	}
	return results, nil
}

// verdict classifies a final result. A final result can never be pending.
func verdict(r judge.RawResult) domain.Status {
	st := judge.Classify(r.StatusID)
	if st == domain.StatusPending {
		return domain.StatusError
	}
	return st
}

// diagnostic picks the judge's most specific explanation for a failure.
func diagnostic(r judge.RawResult) string {
	for _, s := range []string{r.CompileOutput, r.Stderr, r.Message} {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return "Execution failed"
}

// failureMessage describes the first failing test of a submission. n is 1-based.
func failureMessage(n int, tc domain.TestCase, r judge.RawResult, status domain.Status) string {
	switch status {
	case domain.StatusWrong:
		return fmt.Sprintf("Wrong answer on test case %d\nInput: %s\nExpected: %s\nOutput: %s",
			n, tc.Input, strings.TrimSpace(tc.Output), strings.TrimSpace(r.Stdout))
	case domain.StatusTLE:
		return "Time limit exceeded"
	}
	return diagnostic(r)
}
