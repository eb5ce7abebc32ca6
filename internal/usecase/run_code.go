package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/judge"
	"github.com/arena-oj/arena/internal/metrics"
	"github.com/arena-oj/arena/internal/repository"
)

// RunCodeUsecase judges code against a problem's visible tests without
// recording anything.
type RunCodeUsecase struct {
	problems repository.ProblemRepository
	judge    judge.Client
	budget   time.Duration
	logger   *zap.Logger
}

// NewRunCodeUsecase creates a new RunCodeUsecase. budget bounds the judge poll.
func NewRunCodeUsecase(problems repository.ProblemRepository, client judge.Client, budget time.Duration, logger *zap.Logger) *RunCodeUsecase {
	return &RunCodeUsecase{
		problems: problems,
		judge:    client,
		budget:   budget,
		logger:   logger,
	}
}

// Execute returns details for every visible test. The summary fields only
// count tests up to the first one that was not accepted.
func (uc *RunCodeUsecase) Execute(ctx context.Context, problemID string, req *domain.CodeRequest) (*domain.RunResult, error) {
	ev, err := prepare(ctx, uc.problems, problemID, req, visibleTests)
	if err != nil {
		return nil, err
	}

	results, err := judgeAll(ctx, uc.judge, ev, uc.budget)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(ev.lang.Name), "judge_error").Inc()
		uc.logger.Warn("Run could not be judged",
			zap.String("problem_id", problemID),
			zap.String("language", string(ev.lang.Name)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("run: %w", err)
	}

	res := &domain.RunResult{
		Success:        true,
		TotalTestCases: len(ev.tests),
		TestDetails:    make([]domain.TestDetail, 0, len(results)),
	}
	for i, r := range results {
		tc := ev.tests[i]
		st := verdict(r)
		detail := domain.TestDetail{
			Input:          tc.Input,
			ExpectedOutput: tc.Output,
			ActualOutput:   r.Stdout,
			Status:         st,
			Runtime:        r.Time,
			Memory:         r.Memory,
		}
		if st != domain.StatusAccepted {
			detail.Error = failureMessage(i+1, tc, r, st)
		}
		res.TestDetails = append(res.TestDetails, detail)

		if !res.Success {
			continue
		}
		if st != domain.StatusAccepted {
			res.Success = false
			res.ErrorMessage = detail.Error
			continue
		}
		res.TestCasesPassed++
		res.Runtime += r.Time
		res.Memory = max(res.Memory, r.Memory)
	}

	outcome := "passed"
	if !res.Success {
		outcome = "failed"
	}
	metrics.RunsTotal.WithLabelValues(string(ev.lang.Name), outcome).Inc()

	return res, nil
}
