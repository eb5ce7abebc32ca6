package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/judge"
	"github.com/arena-oj/arena/internal/metrics"
	"github.com/arena-oj/arena/internal/publisher"
	"github.com/arena-oj/arena/internal/repository"
)

const (
	// finalizeTimeout bounds writes that must happen after the request is gone.
	finalizeTimeout = 5 * time.Second

	saveFailureMessage = "Failed to save judging results, please resubmit"
)

// SubmitSolutionUsecase judges code against a problem's hidden tests and
// folds the verdict into the submission, the user's progress and the
// problem's acceptance rate.
type SubmitSolutionUsecase struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	judge       judge.Client
	progress    *ProgressUpdater
	acceptance  *AcceptanceAggregator
	publisher   publisher.Publisher
	budget      time.Duration
	logger      *zap.Logger
}

// NewSubmitSolutionUsecase creates a new SubmitSolutionUsecase.
func NewSubmitSolutionUsecase(
	subs repository.SubmissionRepository,
	problems repository.ProblemRepository,
	client judge.Client,
	progress *ProgressUpdater,
	acceptance *AcceptanceAggregator,
	pub publisher.Publisher,
	budget time.Duration,
	logger *zap.Logger,
) *SubmitSolutionUsecase {
	return &SubmitSolutionUsecase{
		submissions: subs,
		problems:    problems,
		judge:       client,
		progress:    progress,
		acceptance:  acceptance,
		publisher:   pub,
		budget:      budget,
		logger:      logger,
	}
}

// Execute judges one submission. Once the pending row exists, every return
// path leaves it in a terminal status.
func (uc *SubmitSolutionUsecase) Execute(ctx context.Context, userID, problemID string, req *domain.CodeRequest) (result *domain.SubmitResult, err error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	ev, err := prepare(ctx, uc.problems, problemID, req, hiddenTests)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	sub := &domain.Submission{
		ID:             id,
		UserID:         userID,
		ProblemID:      ev.problem.ID,
		Code:           req.Code,
		Language:       ev.lang.Name,
		Status:         domain.StatusPending,
		TestCasesTotal: len(ev.tests),
	}
	if err := uc.submissions.Create(ctx, sub); err != nil {
		uc.logger.Error("Failed to create submission", zap.Error(err), zap.String("submission_id", id.String()))
		return nil, fmt.Errorf("create submission: %w", err)
	}

	log := uc.logger.With(
		zap.String("submission_id", id.String()),
		zap.String("user_id", userID),
		zap.String("problem_id", ev.problem.ID),
	)

	completed := false
	failMessage := judgeFailureMessage
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while judging submission", zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, fmt.Errorf("submit: panic: %v", r)
		}
		if err != nil && !completed {
			uc.forceError(ctx, log, id, ev.problem.ID, failMessage)
		}
	}()

	results, err := judgeAll(ctx, uc.judge, ev, uc.budget)
	if err != nil {
		log.Warn("Submission could not be judged", zap.Error(err))
		metrics.SubmissionsTotal.WithLabelValues(string(ev.lang.Name), string(domain.StatusError)).Inc()
		return nil, fmt.Errorf("submit: %w", err)
	}

	uc.score(sub, ev.tests, results)

	if sub.Status == domain.StatusAccepted {
		sub.PointsEarned = uc.awardFirstSolve(ctx, log, sub, ev.problem)
	}

	if err := uc.submissions.Complete(ctx, sub); err != nil {
		failMessage = saveFailureMessage
		uc.aggregationFailure(log, "complete submission", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrAggregationFailed, err)
	}
	completed = true
	metrics.SubmissionsTotal.WithLabelValues(string(sub.Language), string(sub.Status)).Inc()

	if _, err := uc.acceptance.Recompute(ctx, ev.problem.ID); err != nil {
		uc.aggregationFailure(log, "recompute acceptance", err)
	}

	uc.publish(ctx, log, sub)

	log.Info("Submission judged",
		zap.String("status", string(sub.Status)),
		zap.Int("passed", sub.TestCasesPassed),
		zap.Int("total", sub.TestCasesTotal),
		zap.Int("points", sub.PointsEarned),
	)

	return &domain.SubmitResult{
		Accepted:        sub.Status == domain.StatusAccepted,
		SubmissionID:    sub.ID,
		Status:          sub.Status,
		TestCasesPassed: sub.TestCasesPassed,
		TotalTestCases:  sub.TestCasesTotal,
		Runtime:         sub.Runtime,
		Memory:          sub.Memory,
		PointsEarned:    sub.PointsEarned,
		ErrorMessage:    sub.ErrorMessage,
	}, nil
}

// score walks results in test order. Runtime and memory only cover accepted
// tests; the first failure decides the status.
func (uc *SubmitSolutionUsecase) score(sub *domain.Submission, tests []domain.TestCase, results []judge.RawResult) {
	sub.Status = domain.StatusAccepted
	for i, r := range results {
		st := verdict(r)
		if st != domain.StatusAccepted {
			sub.Status = st
			sub.ErrorMessage = failureMessage(i+1, tests[i], r, st)
			return
		}
		sub.TestCasesPassed++
		sub.Runtime += r.Time
		sub.Memory = max(sub.Memory, r.Memory)
	}
}

// awardFirstSolve returns the points earned by an accepted submission. Points
// are only awarded once per user and problem.
func (uc *SubmitSolutionUsecase) awardFirstSolve(ctx context.Context, log *zap.Logger, sub *domain.Submission, problem *domain.Problem) int {
	solvedBefore, err := uc.submissions.HasAccepted(ctx, sub.UserID, problem.ID, sub.ID)
	if err != nil {
		uc.aggregationFailure(log, "first solve check", err)
		return 0
	}
	if solvedBefore {
		return 0
	}
	points, err := uc.progress.OnFirstSolve(ctx, sub.UserID, problem, sub.Language)
	if err != nil {
		uc.aggregationFailure(log, "update progress", err)
		return 0
	}
	return points
}

func (uc *SubmitSolutionUsecase) publish(ctx context.Context, log *zap.Logger, sub *domain.Submission) {
	event := &domain.SubmissionJudgedEvent{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ProblemID:    sub.ProblemID,
		Language:     sub.Language,
		Status:       sub.Status,
		PointsEarned: sub.PointsEarned,
		FirstSolve:   sub.PointsEarned > 0,
		JudgedAt:     sub.UpdatedAt,
	}
	if err := uc.publisher.PublishJudged(ctx, event); err != nil {
		log.Warn("Failed to publish judged event", zap.Error(err))
	}
}

// forceError moves the submission to error even if ctx is already cancelled.
// The errored row counts as an attempt, so acceptance is recomputed too.
func (uc *SubmitSolutionUsecase) forceError(ctx context.Context, log *zap.Logger, id uuid.UUID, problemID, message string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	err := uc.submissions.MarkError(fctx, id, message)
	if err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
		uc.aggregationFailure(log, "mark submission error", err)
		return
	}
	log.Info("Submission forced to error", zap.String("message", message))

	if _, err := uc.acceptance.Recompute(fctx, problemID); err != nil {
		uc.aggregationFailure(log, "recompute acceptance", err)
	}
}

// aggregationFailure reports results that were judged but not fully saved.
func (uc *SubmitSolutionUsecase) aggregationFailure(log *zap.Logger, step string, err error) {
	metrics.AggregationFailures.Inc()
	log.Error("Judging results not persisted",
		zap.Bool("data_integrity", true),
		zap.String("step", step),
		zap.Error(err),
	)
}
