package usecase

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/repository"
)

// AcceptanceAggregator recounts a problem's acceptance rate from scratch.
type AcceptanceAggregator struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	logger      *zap.Logger
}

// NewAcceptanceAggregator creates a new AcceptanceAggregator.
func NewAcceptanceAggregator(subs repository.SubmissionRepository, problems repository.ProblemRepository, logger *zap.Logger) *AcceptanceAggregator {
	return &AcceptanceAggregator{submissions: subs, problems: problems, logger: logger}
}

// Percentage is round(100*accepted/judged), or 0 with no judged submissions.
func Percentage(accepted, judged int) int {
	if judged <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(accepted) / float64(judged)))
}

// Recompute stores and returns the problem's current acceptance percentage.
func (a *AcceptanceAggregator) Recompute(ctx context.Context, problemID string) (int, error) {
	accepted, judged, err := a.submissions.CountForProblem(ctx, problemID)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	pct := Percentage(accepted, judged)
	if err := a.problems.UpdateAcceptance(ctx, problemID, pct); err != nil {
		return 0, fmt.Errorf("update acceptance: %w", err)
	}
	a.logger.Debug("Acceptance recomputed",
		zap.String("problem_id", problemID),
		zap.Int("accepted", accepted),
		zap.Int("judged", judged),
		zap.Int("acceptance", pct),
	)
	return pct, nil
}
