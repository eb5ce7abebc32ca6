package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/arena-oj/arena/internal/domain"
)

// SubmissionRepository defines persistence for scored submissions.
// Implementations must be safe for concurrent use.
type SubmissionRepository interface {
	// Create inserts a new pending submission.
	Create(ctx context.Context, sub *domain.Submission) error

	// GetByID retrieves a submission by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// Complete stores the final status and metrics. It only succeeds while the
	// row is still pending; otherwise it returns domain.ErrAlreadyCompleted.
	Complete(ctx context.Context, sub *domain.Submission) error

	// MarkError forces a pending submission to the error status.
	MarkError(ctx context.Context, id uuid.UUID, message string) error

	// HasAccepted reports whether the user has an accepted submission for the
	// problem other than exclude.
	HasAccepted(ctx context.Context, userID, problemID string, exclude uuid.UUID) (bool, error)

	// CountForProblem returns the accepted and non-pending submission counts.
	CountForProblem(ctx context.Context, problemID string) (accepted, judged int, err error)
}

// ProblemRepository exposes the parts of problem storage the judge consumes.
type ProblemRepository interface {
	// GetByID loads a problem with its code fragments and test cases.
	GetByID(ctx context.Context, id string) (*domain.Problem, error)

	// UpdateAcceptance stores the recomputed acceptance percentage.
	UpdateAcceptance(ctx context.Context, id string, percentage int) error
}

// StreakFunc computes a new streak from the stored one.
type StreakFunc func(domain.Streak) domain.Streak

// UserRepository reads and mutates user progress.
type UserRepository interface {
	// GetProgress loads a user's points, solved set and streak.
	GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error)

	// ApplyFirstSolve atomically inserts the solved entry keyed by
	// (user, problem). Only the caller that wins the insert gets awarded=true,
	// in which case points, solved count and streak are updated in the same
	// transaction.
	ApplyFirstSolve(ctx context.Context, userID string, solved domain.SolvedProblem, update StreakFunc) (awarded bool, err error)

	// TouchStreak applies update to the stored streak under a row lock.
	TouchStreak(ctx context.Context, userID string, update StreakFunc) (domain.Streak, error)
}
