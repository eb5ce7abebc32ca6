package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

// GetSubmissionUsecase reads back a user's own submission.
type GetSubmissionUsecase struct {
	repo   repository.SubmissionRepository
	logger *zap.Logger
}

// NewGetSubmissionUsecase creates a new GetSubmissionUsecase.
func NewGetSubmissionUsecase(repo repository.SubmissionRepository, logger *zap.Logger) *GetSubmissionUsecase {
	return &GetSubmissionUsecase{repo: repo, logger: logger}
}

// Execute returns the submission if it belongs to userID. Other users' submissions
// are reported as not found.
func (uc *GetSubmissionUsecase) Execute(ctx context.Context, userID string, id uuid.UUID) (*domain.Submission, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		uc.logger.Debug("Submission requested by non-owner",
			zap.String("submission_id", id.String()),
			zap.String("user_id", userID),
		)
		return nil, domain.ErrSubmissionNotFound
	}
	return sub, nil
}
