package usecase

import (
	"context"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

// GetProgressUsecase reads a user's points, solved set and streak.
type GetProgressUsecase struct {
	users repository.UserRepository
}

// NewGetProgressUsecase creates a new GetProgressUsecase.
func NewGetProgressUsecase(users repository.UserRepository) *GetProgressUsecase {
	return &GetProgressUsecase{users: users}
}

func (uc *GetProgressUsecase) Execute(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return uc.users.GetProgress(ctx, userID)
}
