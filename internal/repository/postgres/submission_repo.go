package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

// Ensure pgSubmissionRepo implements repository.SubmissionRepository.
var _ repository.SubmissionRepository = (*pgSubmissionRepo)(nil)

const pgForeignKeyViolation = "23503"

type pgSubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionRepository creates a new PostgreSQL-backed submission repository.
func NewPostgresSubmissionRepository(pool *pgxpool.Pool) repository.SubmissionRepository {
	return &pgSubmissionRepo{pool: pool}
}

func (r *pgSubmissionRepo) Create(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO submissions (id, user_id, problem_id, code, language, status, test_cases_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Code, sub.Language,
		sub.Status, sub.TestCasesTotal, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("postgres: create submission: %w", domain.ErrUserNotFound)
		}
		return fmt.Errorf("postgres: create submission: %w", err)
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (r *pgSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, user_id, problem_id, code, language, status, runtime, memory,
		       test_cases_passed, test_cases_total, points_earned, error_message,
		       created_at, updated_at
		FROM submissions
		WHERE id = $1`

	sub := &domain.Submission{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Code, &sub.Language, &sub.Status,
		&sub.Runtime, &sub.Memory, &sub.TestCasesPassed, &sub.TestCasesTotal,
		&sub.PointsEarned, &sub.ErrorMessage, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get submission by id: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepo) Complete(ctx context.Context, sub *domain.Submission) error {
	query := `
		UPDATE submissions
		SET status = $1, runtime = $2, memory = $3, test_cases_passed = $4,
		    points_earned = $5, error_message = $6, updated_at = $7
		WHERE id = $8 AND status = 'pending'`

	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, query,
		sub.Status, sub.Runtime, sub.Memory, sub.TestCasesPassed,
		sub.PointsEarned, sub.ErrorMessage, now, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrCompleted(ctx, sub.ID)
	}
	sub.UpdatedAt = now
	return nil
}

func (r *pgSubmissionRepo) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE submissions
		SET status = 'error', error_message = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: mark submission error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrCompleted(ctx, id)
	}
	return nil
}

func (r *pgSubmissionRepo) HasAccepted(ctx context.Context, userID, problemID string, exclude uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE user_id = $1 AND problem_id = $2 AND status = 'accepted' AND id <> $3
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, problemID, exclude).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: has accepted: %w", err)
	}
	return exists, nil
}

func (r *pgSubmissionRepo) CountForProblem(ctx context.Context, problemID string) (int, int, error) {
	var accepted, judged int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE problem_id = $1 AND status = 'accepted'`,
		problemID,
	).Scan(&accepted)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: count accepted: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE problem_id = $1 AND status <> 'pending'`,
		problemID,
	).Scan(&judged)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: count judged: %w", err)
	}
	return accepted, judged, nil
}

func (r *pgSubmissionRepo) missingOrCompleted(ctx context.Context, id uuid.UUID) error {
	var status domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSubmissionNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lookup submission status: %w", err)
	}
	return domain.ErrAlreadyCompleted
}
