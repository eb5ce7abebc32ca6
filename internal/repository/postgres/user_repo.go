package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

var _ repository.UserRepository = (*pgUserRepo)(nil)

type pgUserRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a user progress repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &pgUserRepo{pool: pool}
}

func (r *pgUserRepo) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p := &domain.UserProgress{
		UserID:         userID,
		ProblemsSolved: make(map[string]domain.SolvedProblem),
	}
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT points, total_problems_solved, streak_current, streak_longest, streak_last_updated
		FROM users WHERE id = $1`, userID,
	).Scan(&p.Points, &p.TotalProblemsSolved, &p.Streaks.Current, &p.Streaks.Longest, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get progress: %w", err)
	}
	if last != nil {
		p.Streaks.LastUpdated = last.UTC()
	}

	rows, err := r.pool.Query(ctx, `
		SELECT problem_id, language, solved_at, points_earned
		FROM solved_problems WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get solved problems: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp domain.SolvedProblem
		if err := rows.Scan(&sp.ProblemID, &sp.Language, &sp.SolvedAt, &sp.PointsEarned); err != nil {
			return nil, fmt.Errorf("postgres: scan solved problem: %w", err)
		}
		p.ProblemsSolved[sp.ProblemID] = sp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate solved problems: %w", err)
	}
	return p, nil
}

func (r *pgUserRepo) ApplyFirstSolve(ctx context.Context, userID string, solved domain.SolvedProblem, update repository.StreakFunc) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin first solve: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := lockStreak(ctx, tx, userID)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO solved_problems (user_id, problem_id, language, solved_at, points_earned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, problem_id) DO NOTHING`,
		userID, solved.ProblemID, solved.Language, solved.SolvedAt.UTC(), solved.PointsEarned,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert solved problem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	next := update(current)
	_, err = tx.Exec(ctx, `
		UPDATE users
		SET points = points + $1,
		    total_problems_solved = total_problems_solved + 1,
		    streak_current = $2, streak_longest = $3, streak_last_updated = $4,
		    updated_at = now()
		WHERE id = $5`,
		solved.PointsEarned, next.Current, next.Longest, next.LastUpdated, userID,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: award points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit first solve: %w", err)
	}
	return true, nil
}

func (r *pgUserRepo) TouchStreak(ctx context.Context, userID string, update repository.StreakFunc) (domain.Streak, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Streak{}, fmt.Errorf("postgres: begin touch streak: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := lockStreak(ctx, tx, userID)
	if err != nil {
		return domain.Streak{}, err
	}

	next := update(current)
	_, err = tx.Exec(ctx, `
		UPDATE users
		SET streak_current = $1, streak_longest = $2, streak_last_updated = $3, updated_at = now()
		WHERE id = $4`,
		next.Current, next.Longest, next.LastUpdated, userID,
	)
	if err != nil {
		return domain.Streak{}, fmt.Errorf("postgres: update streak: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Streak{}, fmt.Errorf("postgres: commit touch streak: %w", err)
	}
	return next, nil
}

// lockStreak reads the user's streak and holds the row until tx ends.
func lockStreak(ctx context.Context, tx pgx.Tx, userID string) (domain.Streak, error) {
	var s domain.Streak
	var last *time.Time
	err := tx.QueryRow(ctx, `
		SELECT streak_current, streak_longest, streak_last_updated
		FROM users WHERE id = $1
		FOR UPDATE`, userID,
	).Scan(&s.Current, &s.Longest, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Streak{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Streak{}, fmt.Errorf("postgres: lock user: %w", err)
	}
	if last != nil {
		s.LastUpdated = last.UTC()
	}
	return s, nil
}
