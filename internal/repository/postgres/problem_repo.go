package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/repository"
)

var _ repository.ProblemRepository = (*pgProblemRepo)(nil)

type pgProblemRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresProblemRepository creates a read-mostly problem repository.
func NewPostgresProblemRepository(pool *pgxpool.Pool) repository.ProblemRepository {
	return &pgProblemRepo{pool: pool}
}

func (r *pgProblemRepo) GetByID(ctx context.Context, id string) (*domain.Problem, error) {
	p := &domain.Problem{Code: make(map[domain.Language]domain.CodeFragments)}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, difficulty, acceptance FROM problems WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Difficulty, &p.Acceptance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get problem: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT language, starter_code, header_code, driver_code FROM problem_code WHERE problem_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get problem code: %w", err)
	}
	for rows.Next() {
		var lang domain.Language
		var frag domain.CodeFragments
		if err := rows.Scan(&lang, &frag.Starter, &frag.Header, &frag.Driver); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan problem code: %w", err)
		}
		p.Code[lang] = frag
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate problem code: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT input, expected_output, hidden
		FROM problem_test_cases
		WHERE problem_id = $1
		ORDER BY hidden, position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get test cases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc domain.TestCase
		var hidden bool
		if err := rows.Scan(&tc.Input, &tc.Output, &hidden); err != nil {
			return nil, fmt.Errorf("postgres: scan test case: %w", err)
		}
		if hidden {
			p.HiddenTests = append(p.HiddenTests, tc)
		} else {
			p.VisibleTests = append(p.VisibleTests, tc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate test cases: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepo) UpdateAcceptance(ctx context.Context, id string, percentage int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE problems SET acceptance = $1 WHERE id = $2`, percentage, id)
	if err != nil {
		return fmt.Errorf("postgres: update acceptance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProblemNotFound
	}
	return nil
}
