// Package repos holds the result-table repositories. Each repository is
// the only writer of its tables; no stage writes another stage's tables.
package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// ScreeningRepository implements contracts.ScreeningRepository.
type ScreeningRepository struct {
	pool *pgxpool.Pool
}

// NewScreeningRepository creates a new screening repository.
func NewScreeningRepository(pool *pgxpool.Pool) *ScreeningRepository {
	return &ScreeningRepository{pool: pool}
}

// Save persists a screening result for its run date. Results are
// immutable; re-running a date replaces the whole row.
func (r *ScreeningRepository) Save(ctx context.Context, result *contracts.ScreeningResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal screening result: %w", err)
	}

	query := `
		INSERT INTO results.screening_runs (as_of, passed_count, rejected_count, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (as_of) DO UPDATE SET
			passed_count = EXCLUDED.passed_count,
			rejected_count = EXCLUDED.rejected_count,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`

	_, err = r.pool.Exec(ctx, query,
		result.AsOf, len(result.Passed), len(result.Rejected), payload, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("save screening result: %w", err)
	}

	return nil
}

// Latest returns the most recent screening result, or nil when none
// has been persisted yet.
func (r *ScreeningRepository) Latest(ctx context.Context) (*contracts.ScreeningResult, error) {
	query := `
		SELECT payload
		FROM results.screening_runs
		ORDER BY as_of DESC
		LIMIT 1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest screening result: %w", err)
	}

	var result contracts.ScreeningResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal screening result: %w", err)
	}

	return &result, nil
}
