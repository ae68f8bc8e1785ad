package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// RankRepository implements contracts.RankRepository.
type RankRepository struct {
	pool *pgxpool.Pool
}

// NewRankRepository creates a new rank repository.
func NewRankRepository(pool *pgxpool.Pool) *RankRepository {
	return &RankRepository{pool: pool}
}

// Save persists the full rank table for a date in one row. Re-ranking a
// date replaces the previous table.
func (r *RankRepository) Save(ctx context.Context, asOf time.Time, rows []contracts.SymbolRankRow) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rank rows: %w", err)
	}

	query := `
		INSERT INTO results.rps_ranks (as_of, symbol_count, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (as_of) DO UPDATE SET
			symbol_count = EXCLUDED.symbol_count,
			payload = EXCLUDED.payload,
			created_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, asOf, len(rows), payload); err != nil {
		return fmt.Errorf("save rank rows: %w", err)
	}

	return nil
}

// Latest returns the most recent rank table, or nil when none exists.
func (r *RankRepository) Latest(ctx context.Context) ([]contracts.SymbolRankRow, error) {
	query := `
		SELECT payload
		FROM results.rps_ranks
		ORDER BY as_of DESC
		LIMIT 1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest rank rows: %w", err)
	}

	var rows []contracts.SymbolRankRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal rank rows: %w", err)
	}

	return rows, nil
}
