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

// PoolRepository implements contracts.PoolRepository. Snapshots are
// stored whole; the change log additionally gets its own rows so the
// changes endpoint can filter by date without unpacking snapshots.
type PoolRepository struct {
	pool *pgxpool.Pool
}

// NewPoolRepository creates a new pool repository.
func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{pool: pool}
}

// Save persists a pool snapshot and appends its change-log entries in
// one transaction.
func (r *PoolRepository) Save(ctx context.Context, result *contracts.CorePoolResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal pool snapshot: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pool save: %w", err)
	}
	defer tx.Rollback(ctx)

	snapQuery := `
		INSERT INTO results.pool_snapshots (as_of, core_count, supplement_count, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (as_of) DO UPDATE SET
			core_count = EXCLUDED.core_count,
			supplement_count = EXCLUDED.supplement_count,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`

	_, err = tx.Exec(ctx, snapQuery,
		result.AsOf, len(result.Core), len(result.Supplement), payload, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("save pool snapshot: %w", err)
	}

	// Same-date re-runs replace their own change rows.
	if _, err := tx.Exec(ctx, `DELETE FROM results.pool_changes WHERE date = $1`, result.AsOf); err != nil {
		return fmt.Errorf("clear pool changes: %w", err)
	}

	changeQuery := `
		INSERT INTO results.pool_changes (date, code, change_type, tier, prev_rank, new_rank, prev_score, new_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, c := range result.Changes {
		_, err := tx.Exec(ctx, changeQuery,
			c.Date, c.Code, c.Type, c.Tier, c.PrevRank, c.NewRank, c.PrevScore, c.NewScore)
		if err != nil {
			return fmt.Errorf("save pool change %s/%s: %w", c.Code, c.Type, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pool save: %w", err)
	}

	return nil
}

// Latest returns the most recent pool snapshot, or nil when none exists.
func (r *PoolRepository) Latest(ctx context.Context) (*contracts.CorePoolResult, error) {
	query := `
		SELECT payload
		FROM results.pool_snapshots
		ORDER BY as_of DESC
		LIMIT 1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest pool snapshot: %w", err)
	}

	var result contracts.CorePoolResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal pool snapshot: %w", err)
	}

	return &result, nil
}

// Changes returns change-log entries on or after since, newest first.
func (r *PoolRepository) Changes(ctx context.Context, since time.Time) ([]contracts.PoolChange, error) {
	query := `
		SELECT date, code, change_type, tier, prev_rank, new_rank, prev_score, new_score
		FROM results.pool_changes
		WHERE date >= $1
		ORDER BY date DESC, code`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query pool changes: %w", err)
	}
	defer rows.Close()

	var changes []contracts.PoolChange
	for rows.Next() {
		var c contracts.PoolChange
		err := rows.Scan(&c.Date, &c.Code, &c.Type, &c.Tier,
			&c.PrevRank, &c.NewRank, &c.PrevScore, &c.NewScore)
		if err != nil {
			return nil, fmt.Errorf("scan pool change: %w", err)
		}
		changes = append(changes, c)
	}

	return changes, rows.Err()
}
