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

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("pipeline run not found")

// RunRepository implements contracts.RunRepository. Runs survive
// process restarts so the status-polling contract holds across crashes.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Create inserts a new run in its initial state.
func (r *RunRepository) Create(ctx context.Context, run *contracts.PipelineRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("marshal run stages: %w", err)
	}

	query := `
		INSERT INTO results.pipeline_runs (id, scope, config_hash, status, stages, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		run.ID, run.Scope, run.ConfigHash, run.Status, stages, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("create pipeline run: %w", err)
	}

	return nil
}

// Update rewrites the run's mutable fields. Terminal transitions are
// the orchestrator's responsibility; the repository stores what it is
// given.
func (r *RunRepository) Update(ctx context.Context, run *contracts.PipelineRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("marshal run stages: %w", err)
	}

	query := `
		UPDATE results.pipeline_runs
		SET status = $2, stages = $3, finished_at = $4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, run.ID, run.Status, stages, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	return nil
}

// Get fetches one run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*contracts.PipelineRun, error) {
	query := `
		SELECT id, scope, config_hash, status, stages, started_at, finished_at
		FROM results.pipeline_runs
		WHERE id = $1`

	var run contracts.PipelineRun
	var stages []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Scope, &run.ConfigHash, &run.Status, &stages, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("query pipeline run: %w", err)
	}

	if err := json.Unmarshal(stages, &run.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal run stages: %w", err)
	}

	return &run, nil
}
