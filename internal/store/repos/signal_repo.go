package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository. Signals are
// append-only; positions are a keyed upsert table, one row per symbol.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// SaveSignals appends emitted signals. Signals are never updated.
func (r *SignalRepository) SaveSignals(ctx context.Context, signals []contracts.TradingSignal) error {
	query := `
		INSERT INTO results.signals (id, code, signal_type, trigger_price, position_fraction, confidence, reason, context, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	for _, s := range signals {
		sctx, err := json.Marshal(s.Context)
		if err != nil {
			return fmt.Errorf("marshal signal context %s: %w", s.ID, err)
		}
		_, err = r.pool.Exec(ctx, query,
			s.ID, s.Code, s.Type, s.TriggerPrice, s.PositionFraction,
			s.Confidence, s.Reason, sctx, s.CreatedAt, s.ExpiresAt)
		if err != nil {
			return fmt.Errorf("save signal %s: %w", s.ID, err)
		}
	}

	return nil
}

// ActiveSignals returns signals whose consideration window has not
// expired, newest first.
func (r *SignalRepository) ActiveSignals(ctx context.Context, now time.Time) ([]contracts.TradingSignal, error) {
	query := `
		SELECT id, code, signal_type, trigger_price, position_fraction, confidence, reason, context, created_at, expires_at
		FROM results.signals
		WHERE expires_at > $1
		ORDER BY created_at DESC`

	return r.querySignals(ctx, query, now)
}

// History returns signals created in [from, to], newest first.
func (r *SignalRepository) History(ctx context.Context, from, to time.Time) ([]contracts.TradingSignal, error) {
	query := `
		SELECT id, code, signal_type, trigger_price, position_fraction, confidence, reason, context, created_at, expires_at
		FROM results.signals
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC`

	return r.querySignals(ctx, query, from, to)
}

func (r *SignalRepository) querySignals(ctx context.Context, query string, args ...any) ([]contracts.TradingSignal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []contracts.TradingSignal
	for rows.Next() {
		var s contracts.TradingSignal
		var sctx []byte
		err := rows.Scan(&s.ID, &s.Code, &s.Type, &s.TriggerPrice, &s.PositionFraction,
			&s.Confidence, &s.Reason, &sctx, &s.CreatedAt, &s.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if len(sctx) > 0 {
			if err := json.Unmarshal(sctx, &s.Context); err != nil {
				return nil, fmt.Errorf("unmarshal signal context %s: %w", s.ID, err)
			}
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}

// Positions returns the current state-machine state per symbol.
func (r *SignalRepository) Positions(ctx context.Context) (map[string]*contracts.Position, error) {
	query := `
		SELECT code, state, tranches, entry_price, entry_date, high_water_mark, updated_at
		FROM results.positions`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]*contracts.Position)
	for rows.Next() {
		var p contracts.Position
		err := rows.Scan(&p.Code, &p.State, &p.Tranches, &p.EntryPrice,
			&p.EntryDate, &p.HighWaterMark, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions[p.Code] = &p
	}

	return positions, rows.Err()
}

// SavePositions upserts the given position states.
func (r *SignalRepository) SavePositions(ctx context.Context, positions map[string]*contracts.Position) error {
	query := `
		INSERT INTO results.positions (code, state, tranches, entry_price, entry_date, high_water_mark, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			state = EXCLUDED.state,
			tranches = EXCLUDED.tranches,
			entry_price = EXCLUDED.entry_price,
			entry_date = EXCLUDED.entry_date,
			high_water_mark = EXCLUDED.high_water_mark,
			updated_at = EXCLUDED.updated_at`

	for _, p := range positions {
		_, err := r.pool.Exec(ctx, query,
			p.Code, p.State, p.Tranches, p.EntryPrice, p.EntryDate, p.HighWaterMark, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save position %s: %w", p.Code, err)
		}
	}

	return nil
}
