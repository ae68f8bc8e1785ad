package contracts

import (
	"context"
	"time"
)

// PriceBar is one daily bar from the local analytical store.
type PriceBar struct {
	Code   string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Fundamental is one reported filing row with the derived ratios the
// screening and scoring stages consume.
type Fundamental struct {
	Code          string
	ReportDate    time.Time
	Revenue       float64
	NetProfit     float64
	RevenueGrowth float64 // YoY
	ProfitGrowth  float64 // YoY
	ROE           float64
	GrossMargin   float64
	DebtRatio     float64
	PE            float64
	PB            float64
}

// MetadataReader issues the lightweight metadata/aggregate queries the
// readiness gate relies on. Implementations must never scan full tables.
type MetadataReader interface {
	TableExists(ctx context.Context, table string) (bool, error)
	DateRange(ctx context.Context, table, dateColumn string) (min, max *time.Time, err error)
	RowCount(ctx context.Context, table string) (int64, error)
}

// PriceReader reads price history from the local store.
type PriceReader interface {
	// History returns up to limit most-recent bars for a code, newest first.
	History(ctx context.Context, code string, limit int) ([]PriceBar, error)
	// CloseSeries returns the closing-price series for all symbols with at
	// least minBars bars, newest first per symbol.
	CloseSeries(ctx context.Context, asOf time.Time, minBars int) (map[string][]float64, error)
	// Universe returns all active symbol codes.
	Universe(ctx context.Context) ([]string, error)
}

// FundamentalReader reads filings from the local store.
type FundamentalReader interface {
	// Latest returns the most recent filing per code for the given codes.
	Latest(ctx context.Context, codes []string) (map[string]Fundamental, error)
	// FilingHistory returns up to limit filings for one code, newest first.
	FilingHistory(ctx context.Context, code string, limit int) ([]Fundamental, error)
}

// ScreeningRepository persists and retrieves screening results.
type ScreeningRepository interface {
	Save(ctx context.Context, result *ScreeningResult) error
	Latest(ctx context.Context) (*ScreeningResult, error)
}

// RankRepository persists and retrieves RPS rank rows.
type RankRepository interface {
	Save(ctx context.Context, asOf time.Time, rows []SymbolRankRow) error
	Latest(ctx context.Context) ([]SymbolRankRow, error)
}

// PoolRepository persists pool snapshots and serves the change log.
type PoolRepository interface {
	Save(ctx context.Context, result *CorePoolResult) error
	Latest(ctx context.Context) (*CorePoolResult, error)
	Changes(ctx context.Context, since time.Time) ([]PoolChange, error)
}

// SignalRepository persists trading signals and position state.
type SignalRepository interface {
	SaveSignals(ctx context.Context, signals []TradingSignal) error
	ActiveSignals(ctx context.Context, now time.Time) ([]TradingSignal, error)
	History(ctx context.Context, from, to time.Time) ([]TradingSignal, error)
	Positions(ctx context.Context) (map[string]*Position, error)
	SavePositions(ctx context.Context, positions map[string]*Position) error
}

// RunRepository persists pipeline runs for the status-polling contract.
type RunRepository interface {
	Create(ctx context.Context, run *PipelineRun) error
	Update(ctx context.Context, run *PipelineRun) error
	Get(ctx context.Context, id string) (*PipelineRun, error)
}
