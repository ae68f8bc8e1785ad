// Package store is the read side of the local analytical store. All
// pipeline stages read through it; result tables are written only by
// the repositories in store/repos.
package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source tables populated by the external sync connectors. The core
// never writes these.
const (
	TableStocks       = "data.stocks"
	TableDailyPrices  = "data.daily_prices"
	TableFundamentals = "data.fundamentals"
	TableIndexDaily   = "data.index_daily"
	TableCalendar     = "data.trade_calendar"
)

// identPattern guards table/column names interpolated into metadata
// queries. Requirements are declared in code, this is a tripwire for
// programming mistakes, not an input sanitizer.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// Store issues read-only queries against the analytical store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// TableExists probes table existence without touching table data.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}

	var reg *string
	err := s.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&reg)
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}

	return reg != nil, nil
}

// DateRange returns the min/max of the date column. Both are nil when
// the table is empty.
func (s *Store) DateRange(ctx context.Context, table, dateColumn string) (*time.Time, *time.Time, error) {
	if err := checkIdent(table); err != nil {
		return nil, nil, err
	}
	if err := checkIdent(dateColumn); err != nil {
		return nil, nil, err
	}

	query := fmt.Sprintf(`SELECT MIN(%s), MAX(%s) FROM %s`, dateColumn, dateColumn, table)

	var min, max *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&min, &max); err != nil {
		return nil, nil, fmt.Errorf("date range of %s: %w", table, err)
	}

	return min, max, nil
}

// RowCount returns the row count of a table.
func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)

	var count int64
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("row count of %s: %w", table, err)
	}

	return count, nil
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
