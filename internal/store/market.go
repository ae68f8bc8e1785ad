package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// Universe returns all active symbol codes.
func (s *Store) Universe(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM data.stocks WHERE status = 'active' ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan universe row: %w", err)
		}
		codes = append(codes, code)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate universe rows: %w", rows.Err())
	}

	return codes, nil
}

// History returns up to limit most-recent bars for one symbol, newest
// first.
func (s *Store) History(ctx context.Context, code string, limit int) ([]contracts.PriceBar, error) {
	query := `
		SELECT code, trade_date, open, high, low, close, volume
		FROM data.daily_prices
		WHERE code = $1
		ORDER BY trade_date DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query price history for %s: %w", code, err)
	}
	defer rows.Close()

	bars := make([]contracts.PriceBar, 0, limit)
	for rows.Next() {
		var bar contracts.PriceBar
		err := rows.Scan(&bar.Code, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		bars = append(bars, bar)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate price bars: %w", rows.Err())
	}

	return bars, nil
}

// IndexHistory returns up to limit most-recent bars of a benchmark
// index, newest first.
func (s *Store) IndexHistory(ctx context.Context, code string, limit int) ([]contracts.PriceBar, error) {
	query := `
		SELECT code, trade_date, close
		FROM data.index_daily
		WHERE code = $1
		ORDER BY trade_date DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query index history for %s: %w", code, err)
	}
	defer rows.Close()

	bars := make([]contracts.PriceBar, 0, limit)
	for rows.Next() {
		var bar contracts.PriceBar
		if err := rows.Scan(&bar.Code, &bar.Date, &bar.Close); err != nil {
			return nil, fmt.Errorf("scan index bar: %w", err)
		}
		bars = append(bars, bar)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate index bars: %w", rows.Err())
	}

	return bars, nil
}

// CloseSeries returns the closing-price series for every symbol with at
// least minBars bars as of the given date, newest first per symbol.
func (s *Store) CloseSeries(ctx context.Context, asOf time.Time, minBars int) (map[string][]float64, error) {
	// Window-limited so the read stays bounded by minBars per symbol.
	query := `
		SELECT code, close FROM (
			SELECT code, close, trade_date,
			       ROW_NUMBER() OVER (PARTITION BY code ORDER BY trade_date DESC) AS rn
			FROM data.daily_prices
			WHERE trade_date <= $1
		) t
		WHERE rn <= $2
		ORDER BY code, trade_date DESC`

	rows, err := s.pool.Query(ctx, query, asOf, minBars)
	if err != nil {
		return nil, fmt.Errorf("query close series: %w", err)
	}
	defer rows.Close()

	series := make(map[string][]float64)
	for rows.Next() {
		var code string
		var close float64
		if err := rows.Scan(&code, &close); err != nil {
			return nil, fmt.Errorf("scan close series row: %w", err)
		}
		series[code] = append(series[code], close)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate close series: %w", rows.Err())
	}

	return series, nil
}

// TradingDays returns the trading dates in [from, to], ascending.
func (s *Store) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT trade_date
		FROM data.trade_calendar
		WHERE trade_date BETWEEN $1 AND $2 AND is_trading_day
		ORDER BY trade_date`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query trading days: %w", err)
	}
	defer rows.Close()

	days := make([]time.Time, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan trading day: %w", err)
		}
		days = append(days, day)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate trading days: %w", rows.Err())
	}

	return days, nil
}

// Latest returns the most recent filing per code for the given codes.
func (s *Store) Latest(ctx context.Context, codes []string) (map[string]contracts.Fundamental, error) {
	query := `
		SELECT DISTINCT ON (code)
			code, report_date, revenue, net_profit, revenue_growth,
			profit_growth, roe, gross_margin, debt_ratio, pe, pb
		FROM data.fundamentals
		WHERE code = ANY($1)
		ORDER BY code, report_date DESC`

	rows, err := s.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("query latest fundamentals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]contracts.Fundamental, len(codes))
	for rows.Next() {
		var f contracts.Fundamental
		err := rows.Scan(&f.Code, &f.ReportDate, &f.Revenue, &f.NetProfit,
			&f.RevenueGrowth, &f.ProfitGrowth, &f.ROE, &f.GrossMargin,
			&f.DebtRatio, &f.PE, &f.PB)
		if err != nil {
			return nil, fmt.Errorf("scan fundamental: %w", err)
		}
		out[f.Code] = f
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate fundamentals: %w", rows.Err())
	}

	return out, nil
}

// FilingHistory returns up to limit filings for one code, newest first.
func (s *Store) FilingHistory(ctx context.Context, code string, limit int) ([]contracts.Fundamental, error) {
	query := `
		SELECT code, report_date, revenue, net_profit, revenue_growth,
		       profit_growth, roe, gross_margin, debt_ratio, pe, pb
		FROM data.fundamentals
		WHERE code = $1
		ORDER BY report_date DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query filing history for %s: %w", code, err)
	}
	defer rows.Close()

	filings := make([]contracts.Fundamental, 0, limit)
	for rows.Next() {
		var f contracts.Fundamental
		err := rows.Scan(&f.Code, &f.ReportDate, &f.Revenue, &f.NetProfit,
			&f.RevenueGrowth, &f.ProfitGrowth, &f.ROE, &f.GrossMargin,
			&f.DebtRatio, &f.PE, &f.PB)
		if err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		filings = append(filings, f)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate filings: %w", rows.Err())
	}

	return filings, nil
}
