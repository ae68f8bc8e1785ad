// Package calendar exposes the exchange trading calendar as an
// injected service. The day set is loaded once at process start and
// refreshed on demand rather than queried per lookup.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

const dayKey = "2006-01-02"

// DayReader supplies trading dates for a window.
type DayReader interface {
	TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// Service answers trading-day queries from an in-memory day set.
type Service struct {
	reader DayReader
	log    *logger.Logger

	mu       sync.RWMutex
	days     map[string]struct{}
	ordered  []time.Time
	from, to time.Time
	loadedAt time.Time
}

// New creates a calendar service covering one year back and ninety
// days forward from now. Call Refresh before first use.
func New(reader DayReader, log *logger.Logger) *Service {
	return &Service{
		reader: reader,
		log:    log.WithField("component", "calendar"),
		days:   make(map[string]struct{}),
	}
}

// Refresh reloads the day set from storage. The window follows the
// current date, so periodic refresh keeps the forward horizon filled.
func (s *Service) Refresh(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(-1, 0, 0)
	to := now.AddDate(0, 0, 90)

	days, err := s.reader.TradingDays(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load trading calendar: %w", err)
	}

	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d.Format(dayKey)] = struct{}{}
	}

	s.mu.Lock()
	s.days = set
	s.ordered = days
	s.from = from
	s.to = to
	s.loadedAt = now
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"days": len(days),
		"from": from.Format(dayKey),
		"to":   to.Format(dayKey),
	}).Info("trading calendar loaded")

	return nil
}

// IsTradingDay reports whether date is a trading day. Dates outside
// the loaded window report false, so callers should keep the calendar
// refreshed.
func (s *Service) IsTradingDay(date time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.days[date.Format(dayKey)]
	return ok
}

// LastTradingDay returns the most recent trading day at or before
// date, or false when the loaded window holds none.
func (s *Service) LastTradingDay(date time.Time) (time.Time, bool) {
	key := date.Format(dayKey)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.ordered) - 1; i >= 0; i-- {
		if s.ordered[i].Format(dayKey) <= key {
			return s.ordered[i], true
		}
	}
	return time.Time{}, false
}

// NextTradingDay returns the first trading day strictly after date,
// or false when the loaded window holds none.
func (s *Service) NextTradingDay(date time.Time) (time.Time, bool) {
	key := date.Format(dayKey)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.ordered {
		if d.Format(dayKey) > key {
			return d, true
		}
	}
	return time.Time{}, false
}

// Loaded reports whether Refresh has succeeded at least once.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero()
}
