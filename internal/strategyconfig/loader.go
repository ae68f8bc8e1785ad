package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pool"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/scoring"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/signals"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// Manager holds the active strategy and serves it to the pipeline.
// Reads are concurrent; updates swap the whole config after validation.
type Manager struct {
	mu   sync.RWMutex
	cfg  *Config
	hash string
	log  *logger.Logger
}

// Load reads the strategy file and returns a manager around it. A
// missing file falls back to the built-in defaults; a malformed or
// invalid file is an error.
func Load(path string, log *logger.Logger) (*Manager, error) {
	m := &Manager{log: log.WithField("component", "strategy")}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.WithField("path", path).Warn("strategy file not found, using defaults")
			cfg := Default()
			m.cfg = cfg
			m.hash = hashConfig(cfg)
			return m, nil
		}
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("strategy file %s: %w", path, err)
	}

	m.cfg = cfg
	m.hash = hashConfig(cfg)
	m.log.WithField("hash", m.hash[:12]).Info("strategy loaded")
	return m, nil
}

// Parse decodes and validates a strategy document. Decoding is strict:
// unknown keys fail rather than silently vanish.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Update validates and swaps in a new configuration.
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.hash = hashConfig(cfg)
	m.mu.Unlock()
	m.log.WithField("hash", m.hash[:12]).Info("strategy updated")
	return nil
}

// Current returns the active configuration.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Rules returns the configured screening rules.
func (m *Manager) Rules() []contracts.ScreeningRule {
	return m.Current().Screening.Rules
}

// RPSPeriods returns the configured ranking windows.
func (m *Manager) RPSPeriods() []int {
	return m.Current().Ranking.Periods
}

// Weights returns the configured factor weights.
func (m *Manager) Weights() contracts.FactorWeights {
	return m.Current().Scoring.Weights
}

// MomentumAgg returns the configured momentum aggregation.
func (m *Manager) MomentumAgg() scoring.MomentumAgg {
	return scoring.MomentumAgg(m.Current().Scoring.MomentumAgg)
}

// PoolOptions maps the pool section onto builder options.
func (m *Manager) PoolOptions() pool.Options {
	p := m.Current().Pool
	return pool.Options{
		CoreSize:        p.CoreSize,
		SupplementSize:  p.SupplementSize,
		SupplementRPS:   p.SupplementRPS,
		SupplementROE:   p.SupplementROE,
		RankChangeDelta: p.RankChangeDelta,
	}
}

// SignalOptions maps the signals section onto generator options.
func (m *Manager) SignalOptions() signals.Options {
	s := m.Current().Signals
	return signals.Options{
		ShortMA:         s.ShortMA,
		LongMA:          s.LongMA,
		TrendMA:         s.TrendMA,
		MaxTranches:     s.MaxTranches,
		TrancheFraction: s.TrancheFraction,
		AddStepPct:      s.AddStepPct,
		StopLossPct:     s.StopLossPct,
		TrailingPct:     s.TrailingPct,
		WeakRPSFloor:    s.WeakRPSFloor,
		SignalTTL:       time.Duration(s.SignalTTLHours) * time.Hour,
	}
}

// Hash returns the SHA-256 of the canonical serialized configuration.
// Runs record it so results always point at the exact strategy that
// produced them.
func (m *Manager) Hash() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hash
}

func hashConfig(cfg *Config) string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
