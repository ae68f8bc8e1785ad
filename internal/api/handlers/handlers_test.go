package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/strategyconfig"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

type fakeSignalRepo struct {
	active  []contracts.TradingSignal
	history []contracts.TradingSignal

	gotFrom time.Time
	gotTo   time.Time
}

func (r *fakeSignalRepo) SaveSignals(ctx context.Context, signals []contracts.TradingSignal) error {
	return nil
}

func (r *fakeSignalRepo) ActiveSignals(ctx context.Context, now time.Time) ([]contracts.TradingSignal, error) {
	return r.active, nil
}

func (r *fakeSignalRepo) History(ctx context.Context, from, to time.Time) ([]contracts.TradingSignal, error) {
	r.gotFrom, r.gotTo = from, to
	return r.history, nil
}

func (r *fakeSignalRepo) Positions(ctx context.Context) (map[string]*contracts.Position, error) {
	return nil, nil
}

func (r *fakeSignalRepo) SavePositions(ctx context.Context, positions map[string]*contracts.Position) error {
	return nil
}

func defaultManager(t *testing.T) *strategyconfig.Manager {
	t.Helper()
	m, err := strategyconfig.Load("does-not-exist.yaml", logger.NewNop())
	require.NoError(t, err)
	return m
}

func TestSignalHandlerGetActive(t *testing.T) {
	repo := &fakeSignalRepo{active: []contracts.TradingSignal{
		{ID: "a", Code: "600000", Type: contracts.SignalEntry},
	}}
	h := NewSignalHandler(repo, nil, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetActive(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Signals []contracts.TradingSignal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Signals, 1)
	assert.Equal(t, "600000", body.Signals[0].Code)
}

func TestSignalHandlerHistoryRange(t *testing.T) {
	repo := &fakeSignalRepo{}
	h := NewSignalHandler(repo, nil, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet,
		"/api/signals/history?from=2026-01-01&to=2026-01-31", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), repo.gotFrom)
	// to is exclusive: the requested end date is included in full.
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), repo.gotTo)
}

func TestSignalHandlerHistoryBadDate(t *testing.T) {
	h := NewSignalHandler(&fakeSignalRepo{}, nil, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet,
		"/api/signals/history?from=January", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalHandlerHistoryDefaultWindow(t *testing.T) {
	repo := &fakeSignalRepo{}
	h := NewSignalHandler(repo, nil, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/signals/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 30*24, repo.gotTo.Sub(repo.gotFrom).Hours(), 1)
}

func TestConfigHandlerGet(t *testing.T) {
	h := NewConfigHandler(defaultManager(t), logger.NewNop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Hash string `json:"hash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Hash, 64)
}

func TestConfigHandlerUpdate(t *testing.T) {
	m := defaultManager(t)
	h := NewConfigHandler(m, logger.NewNop())
	before := m.Hash()

	cfg := *m.Current()
	cfg.Pool.CoreSize = 40
	payload, err := json.Marshal(&cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, m.Current().Pool.CoreSize)
	assert.NotEqual(t, before, m.Hash())
}

func TestConfigHandlerUpdateRejectsInvalid(t *testing.T) {
	m := defaultManager(t)
	h := NewConfigHandler(m, logger.NewNop())
	before := m.Hash()

	cfg := *m.Current()
	cfg.Scoring.Weights.Quality = 0.9 // weights no longer sum to 1

	payload, err := json.Marshal(&cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, before, m.Hash())
}

func TestConfigHandlerUpdateRejectsGarbage(t *testing.T) {
	h := NewConfigHandler(defaultManager(t), logger.NewNop())

	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader([]byte("not json"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
