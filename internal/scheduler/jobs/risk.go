package jobs

import (
	"context"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/signals"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/redis"
)

// RiskRefreshJob recomputes the market risk snapshot during trading
// hours and caches it for the dashboard read path.
type RiskRefreshJob struct {
	monitor *signals.RiskMonitor
	cache   *redis.Cache
	log     *logger.Logger
}

// NewRiskRefreshJob creates the risk refresh job. cache may be nil.
func NewRiskRefreshJob(monitor *signals.RiskMonitor, cache *redis.Cache, log *logger.Logger) *RiskRefreshJob {
	return &RiskRefreshJob{monitor: monitor, cache: cache, log: log.WithField("job", "risk_refresh")}
}

// Name implements scheduler.Job.
func (j *RiskRefreshJob) Name() string { return "risk_refresh" }

// Schedule runs every 15 minutes during the trading session.
func (j *RiskRefreshJob) Schedule() string { return "0 */15 9-15 * * MON-FRI" }

// Run implements scheduler.Job.
func (j *RiskRefreshJob) Run(ctx context.Context) error {
	snap, err := j.monitor.Snapshot(ctx)
	if err != nil {
		return err
	}

	if j.cache != nil {
		if err := j.cache.Set(ctx, redis.RiskKey(), snap, redis.TTLShort); err != nil {
			j.log.WithError(err).Warn("cache risk snapshot")
		}
	}

	return nil
}
