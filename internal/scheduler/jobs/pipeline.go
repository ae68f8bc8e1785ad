// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/calendar"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pipeline"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// DailyPipelineJob runs the full selection pipeline after the data
// sync window on trading days. A gated (data_missing) run is a normal
// outcome, not a job failure: retrying will not conjure the data.
type DailyPipelineJob struct {
	orch *pipeline.Orchestrator
	cal  *calendar.Service
	log  *logger.Logger
}

// NewDailyPipelineJob creates the daily pipeline job. cal may be nil,
// in which case the weekday cron schedule is the only day filter.
func NewDailyPipelineJob(orch *pipeline.Orchestrator, cal *calendar.Service, log *logger.Logger) *DailyPipelineJob {
	return &DailyPipelineJob{orch: orch, cal: cal, log: log.WithField("job", "daily_pipeline")}
}

// Name implements scheduler.Job.
func (j *DailyPipelineJob) Name() string { return "daily_pipeline" }

// Schedule runs at 17:30 on weekdays, after the sync connectors have
// had their window.
func (j *DailyPipelineJob) Schedule() string { return "0 30 17 * * MON-FRI" }

// Run implements scheduler.Job.
func (j *DailyPipelineJob) Run(ctx context.Context) error {
	if j.cal != nil && j.cal.Loaded() && !j.cal.IsTradingDay(time.Now().UTC()) {
		j.log.Info("skipping non-trading day")
		return nil
	}

	run, err := j.orch.Run(ctx, "full")
	if err != nil {
		return err
	}

	switch run.Status {
	case contracts.RunCompleted:
		return nil
	case contracts.RunDataMissing:
		j.log.WithField("run_id", run.ID).Warn("daily run gated on missing data")
		return nil
	default:
		return fmt.Errorf("run %s finished with status %s", run.ID, run.Status)
	}
}
