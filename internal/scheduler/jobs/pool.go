package jobs

import (
	"context"
	"fmt"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/pipeline"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// WeeklyPoolRefreshJob rebuilds the core pool from the latest persisted
// screening and rank snapshots. It covers the case where thresholds or
// weights changed during the week without a full pipeline run.
type WeeklyPoolRefreshJob struct {
	orch *pipeline.Orchestrator
	log  *logger.Logger
}

// NewWeeklyPoolRefreshJob creates the weekly pool refresh job.
func NewWeeklyPoolRefreshJob(orch *pipeline.Orchestrator, log *logger.Logger) *WeeklyPoolRefreshJob {
	return &WeeklyPoolRefreshJob{orch: orch, log: log.WithField("job", "pool_refresh")}
}

// Name implements scheduler.Job.
func (j *WeeklyPoolRefreshJob) Name() string { return "pool_refresh" }

// Schedule runs Monday mornings before the session opens.
func (j *WeeklyPoolRefreshJob) Schedule() string { return "0 30 8 * * MON" }

// Run implements scheduler.Job.
func (j *WeeklyPoolRefreshJob) Run(ctx context.Context) error {
	run, err := j.orch.Run(ctx, string(contracts.StagePool))
	if err != nil {
		return err
	}

	switch run.Status {
	case contracts.RunCompleted:
		return nil
	case contracts.RunDataMissing:
		j.log.WithField("run_id", run.ID).Warn("pool refresh gated on missing data")
		return nil
	default:
		return fmt.Errorf("run %s finished with status %s", run.ID, run.Status)
	}
}
