package jobs

import (
	"context"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// ReadinessProbeJob checks data readiness ahead of the daily run so
// operators see gaps and the suggested connector runs before the
// pipeline is gated by them.
type ReadinessProbeJob struct {
	gate contracts.ReadinessChecker
	log  *logger.Logger
}

// NewReadinessProbeJob creates the readiness probe job.
func NewReadinessProbeJob(gate contracts.ReadinessChecker, log *logger.Logger) *ReadinessProbeJob {
	return &ReadinessProbeJob{gate: gate, log: log.WithField("job", "readiness_probe")}
}

// Name implements scheduler.Job.
func (j *ReadinessProbeJob) Name() string { return "readiness_probe" }

// Schedule runs an hour before the daily pipeline.
func (j *ReadinessProbeJob) Schedule() string { return "0 30 16 * * MON-FRI" }

// Run implements scheduler.Job.
func (j *ReadinessProbeJob) Run(ctx context.Context) error {
	result, err := j.gate.Check(ctx, readiness.StageRequirements(contracts.StageReadiness, time.Now().UTC()))
	if err != nil {
		return err
	}

	if result.IsReady {
		j.log.Info("all data requirements satisfied")
		return nil
	}

	for _, task := range result.Missing.Tasks {
		j.log.WithFields(map[string]interface{}{
			"connector": task.Connector,
			"task_type": task.TaskType,
			"table":     task.Table,
			"reason":    task.Reason,
		}).Warn("data gap ahead of the daily run")
	}

	return nil
}
