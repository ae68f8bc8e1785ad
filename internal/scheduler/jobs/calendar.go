package jobs

import (
	"context"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/calendar"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// CalendarRefreshJob reloads the trading calendar so the forward
// horizon stays filled as the window moves.
type CalendarRefreshJob struct {
	cal *calendar.Service
	log *logger.Logger
}

// NewCalendarRefreshJob creates the calendar refresh job.
func NewCalendarRefreshJob(cal *calendar.Service, log *logger.Logger) *CalendarRefreshJob {
	return &CalendarRefreshJob{cal: cal, log: log.WithField("job", "calendar_refresh")}
}

// Name implements scheduler.Job.
func (j *CalendarRefreshJob) Name() string { return "calendar_refresh" }

// Schedule runs daily before the market opens.
func (j *CalendarRefreshJob) Schedule() string { return "0 0 6 * * *" }

// Run implements scheduler.Job.
func (j *CalendarRefreshJob) Run(ctx context.Context) error {
	return j.cal.Refresh(ctx)
}
