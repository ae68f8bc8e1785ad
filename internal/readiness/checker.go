// Package readiness implements the S0 data readiness gate. The checker
// answers "can this stage compute a correct result from the local
// store right now", using only metadata and aggregate queries. It never
// triggers data acquisition; gaps surface as suggested connector runs.
package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// connectorFor maps source tables to the external sync connector that
// owns them.
var connectorFor = map[string]string{
	"data.stocks":         "stock_list_sync",
	"data.daily_prices":   "daily_price_sync",
	"data.fundamentals":   "fundamental_sync",
	"data.index_daily":    "index_daily_sync",
	"data.trade_calendar": "trade_calendar_sync",
}

// stagesFor maps source tables to the pipeline stages gated on them.
var stagesFor = map[string][]contracts.Stage{
	"data.stocks":         {contracts.StageScreening, contracts.StageRanking},
	"data.daily_prices":   {contracts.StageRanking, contracts.StageScoring, contracts.StageAnalysis, contracts.StageSignals},
	"data.fundamentals":   {contracts.StageScreening, contracts.StageScoring},
	"data.index_daily":    {contracts.StageSignals},
	"data.trade_calendar": {contracts.StageReadiness},
}

// Checker implements contracts.ReadinessChecker over a MetadataReader.
type Checker struct {
	meta contracts.MetadataReader
	log  *logger.Logger
}

// NewChecker creates a readiness checker.
func NewChecker(meta contracts.MetadataReader, log *logger.Logger) *Checker {
	return &Checker{meta: meta, log: log.WithField("component", "readiness")}
}

// Check evaluates every requirement against store metadata. Metadata
// query failures are infrastructure errors and abort the check; a data
// gap is a value, not an error.
func (c *Checker) Check(ctx context.Context, reqs []contracts.DataRequirement) (*contracts.DataReadinessResult, error) {
	result := &contracts.DataReadinessResult{
		IsReady:   true,
		CheckedAt: time.Now().UTC(),
		Items:     make([]contracts.RequirementStatus, 0, len(reqs)),
	}

	for _, req := range reqs {
		status, err := c.checkOne(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", req.Table, err)
		}
		if !status.Ready() {
			result.IsReady = false
			c.log.WithFields(map[string]interface{}{
				"table":  req.Table,
				"state":  string(status.State),
				"detail": status.Detail,
			}).Warn("data requirement not satisfied")
		}
		result.Items = append(result.Items, status)
	}

	if !result.IsReady {
		result.Missing = c.summarize(result.FailedItems())
	}

	return result, nil
}

func (c *Checker) checkOne(ctx context.Context, req contracts.DataRequirement) (contracts.RequirementStatus, error) {
	status := contracts.RequirementStatus{Requirement: req, State: contracts.RequirementReady}

	exists, err := c.meta.TableExists(ctx, req.Table)
	if err != nil {
		return status, err
	}
	if !exists {
		status.State = contracts.RequirementMissingTable
		status.Detail = "table does not exist"
		return status, nil
	}

	if req.MinRows > 0 {
		count, err := c.meta.RowCount(ctx, req.Table)
		if err != nil {
			return status, err
		}
		status.RowCount = count
		if count < req.MinRows {
			status.State = contracts.RequirementInsufficientRows
			status.Detail = fmt.Sprintf("have %d rows, need %d", count, req.MinRows)
			return status, nil
		}
	}

	if req.DateColumn != "" && (req.MinDate != nil || req.MaxDate != nil) {
		min, max, err := c.meta.DateRange(ctx, req.Table, req.DateColumn)
		if err != nil {
			return status, err
		}
		status.EarliestDate = min
		status.LatestDate = max

		switch {
		case min == nil || max == nil:
			status.State = contracts.RequirementMissingDates
			status.Detail = "table has no dated rows"
		case req.MinDate != nil && min.After(*req.MinDate):
			status.State = contracts.RequirementMissingDates
			status.Detail = fmt.Sprintf("history starts %s, need %s",
				min.Format("2006-01-02"), req.MinDate.Format("2006-01-02"))
		case req.MaxDate != nil && max.Before(*req.MaxDate):
			status.State = contracts.RequirementMissingDates
			status.Detail = fmt.Sprintf("latest row %s, need %s",
				max.Format("2006-01-02"), req.MaxDate.Format("2006-01-02"))
		}
	}

	return status, nil
}

// summarize rolls failed requirements into affected stages and the
// connector runs that would close the gaps. A missing table needs a
// full sync; a partial range only needs an incremental one.
func (c *Checker) summarize(failed []contracts.RequirementStatus) *contracts.MissingSummary {
	summary := &contracts.MissingSummary{}
	seenStage := make(map[contracts.Stage]bool)
	seenTask := make(map[string]bool)

	for _, item := range failed {
		table := item.Requirement.Table
		for _, stage := range stagesFor[table] {
			if !seenStage[stage] {
				seenStage[stage] = true
				summary.Stages = append(summary.Stages, stage)
			}
		}

		connector, ok := connectorFor[table]
		if !ok {
			connector = "unknown"
		}

		taskType := "incremental"
		if item.State == contracts.RequirementMissingTable || item.RowCount == 0 {
			taskType = "full"
		}

		key := connector + "/" + taskType
		if !seenTask[key] {
			seenTask[key] = true
			summary.Tasks = append(summary.Tasks, contracts.SyncTask{
				Connector: connector,
				TaskType:  taskType,
				Table:     table,
				Reason:    item.Detail,
			})
		}
	}

	return summary
}

// StageRequirements returns the declared requirements for a stage as of
// a run date.
func StageRequirements(stage contracts.Stage, asOf time.Time) []contracts.DataRequirement {
	// 250 sessions plus weekend/holiday slack.
	histStart := asOf.AddDate(0, 0, -420)

	prices := contracts.DataRequirement{
		Table:      "data.daily_prices",
		Columns:    []string{"code", "date", "open", "high", "low", "close", "volume"},
		DateColumn: "date",
		MinDate:    &histStart,
		MinRows:    1,
		Purpose:    "price history for ranking and technicals",
	}
	fundamentals := contracts.DataRequirement{
		Table:      "data.fundamentals",
		Columns:    []string{"code", "report_date", "revenue", "net_profit", "roe"},
		DateColumn: "report_date",
		MinRows:    1,
		Purpose:    "filings for screening and factor scores",
	}
	stocks := contracts.DataRequirement{
		Table:   "data.stocks",
		Columns: []string{"code", "name", "status"},
		MinRows: 1,
		Purpose: "symbol universe",
	}
	index := contracts.DataRequirement{
		Table:      "data.index_daily",
		Columns:    []string{"code", "date", "close"},
		DateColumn: "date",
		MinDate:    &histStart,
		MinRows:    1,
		Purpose:    "benchmark series for market risk",
	}

	switch stage {
	case contracts.StageScreening:
		return []contracts.DataRequirement{stocks, fundamentals}
	case contracts.StageRanking:
		return []contracts.DataRequirement{stocks, prices}
	case contracts.StageScoring:
		return []contracts.DataRequirement{fundamentals, prices}
	case contracts.StageAnalysis:
		return []contracts.DataRequirement{prices}
	case contracts.StageSignals:
		return []contracts.DataRequirement{prices, index}
	default:
		return []contracts.DataRequirement{stocks, prices, fundamentals, index}
	}
}
