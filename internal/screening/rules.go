package screening

import (
	"fmt"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// ratioOutcome is the per-symbol result of one ratio rule.
type ratioOutcome int

const (
	outcomePass ratioOutcome = iota
	outcomeReject
	outcomeSkip
)

// fundamentalField resolves a configured field name to its value on a
// filing. Unknown fields are caught at config validation time; hitting
// one here is a programming error.
func fundamentalField(f contracts.Fundamental, field string) (float64, error) {
	switch field {
	case "revenue":
		return f.Revenue, nil
	case "net_profit":
		return f.NetProfit, nil
	case "revenue_growth":
		return f.RevenueGrowth, nil
	case "profit_growth":
		return f.ProfitGrowth, nil
	case "roe":
		return f.ROE, nil
	case "gross_margin":
		return f.GrossMargin, nil
	case "debt_ratio":
		return f.DebtRatio, nil
	case "pe":
		return f.PE, nil
	case "pb":
		return f.PB, nil
	default:
		return 0, fmt.Errorf("unknown fundamental field %q", field)
	}
}

// KnownField reports whether the field name resolves on a filing.
// Config validation uses this to reject typos at load time.
func KnownField(field string) bool {
	_, err := fundamentalField(contracts.Fundamental{}, field)
	return err == nil
}

func compare(value float64, op contracts.CompareOp, threshold float64) (bool, error) {
	switch op {
	case contracts.OpGT:
		return value > threshold, nil
	case contracts.OpGE:
		return value >= threshold, nil
	case contracts.OpLT:
		return value < threshold, nil
	case contracts.OpLE:
		return value <= threshold, nil
	default:
		return false, fmt.Errorf("unknown compare op %q", op)
	}
}

// evalRatio applies one ratio rule to one symbol's filing history,
// newest first. A symbol with fewer filings than MinPeriods is skipped,
// not rejected; skips are counted, never silent.
func evalRatio(rule *contracts.RatioParams, filings []contracts.Fundamental) (ratioOutcome, float64, error) {
	if len(filings) < rule.MinPeriods || len(filings) == 0 {
		return outcomeSkip, 0, nil
	}

	value, err := fundamentalField(filings[0], rule.Field)
	if err != nil {
		return outcomeSkip, 0, err
	}

	ok, err := compare(value, rule.Op, rule.Threshold)
	if err != nil {
		return outcomeSkip, 0, err
	}
	if !ok {
		return outcomeReject, value, nil
	}
	return outcomePass, value, nil
}
