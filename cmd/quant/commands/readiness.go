package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/readiness"
)

// readinessCmd represents the readiness command
var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Check data readiness",
	Long: `Checks whether the local analytical store satisfies every data
requirement of the pipeline and prints the connector runs that would
close any gap.

Example:
  go run ./cmd/quant readiness`,
	RunE: runReadiness,
}

func init() {
	rootCmd.AddCommand(readinessCmd)
}

func runReadiness(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reqs := readiness.StageRequirements(contracts.StageReadiness, time.Now().UTC())
	result, err := a.gate.Check(context.Background(), reqs)
	if err != nil {
		return fmt.Errorf("readiness check: %w", err)
	}

	if result.IsReady {
		fmt.Println("All data requirements satisfied")
	} else {
		fmt.Println("Data requirements NOT satisfied")
	}
	fmt.Println()

	for _, item := range result.Items {
		marker := "ok"
		if !item.Ready() {
			marker = string(item.State)
		}
		fmt.Printf("  %-24s %-18s rows=%d", item.Requirement.Table, marker, item.RowCount)
		if item.EarliestDate != nil && item.LatestDate != nil {
			fmt.Printf("  %s .. %s",
				item.EarliestDate.Format("2006-01-02"),
				item.LatestDate.Format("2006-01-02"))
		}
		fmt.Println()
	}

	if result.Missing != nil && len(result.Missing.Tasks) > 0 {
		fmt.Println("\nSuggested sync tasks:")
		for _, task := range result.Missing.Tasks {
			fmt.Printf("  - %s (%s) for %s: %s\n", task.Connector, task.TaskType, task.Table, task.Reason)
		}
		fmt.Println("\nGated stages:")
		for _, stage := range result.Missing.Stages {
			fmt.Printf("  - %s\n", stage)
		}
	}

	return nil
}
