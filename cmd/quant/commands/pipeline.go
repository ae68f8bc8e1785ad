package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the selection pipeline",
	Long: `Runs the staged selection pipeline or inspects a past run.

Subcommands:
  run     - execute a run synchronously and print per-stage results
  status  - show the status of a run by id

Example:
  go run ./cmd/quant pipeline run
  go run ./cmd/quant pipeline run --scope S1_SCREENING
  go run ./cmd/quant pipeline status 6f1c...`,
}

var (
	pipelineScope string

	pipelineRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline run",
		RunE:  runPipeline,
	}

	pipelineStatusCmd = &cobra.Command{
		Use:   "status [run_id]",
		Short: "Show the status of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRunStatus,
	}
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineStatusCmd)

	pipelineRunCmd.Flags().StringVar(&pipelineScope, "scope", "full", "run scope: full or a stage name (e.g. S1_SCREENING)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if pipelineScope != "full" && !contracts.IsValidStage(pipelineScope) {
		return fmt.Errorf("invalid scope %q", pipelineScope)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Running pipeline (scope=%s, config=%s)\n\n", pipelineScope, a.strategy.Hash()[:12])

	run, err := a.orch.Run(context.Background(), pipelineScope)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	printRun(run)

	if run.Status == contracts.RunError {
		return fmt.Errorf("run finished with errors")
	}
	return nil
}

func showRunStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.orch.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	printRun(run)
	return nil
}

func printRun(run *contracts.PipelineRun) {
	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  Scope:   %s\n", run.Scope)
	fmt.Printf("  Status:  %s\n", run.Status)
	fmt.Printf("  Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("  Finished: %s (%.1fs)\n",
			run.FinishedAt.Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Seconds())
	}
	fmt.Println()

	for _, rec := range run.Stages {
		fmt.Printf("  %-4s %-13s %s", rec.Stage.ShortName(), rec.Stage, rec.Status)
		if rec.StartedAt != nil && rec.FinishedAt != nil {
			fmt.Printf(" (%s)", rec.FinishedAt.Sub(*rec.StartedAt).Round(time.Millisecond))
		}
		fmt.Println()

		if rec.Error != "" {
			fmt.Printf("       error: %s\n", rec.Error)
		}
		if rec.Readiness != nil && !rec.Readiness.IsReady {
			for _, item := range rec.Readiness.FailedItems() {
				fmt.Printf("       missing: %s (%s)\n", item.Requirement.Table, item.State)
			}
		}
	}
}
