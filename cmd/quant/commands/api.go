package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/api"
	"github.com/Yourdaylight/stock-datasource-sub003/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

This command:
- serves pipeline runs and their status
- serves screening, ranking, pool, analysis and signal results
- exposes the live strategy configuration

Endpoints:
  GET  /health                      - Health check
  GET  /api/readiness               - Data readiness report
  POST /api/pipeline/run            - Start a pipeline run
  GET  /api/pipeline/status/{id}    - Run status
  GET  /api/pool                    - Current candidate pool
  GET  /api/signals                 - Active trading signals

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8089`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Stock Selection API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	pipelineHandler := handlers.NewPipelineHandler(a.orch, a.gate, a.log)
	screeningHandler := handlers.NewScreeningHandler(a.engine, a.screeningRepo, a.strategy, a.log)
	poolHandler := handlers.NewPoolHandler(a.poolRepo, a.rankRepo, a.orch, a.cache, a.log)
	analysisHandler := handlers.NewAnalysisHandler(a.analyzer, a.poolRepo, a.signalRepo, a.risk, a.log)
	signalHandler := handlers.NewSignalHandler(a.signalRepo, a.risk, a.cache, a.log)
	configHandler := handlers.NewConfigHandler(a.strategy, a.log)

	router := api.NewRouter(
		a.db,
		pipelineHandler,
		screeningHandler,
		poolHandler,
		analysisHandler,
		signalHandler,
		configHandler,
		a.log,
	)

	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	a.log.Info("API server started successfully")
	fmt.Printf("\nServer running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
