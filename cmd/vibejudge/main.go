// VibeJudge server — HTTP API, analysis job orchestration and the judge
// agent runtime.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vibejudge/vibejudge/pkg/agent"
	"github.com/vibejudge/vibejudge/pkg/api"
	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/extract"
	"github.com/vibejudge/vibejudge/pkg/llm"
	"github.com/vibejudge/vibejudge/pkg/orchestrator"
	"github.com/vibejudge/vibejudge/pkg/services"
	"github.com/vibejudge/vibejudge/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("VIBEJUDGE_CONFIG", "./vibejudge.yaml"),
		"Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file, continuing with existing environment")
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	logger := slog.Default()

	slog.Info("Starting VibeJudge", "http_port", httpPort, "config", *configPath)

	ctx := context.Background()

	// 1. Configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Store (runs embedded migrations).
	dbConfig, err := store.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	st, err := store.NewPG(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL store")

	// 3. Repository extractor. The GitHub token is optional; without it
	// workflow runs are fetched at anonymous rate limits.
	workflows := extract.NewGitHubWorkflowClient(
		os.Getenv("GITHUB_TOKEN"), cfg.Extractor.WorkflowTimeout)
	extractor := extract.NewExtractor(cfg.Extractor, workflows, logger)

	// 4. Agent runtime over the Converse transport.
	converse := llm.NewHTTPConverseClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Timeout)
	runtime := agent.NewRuntime(cfg, converse, logger)

	// 5. Orchestrator and services.
	orch := orchestrator.New(cfg, st, extractor, runtime, logger)
	organizers := services.NewOrganizerService(st, logger)
	hackathons := services.NewHackathonService(st, logger)
	submissions := services.NewSubmissionService(st, cfg.Extractor.AllowedHosts, logger)
	slog.Info("Services initialized")

	// 6. Fail jobs orphaned by a previous process before accepting traffic.
	if err := orch.RecoverOrphans(ctx); err != nil {
		slog.Error("Orphaned job recovery failed", "error", err)
		os.Exit(1)
	}

	// 7. HTTP server (non-blocking).
	server := api.NewServer(organizers, hackathons, submissions, orch, st, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Run(":" + httpPort); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("VibeJudge started",
		"max_concurrent_submissions", cfg.Orchestrator.MaxConcurrentSubmissions,
		"submission_deadline", cfg.Orchestrator.SubmissionDeadline)

	// 8. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: drain jobs first, then stop the listener.
	drainCtx, drainCancel := context.WithTimeout(ctx, cfg.Orchestrator.GracefulShutdownTimeout)
	defer drainCancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		slog.Warn("Orchestrator shutdown incomplete", "error", err)
	} else {
		slog.Info("In-flight jobs drained")
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
