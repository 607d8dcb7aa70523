package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RRaffay/Finance-Data-Agent/internal/agent"
	"github.com/RRaffay/Finance-Data-Agent/internal/api"
	"github.com/RRaffay/Finance-Data-Agent/internal/config"
	"github.com/RRaffay/Finance-Data-Agent/internal/example"
	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
	"github.com/RRaffay/Finance-Data-Agent/internal/sandbox"
	"github.com/RRaffay/Finance-Data-Agent/internal/sessions"
	"github.com/RRaffay/Finance-Data-Agent/internal/store"
	"github.com/RRaffay/Finance-Data-Agent/internal/tools"
	"github.com/RRaffay/Finance-Data-Agent/internal/tree"
	"github.com/RRaffay/Finance-Data-Agent/internal/upload"
	"github.com/RRaffay/Finance-Data-Agent/internal/web"
)

// modelTimeout bounds a single chat completion request.
const modelTimeout = 2 * time.Minute

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	for _, dir := range []string{cfg.UploadDir, cfg.ImagesDir, cfg.ExampleDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Checkpoint store
	db, err := store.Open(cfg.CheckpointDB)
	if err != nil {
		logger.Error("failed to open checkpoint database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	checkpoints := store.NewCheckpointStore(db)

	// Models and tracing
	factory := llm.NewOpenAIFactory(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, modelTimeout)
	tracer := llm.NewTracer(cfg.TracingEnabled(), cfg.TracingProject, logger)
	if tracer != nil {
		logger.Info("agent tracing enabled", "project", tracer.Project())
	}

	// Sandbox
	runner := sandbox.NewPythonRunner(cfg.PythonBin, "", cfg.SandboxTimeout, cfg.SandboxMaxOut)
	if err := runner.Available(); err != nil {
		logger.Warn("python interpreter not available, code tools will fail", "bin", cfg.PythonBin, "error", err)
	}

	// Tree building
	docs := loader.New()
	var summarizer tree.Summarizer
	if cfg.FileAnalysis {
		cm, err := factory(context.Background(), cfg.SummaryModel)
		if err != nil {
			logger.Error("failed to create summary model", "error", err)
			os.Exit(1)
		}
		summarizer = tree.NewFileSummarizer(cm)
	}
	builder := tree.NewBuilder(docs, summarizer, logger)

	var fixture *tree.Overview
	if cfg.FixtureEnabled() {
		ov, err := tree.LoadFixture(cfg.TreeFixtureJSON, cfg.TreeFixtureText)
		if err != nil {
			logger.Error("failed to load tree fixture", "error", err)
			os.Exit(1)
		}
		fixture = &ov
		logger.Info("uploads will use tree fixture", "json", cfg.TreeFixtureJSON, "text", cfg.TreeFixtureText)
	}

	// Agent
	toolkit := tools.New(tools.Config{
		Factory:    factory,
		Runner:     runner,
		Loader:     docs,
		ChartModel: cfg.ChartModel,
		ToolModel:  cfg.ToolModel,
		ImagesDir:  cfg.ImagesDir,
		MaxSteps:   cfg.AgentMaxSteps,
		Tracer:     tracer,
		Logger:     logger,
	})
	svc := agent.NewService(agent.Config{
		Factory:     factory,
		Model:       cfg.AgentModel,
		MaxSteps:    cfg.AgentMaxSteps,
		Toolkit:     toolkit,
		Checkpoints: checkpoints,
		Registry:    sessions.NewRegistry(),
		Tracer:      tracer,
		Logger:      logger,
	})

	// Router
	maxUpload := int64(cfg.MaxUploadMB) << 20
	analysisH := api.NewAnalysisHandler(
		upload.NewStore(cfg.UploadDir, maxUpload),
		builder,
		svc,
		example.NewCache(cfg.ExampleDir),
		api.AnalysisOptions{
			FileAnalysis:   cfg.FileAnalysis,
			Fixture:        fixture,
			MaxUploadBytes: maxUpload,
		},
		logger,
	)
	router := api.NewRouter(
		analysisH,
		api.NewImageHandler(cfg.ImagesDir),
		api.NewHealthHandler(db, runner, cfg.UploadDir, cfg.ImagesDir, cfg.ExampleDir),
		web.Index(),
		cfg.APIKey,
		logger,
	)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 15 * time.Minute, // an upload runs the whole analysis
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("finance agent starting", "addr", addr, "agent_model", cfg.AgentModel, "file_analysis", cfg.FileAnalysis)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
