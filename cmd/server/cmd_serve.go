package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/handlers"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/queue"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	streamInterval  = time.Second
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the worker pool",
		Long: `Start the HTTP API and the worker pool.

Endpoints:
  POST /tasks                 Upload audio and create a task
  POST /tasks/import          Create a task from a shared Google Drive link
  GET  /tasks                 List recent tasks
  GET  /tasks/:id/status      Task status
  GET  /tasks/:id/progress    Task progress
  GET  /tasks/:id/report      Final report (?format=text|html|xlsx)
  GET  /ws/tasks/:id          WebSocket progress stream
  GET  /health                Health check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(parent context.Context, root *rootOptions) error {
	cfg, log, err := loadConfig(root, os.Stdout)
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Whisper.WorkDir} {
		if err := cleanup.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Initializing components...")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	local := storage.NewLocalStorage(cfg.Storage.UploadDir, cfg.Storage.OutputDir)
	executor := newExecutor(cfg, store, publishers(ctx, cfg, local, log), log)

	pool := queue.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, executor, log)
	pool.Start()

	resubmitted, failed, err := pipeline.Recover(ctx, store, pool.Submit, log)
	if err != nil {
		log.WithError(err).Error("Task recovery failed")
	} else if resubmitted > 0 || failed > 0 {
		log.WithField("resubmitted", resubmitted).WithField("failed", failed).Info("Recovered tasks from previous run")
	}

	uploads := cleanup.NewScheduler(cfg.Storage.UploadDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, log)
	uploads.Start()
	defer uploads.Stop()
	sessions := cleanup.NewScheduler(cfg.Whisper.WorkDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, log)
	sessions.Start()
	defer sessions.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Limits.MaxFileSizeMB*1024*1024 + 1024*1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(handlers.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Register(app,
		handlers.NewTaskHandler(store, local, pool, cfg.Limits.MaxFileSizeMB, log),
		handlers.NewStreamHandler(store, streamInterval, log),
		handlers.Health(pool, executor),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", addr).Info("Server starting")
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Warn("HTTP server shutdown incomplete")
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := pool.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("Running tasks were cancelled before finishing")
		}
		return nil
	})

	return g.Wait()
}
