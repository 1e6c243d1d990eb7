package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/config"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/logger"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/transcription"
)

// loadConfig reads the config and builds the process logger writing to out
func loadConfig(opts *rootOptions, out io.Writer) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Logging.Level
	if opts.debug {
		level = "debug"
	}
	return cfg, logger.NewWithOutput(out, level, cfg.Logging.Environment), nil
}

// openStore opens the configured task store backend
func openStore(cfg *config.Config) (storage.TaskStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		store, err := storage.NewSQLiteStore(cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, nil
	}
}

// publishers returns the report destinations: always the local output
// directory, plus Google Drive when it is enabled and usable.
func publishers(ctx context.Context, cfg *config.Config, local *storage.LocalStorage, log logrus.FieldLogger) []pipeline.Publisher {
	out := []pipeline.Publisher{local}
	if !cfg.GoogleDrive.Enabled {
		log.Info("Google Drive disabled, reports are saved locally only")
		return out
	}

	drive, err := storage.NewDriveClient(ctx,
		cfg.GoogleDrive.CredentialsFile,
		cfg.GoogleDrive.TokenFile,
		cfg.GoogleDrive.FolderName,
	)
	if err != nil {
		log.WithError(err).Warn("Google Drive not available, reports are saved locally only")
		return out
	}
	log.WithField("folder", cfg.GoogleDrive.FolderName).Info("Google Drive integration enabled")
	return append(out, drive)
}

// newExecutor builds the pipeline executor over the whisperx and LLM gateways
func newExecutor(cfg *config.Config, store storage.TaskStore, pubs []pipeline.Publisher, log logrus.FieldLogger) *pipeline.Executor {
	gateway := transcription.NewGateway(transcription.Config{
		Python:        cfg.Whisper.Python,
		FFmpeg:        cfg.Whisper.FFmpeg,
		Model:         cfg.Whisper.Model,
		Device:        cfg.Whisper.Device,
		ComputeType:   cfg.Whisper.ComputeType,
		HFToken:       cfg.Whisper.HFToken,
		WorkDir:       cfg.Whisper.WorkDir,
		MaxConcurrent: cfg.Whisper.MaxConcurrent,
	}, log)

	summarizer := summarization.NewClient(summarization.Config{
		BaseURL:     cfg.Summarizer.BaseURL,
		APIKey:      cfg.Summarizer.APIKey,
		Model:       cfg.Summarizer.Model,
		Temperature: cfg.Summarizer.Temperature,
		Timeout:     time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second,
	}, log)

	return pipeline.NewExecutor(pipeline.Deps{
		Store:       store,
		Transcriber: pipeline.WhisperX(gateway),
		Summarizer:  summarizer,
		Publishers:  pubs,
	}, cfg.Summarizer.MaxChunkSize, log)
}
