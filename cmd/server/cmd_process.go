package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/report"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

type processOptions struct {
	language  string
	batchSize int
	format    string
	output    string
	publish   bool
}

func newProcessCommand(root *rootOptions) *cobra.Command {
	opts := &processOptions{}

	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Run one recording through the pipeline and print its report",
		Long: `Run one recording through the pipeline without the HTTP API.

The recording is copied to a scratch directory first, so the original file is
never deleted. Tasks live in memory only. The report is written to stdout
unless --output is given; xlsx always needs --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Spoken language code (detected when empty)")
	cmd.Flags().IntVarP(&opts.batchSize, "batch-size", "b", types.DefaultBatchSize, "Transcription batch size")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Report format: text, html or xlsx")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to this file")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Also publish the report to the configured destinations")

	return cmd
}

func runProcess(ctx context.Context, root *rootOptions, opts *processOptions, audioPath string, stdout io.Writer) error {
	switch opts.format {
	case "text", "html":
	case "xlsx":
		if opts.output == "" {
			return fmt.Errorf("--format xlsx requires --output")
		}
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if !transcription.ValidateAudioFormat(audioPath) {
		return fmt.Errorf("unsupported audio format: %s", filepath.Ext(audioPath))
	}

	cfg, log, err := loadConfig(root, os.Stderr)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "summarizer-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	src, err := os.Open(audioPath)
	if err != nil {
		return err
	}
	defer src.Close()

	taskID := uuid.NewString()
	local := storage.NewLocalStorage(scratch, cfg.Storage.OutputDir)
	path, err := local.SaveUpload(taskID, filepath.Base(audioPath), src)
	if err != nil {
		return err
	}

	store := storage.NewMemoryStore()
	defer store.Close()

	task := types.NewTask(taskID, path, types.Options{BatchSize: opts.batchSize, Language: opts.language}, time.Now())
	if err := store.SaveTask(ctx, task); err != nil {
		return err
	}

	var pubs []pipeline.Publisher
	if opts.publish {
		pubs = publishers(ctx, cfg, local, log)
	}
	executor := newExecutor(cfg, store, pubs, log)

	if ok := executor.Run(ctx, taskID); !ok {
		return fmt.Errorf("processing %s failed, see log for the failing stage", filepath.Base(audioPath))
	}

	return writeReport(ctx, store, taskID, opts, stdout)
}

func writeReport(ctx context.Context, store storage.TaskStore, taskID string, opts *processOptions, stdout io.Writer) error {
	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	final, err := storage.GetReport(ctx, store, taskID)
	if err != nil {
		return err
	}

	switch opts.format {
	case "html":
		body, err := report.RenderHTML(final.Content)
		if err != nil {
			return err
		}
		_, err = out.Write(body)
		return err
	case "xlsx":
		chunks, err := store.ListChunks(ctx, taskID)
		if err != nil {
			return err
		}
		timing, err := storage.GetTranscription(ctx, store, taskID)
		if err != nil {
			return err
		}
		diarization, _ := storage.GetDiarization(ctx, store, taskID)
		return report.WriteWorkbook(out, chunks, report.Segments(diarization, timing))
	default:
		content := final.Content
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		_, err := io.WriteString(out, content)
		return err
	}
}
