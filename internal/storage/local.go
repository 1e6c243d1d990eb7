package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// LocalStorage keeps uploaded media and exported reports on the local filesystem
type LocalStorage struct {
	uploadDir string
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(uploadDir, outputDir string) *LocalStorage {
	return &LocalStorage{
		uploadDir: uploadDir,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// UploadDir returns the directory uploaded media is written to
func (ls *LocalStorage) UploadDir() string {
	return ls.uploadDir
}

// SaveUpload writes the media stream to <upload_dir>/<task_id>_<name> and
// returns its path. The task owns the file until the pipeline deletes it.
func (ls *LocalStorage) SaveUpload(taskID, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(ls.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(ls.uploadDir, taskID+"_"+sanitizeFilename(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	return path, nil
}

func (ls *LocalStorage) Name() string {
	return "local"
}

// Publish writes the report as markdown under a dated directory:
// summaries/2025/01/23/<task_id>.md
func (ls *LocalStorage) Publish(_ context.Context, report *types.FinalReport) (string, error) {
	completed := report.CompletedAt
	if completed.IsZero() {
		completed = ls.now()
	}
	dateDir := datePath(ls.outputDir, completed)

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	path := filepath.Join(dateDir, sanitizeFilename(report.TaskID)+".md")
	if err := os.WriteFile(path, []byte(report.Content), 0644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}

func datePath(root string, t time.Time) string {
	return filepath.Join(root,
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()))
}

// sanitizeFilename strips directories and characters that are invalid in file names
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)

	if result == "" || result == "." || result == ".." {
		result = "upload"
	}
	if runes := []rune(result); len(runes) > 100 {
		result = string(runes[:100])
	}
	return result
}
