package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// ArtifactKind names a per-stage artifact kept at most once per task
type ArtifactKind string

const (
	ArtifactTranscription ArtifactKind = "transcription"
	ArtifactDiarization   ArtifactKind = "diarization"
	ArtifactReport        ArtifactKind = "final_report"
)

// TaskStore is the durable record of task metadata and per-stage artifacts.
// Every read of an unknown task id fails with types.ErrNotFound; a read of an
// absent artifact of a known task fails with types.ErrMissingArtifact.
// Implementations must be safe for concurrent use across task ids.
type TaskStore interface {
	// SaveTask inserts the task or replaces an existing record with the same id.
	SaveTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	// ListTasks returns the most recently created tasks first.
	ListTasks(ctx context.Context, limit int) ([]*types.Task, error)
	// UpdateStatus atomically validates the transition from the stored status
	// and writes the new status with a fresh updated_at.
	UpdateStatus(ctx context.Context, id string, to types.Status) error

	// SaveArtifact stores value, JSON encoded, replacing any previous one.
	SaveArtifact(ctx context.Context, kind ArtifactKind, id string, value any) error
	// GetArtifact decodes the stored artifact into dst.
	GetArtifact(ctx context.Context, kind ArtifactKind, id string, dst any) error

	SaveChunk(ctx context.Context, chunk types.SummaryChunk) error
	ClearChunks(ctx context.Context, id string) error
	// ListChunks returns the chunks ordered by index.
	ListChunks(ctx context.Context, id string) ([]types.SummaryChunk, error)

	Close() error
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStore, op, err)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", types.ErrNotFound, id)
}

func missingArtifact(kind ArtifactKind, id string) error {
	return fmt.Errorf("%w: %s for task %s", types.ErrMissingArtifact, kind, id)
}

// nextTimestamp keeps updated_at monotonic even if the wall clock steps back.
func nextTimestamp(now, prev time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
