package pipeline

import (
	"context"
	"errors"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Progress reports how far a task has advanced, reading only the store
func Progress(ctx context.Context, store storage.TaskStore, id string) (*types.Progress, error) {
	task, err := store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &types.Progress{
		TaskID:    task.ID,
		Status:    task.Status,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}

	if p.TranscriptionCompleted, err = hasArtifact(ctx, store, storage.ArtifactTranscription, id); err != nil {
		return nil, err
	}
	if p.Diarized, err = hasArtifact(ctx, store, storage.ArtifactDiarization, id); err != nil {
		return nil, err
	}

	switch task.Status {
	case types.StatusSummarized, types.StatusFinalizing, types.StatusCompleted:
		chunks, err := store.ListChunks(ctx, id)
		if err != nil {
			return nil, err
		}
		p.SummaryChunks = len(chunks)
	}

	if task.Status == types.StatusCompleted {
		final, err := storage.GetReport(ctx, store, id)
		if err != nil {
			return nil, err
		}
		completed := final.CompletedAt
		p.ReportCompletedAt = &completed
	}
	return p, nil
}

func hasArtifact(ctx context.Context, store storage.TaskStore, kind storage.ArtifactKind, id string) (bool, error) {
	var raw map[string]any
	err := store.GetArtifact(ctx, kind, id, &raw)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrMissingArtifact):
		return false, nil
	default:
		return false, err
	}
}
