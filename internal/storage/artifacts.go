package storage

import (
	"context"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Typed accessors over the generic artifact contract.

func SaveTranscription(ctx context.Context, s TaskStore, id string, r *types.TranscriptionResult) error {
	return s.SaveArtifact(ctx, ArtifactTranscription, id, r)
}

func GetTranscription(ctx context.Context, s TaskStore, id string) (*types.TranscriptionResult, error) {
	var r types.TranscriptionResult
	if err := s.GetArtifact(ctx, ArtifactTranscription, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func SaveDiarization(ctx context.Context, s TaskStore, id string, r *types.DiarizationResult) error {
	return s.SaveArtifact(ctx, ArtifactDiarization, id, r)
}

func GetDiarization(ctx context.Context, s TaskStore, id string) (*types.DiarizationResult, error) {
	var r types.DiarizationResult
	if err := s.GetArtifact(ctx, ArtifactDiarization, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func SaveReport(ctx context.Context, s TaskStore, r *types.FinalReport) error {
	return s.SaveArtifact(ctx, ArtifactReport, r.TaskID, r)
}

func GetReport(ctx context.Context, s TaskStore, id string) (*types.FinalReport, error) {
	var r types.FinalReport
	if err := s.GetArtifact(ctx, ArtifactReport, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
