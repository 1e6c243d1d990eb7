package pipeline

import (
	"context"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// TranscriptionSession is a scoped hold on the speech-to-text runtime.
// Cleanup releases it and must be safe to call on every exit path.
type TranscriptionSession interface {
	Transcribe(ctx context.Context, path string, batchSize int, language string) (*types.TranscriptionResult, error)
	Diarize(ctx context.Context, path string, transcript *types.TranscriptionResult) (*types.DiarizationResult, error)
	Cleanup() error
}

// Transcriber hands out transcription sessions
type Transcriber interface {
	Acquire(ctx context.Context, taskID string) (TranscriptionSession, error)
}

// Summarizer turns one chunk of transcript into a summary
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Publisher exports a finished report somewhere outside the task store
type Publisher interface {
	Name() string
	Publish(ctx context.Context, report *types.FinalReport) (string, error)
}

type whisperx struct {
	g *transcription.Gateway
}

// WhisperX adapts the whisperx command gateway to the Transcriber contract
func WhisperX(g *transcription.Gateway) Transcriber {
	return whisperx{g: g}
}

func (w whisperx) Acquire(ctx context.Context, taskID string) (TranscriptionSession, error) {
	s, err := w.g.Acquire(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s, nil
}
