package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrMissingArtifact   = errors.New("missing artifact")
	ErrCorruptState      = errors.New("corrupt task state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTranscription     = errors.New("transcription failed")
	ErrDiarization       = errors.New("diarization failed")
	ErrSummarization     = errors.New("summarization failed")
	ErrStore             = errors.New("task store failure")
)

// StageError is a stage-aware error raised inside the pipeline.
type StageError struct {
	Stage string
	Err   error
}

// Error formats stage failures for logs
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
