package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Policy says what a stage failure does to the task
type Policy int

const (
	// Fatal failures move the task to FAILED and stop the pipeline
	Fatal Policy = iota
	// BestEffort failures are logged and the pipeline continues
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "fatal"
}

// Stage names, as they appear in logs and errors
const (
	StageTranscribe  = "transcribe"
	StageDiarize     = "diarize"
	StageDeleteMedia = "delete_media"
	StageSummarize   = "summarize"
	StageFinalize    = "finalize"
	StagePublish     = "publish"
)

type stage struct {
	name   string
	policy Policy
	// enter and exit are the statuses written around the body; empty means
	// the stage does not move the task.
	enter types.Status
	exit  types.Status
	// requires loads the predecessor artifacts; its failure is always fatal
	requires func(ctx context.Context, e *Executor, st *runState) error
	run      func(e *Executor, ctx context.Context, st *runState, log logrus.FieldLogger) error
}

func defaultStages() []stage {
	return []stage{
		{
			name:   StageTranscribe,
			policy: Fatal,
			enter:  types.StatusTranscribing,
			exit:   types.StatusTranscribed,
			run:    (*Executor).transcribe,
		},
		{
			name:     StageDiarize,
			policy:   BestEffort,
			requires: requireTranscript,
			run:      (*Executor).diarize,
		},
		{
			name:   StageDeleteMedia,
			policy: BestEffort,
			run:    (*Executor).deleteMedia,
		},
		{
			name:     StageSummarize,
			policy:   Fatal,
			enter:    types.StatusSummarizing,
			exit:     types.StatusSummarized,
			requires: requireTranscript,
			run:      (*Executor).summarize,
		},
		{
			name:     StageFinalize,
			policy:   Fatal,
			enter:    types.StatusFinalizing,
			exit:     types.StatusCompleted,
			requires: requireChunks,
			run:      (*Executor).finalize,
		},
		{
			name:   StagePublish,
			policy: BestEffort,
			run:    (*Executor).publish,
		},
	}
}

// StageInfo describes one entry of the stage table
type StageInfo struct {
	Name   string       `json:"name"`
	Policy string       `json:"policy"`
	Enter  types.Status `json:"enter,omitempty"`
	Exit   types.Status `json:"exit,omitempty"`
}

// Stages lists the stages in execution order
func (e *Executor) Stages() []StageInfo {
	out := make([]StageInfo, len(e.stages))
	for i, s := range e.stages {
		out[i] = StageInfo{Name: s.name, Policy: s.policy.String(), Enter: s.enter, Exit: s.exit}
	}
	return out
}

func requireTranscript(ctx context.Context, e *Executor, st *runState) error {
	if st.transcript != nil {
		return nil
	}
	t, err := storage.GetTranscription(ctx, e.store, st.task.ID)
	if err != nil {
		return err
	}
	st.transcript = t
	return nil
}

// requireChunks loads the summary chunks and the optional diarization the
// report is compiled from.
func requireChunks(ctx context.Context, e *Executor, st *runState) error {
	if err := requireTranscript(ctx, e, st); err != nil {
		return err
	}
	chunks, err := e.store.ListChunks(ctx, st.task.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no summary chunks for task %s", types.ErrMissingArtifact, st.task.ID)
	}
	st.chunks = chunks

	if st.diarization == nil {
		d, err := storage.GetDiarization(ctx, e.store, st.task.ID)
		switch {
		case err == nil:
			st.diarization = d
		case !errors.Is(err, types.ErrMissingArtifact):
			return err
		}
	}
	return nil
}
