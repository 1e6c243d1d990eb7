package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/chunker"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/report"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// publishAttempts is how many times each publisher is tried per report
const publishAttempts = 3

// ErrStagePanic wraps a panic recovered from a stage body
var ErrStagePanic = errors.New("stage panicked")

// Deps are the collaborators an Executor drives
type Deps struct {
	Store       storage.TaskStore
	Transcriber Transcriber
	Summarizer  Summarizer
	Publishers  []Publisher
}

// Executor drives one task at a time through the stage table. Many
// executions may run concurrently as long as each targets a different task.
type Executor struct {
	store        storage.TaskStore
	transcriber  Transcriber
	summarizer   Summarizer
	publishers   []Publisher
	maxChunkSize int
	log          logrus.FieldLogger
	stages       []stage

	removeFile     func(name string) error
	now            func() time.Time
	publishBackOff func() backoff.BackOff
}

// NewExecutor wires the executor. maxChunkSize <= 0 selects the default.
func NewExecutor(deps Deps, maxChunkSize int, log logrus.FieldLogger) *Executor {
	if maxChunkSize <= 0 {
		maxChunkSize = types.DefaultMaxChunkSize
	}
	return &Executor{
		store:        deps.Store,
		transcriber:  deps.Transcriber,
		summarizer:   deps.Summarizer,
		publishers:   deps.Publishers,
		maxChunkSize: maxChunkSize,
		log:          log,
		stages:       defaultStages(),
		removeFile:   os.Remove,
		now:          time.Now,
		publishBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return backoff.WithMaxRetries(b, publishAttempts-1)
		},
	}
}

// runState carries what earlier stages produced to later ones
type runState struct {
	task        *types.Task
	transcript  *types.TranscriptionResult
	diarization *types.DiarizationResult
	chunks      []types.SummaryChunk
	log         logrus.FieldLogger
}

// Run executes the whole pipeline for a PENDING task and reports whether it
// reached COMPLETED. It never panics and never returns an error: every
// fatal failure is logged and turned into a FAILED transition.
func (e *Executor) Run(ctx context.Context, taskID string) (ok bool) {
	log := e.log.WithField("task_id", taskID)

	var st *runState
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Pipeline panicked")
			if st == nil {
				st = &runState{task: &types.Task{ID: taskID}, log: log}
			}
			e.fail(ctx, st, log)
			ok = st.task.Status == types.StatusCompleted
		}
	}()

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		log.WithError(err).Error("Cannot load task")
		return false
	}
	if task.Status != types.StatusPending {
		log.WithField("status", task.Status).Warn("Task is not pending, refusing to run")
		return false
	}

	log.WithField("source", task.SourcePath).Info("Starting pipeline")
	started := e.now()
	st = &runState{task: task, log: log}

	for _, s := range e.stages {
		stageLog := log.WithField("stage", s.name)
		abort, err := e.runStage(ctx, s, st, stageLog)
		if err == nil {
			continue
		}
		if !abort {
			stageLog.WithError(err).Warn("Best-effort stage failed, continuing")
			continue
		}
		stageLog.WithError(err).Error("Stage failed, marking task as failed")
		e.fail(ctx, st, stageLog)
		return false
	}

	log.WithField("elapsed", e.now().Sub(started).String()).Info("Pipeline completed")
	return true
}

// runStage checks preconditions, applies the stage's status transitions and
// runs its body. abort reports whether the error must fail the task.
func (e *Executor) runStage(ctx context.Context, s stage, st *runState, log logrus.FieldLogger) (abort bool, err error) {
	wrap := func(err error) error {
		return &types.StageError{Stage: s.name, Err: err}
	}

	if _, err := e.store.GetTask(ctx, st.task.ID); err != nil {
		return true, wrap(err)
	}
	if s.requires != nil {
		if err := s.requires(ctx, e, st); err != nil {
			return true, wrap(err)
		}
	}

	if s.enter != "" {
		if err := e.transition(ctx, st, s.enter); err != nil {
			return true, wrap(err)
		}
	}
	if err := e.runBody(ctx, s, st, log); err != nil {
		return s.policy == Fatal, wrap(err)
	}
	if s.exit != "" {
		if err := e.transition(ctx, st, s.exit); err != nil {
			return true, wrap(err)
		}
	}
	return false, nil
}

// runBody runs the stage body and turns a panic into an error, so the
// stage's policy decides what it does to the task.
func (e *Executor) runBody(ctx context.Context, s stage, st *runState, log logrus.FieldLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Debug("Stage panicked")
			err = fmt.Errorf("%w: %v", ErrStagePanic, r)
		}
	}()
	return s.run(e, ctx, st, log)
}

func (e *Executor) transition(ctx context.Context, st *runState, to types.Status) error {
	if err := e.store.UpdateStatus(ctx, st.task.ID, to); err != nil {
		return err
	}
	st.log.WithFields(logrus.Fields{"from": st.task.Status, "to": to}).Info("Status changed")
	st.task.Status = to
	return nil
}

// fail moves the task to FAILED. The transition is written even if ctx was
// cancelled, otherwise a shutdown would leave the task stuck mid-stage.
// A task that already reached a terminal status keeps it.
func (e *Executor) fail(ctx context.Context, st *runState, log logrus.FieldLogger) {
	if st.task.Status.IsTerminal() {
		log.WithField("status", st.task.Status).Warn("Task already finished, not marking as failed")
		return
	}
	if err := e.store.UpdateStatus(context.WithoutCancel(ctx), st.task.ID, types.StatusFailed); err != nil {
		log.WithError(err).Error("Cannot mark task as failed")
		return
	}
	st.task.Status = types.StatusFailed
	log.Info("Task marked as failed")
}

func (e *Executor) release(sess TranscriptionSession, log logrus.FieldLogger) {
	if err := sess.Cleanup(); err != nil {
		log.WithError(err).Warn("Failed to release transcription resources")
	}
}

func (e *Executor) transcribe(ctx context.Context, st *runState, log logrus.FieldLogger) error {
	sess, err := e.transcriber.Acquire(ctx, st.task.ID)
	if err != nil {
		return fmt.Errorf("%w: acquire session: %w", types.ErrTranscription, err)
	}
	defer e.release(sess, log)

	opts := st.task.Options
	result, err := sess.Transcribe(ctx, st.task.SourcePath, opts.BatchSize, opts.Language)
	if err != nil {
		return err
	}
	if err := storage.SaveTranscription(ctx, e.store, st.task.ID, result); err != nil {
		return err
	}
	st.transcript = result
	log.WithField("segments", len(result.Segments)).Info("Transcript saved")
	return nil
}

func (e *Executor) diarize(ctx context.Context, st *runState, log logrus.FieldLogger) error {
	sess, err := e.transcriber.Acquire(ctx, st.task.ID)
	if err != nil {
		return fmt.Errorf("%w: acquire session: %w", types.ErrDiarization, err)
	}
	defer e.release(sess, log)

	result, err := sess.Diarize(ctx, st.task.SourcePath, st.transcript)
	if err != nil {
		return err
	}
	if err := storage.SaveDiarization(ctx, e.store, st.task.ID, result); err != nil {
		return err
	}
	st.diarization = result
	log.Info("Diarization saved")
	return nil
}

func (e *Executor) deleteMedia(_ context.Context, st *runState, log logrus.FieldLogger) error {
	if st.task.SourcePath == "" {
		return nil
	}
	err := e.removeFile(st.task.SourcePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete source media: %w", err)
	}
	log.WithField("path", st.task.SourcePath).Info("Source media deleted")
	return nil
}

func (e *Executor) summarize(ctx context.Context, st *runState, log logrus.FieldLogger) error {
	text := st.transcript.Text
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: transcript is empty", types.ErrSummarization)
	}

	pieces := chunker.Split(text, e.maxChunkSize)
	log.WithFields(logrus.Fields{"chunks": len(pieces), "chars": len(text)}).Info("Summarizing transcript")

	if err := e.store.ClearChunks(ctx, st.task.ID); err != nil {
		return err
	}
	for i, piece := range pieces {
		summary, err := e.summarizer.Summarize(ctx, piece)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		chunk := types.SummaryChunk{
			TaskID:      st.task.ID,
			Index:       i,
			Text:        summary,
			CompletedAt: e.now().UTC(),
		}
		if err := e.store.SaveChunk(ctx, chunk); err != nil {
			return err
		}
		log.WithField("chunk", i).Debug("Chunk summary saved")
	}
	return nil
}

func (e *Executor) finalize(ctx context.Context, st *runState, log logrus.FieldLogger) error {
	content := report.Compile(st.chunks, st.diarization, st.transcript)
	final := &types.FinalReport{
		TaskID:      st.task.ID,
		Content:     content,
		CompletedAt: e.now().UTC(),
	}
	if err := storage.SaveReport(ctx, e.store, final); err != nil {
		return err
	}
	log.WithField("chunks", len(st.chunks)).Info("Final report saved")
	return nil
}

func (e *Executor) publish(ctx context.Context, st *runState, log logrus.FieldLogger) error {
	if len(e.publishers) == 0 {
		return nil
	}
	final, err := storage.GetReport(ctx, e.store, st.task.ID)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range e.publishers {
		plog := log.WithField("publisher", p.Name())
		var location string
		op := func() error {
			var err error
			location, err = p.Publish(ctx, final)
			if err != nil {
				plog.WithError(err).Debug("Publish attempt failed")
			}
			return err
		}
		if err := backoff.Retry(op, backoff.WithContext(e.publishBackOff(), ctx)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		plog.WithField("location", location).Info("Report published")
	}
	return errors.Join(errs...)
}
