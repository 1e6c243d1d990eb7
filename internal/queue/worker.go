package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("job queue is full")
	// ErrAlreadyQueued rejects a task id that is already waiting or running
	ErrAlreadyQueued = errors.New("task is already queued or running")
	// ErrPoolStopped rejects submissions after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Runner executes one task to completion and reports success
type Runner interface {
	Run(ctx context.Context, taskID string) bool
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, taskID string) bool

func (f RunnerFunc) Run(ctx context.Context, taskID string) bool {
	return f(ctx, taskID)
}

// Stats is a point-in-time view of the pool
type Stats struct {
	Workers  int `json:"workers"`
	Queued   int `json:"queued"`
	Capacity int `json:"capacity"`
	InFlight int `json:"in_flight"`
}

// WorkerPool runs queued tasks on a fixed number of workers. The queue is
// bounded: Submit rejects when it is full, SubmitWait blocks for a slot.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	runner      Runner
	log         logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool

	quit       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	runCtx     context.Context
	cancelRuns context.CancelFunc
}

// NewWorkerPool creates a pool of workerCount workers over a queue of queueSize jobs
func NewWorkerPool(workerCount, queueSize int, runner Runner, log logrus.FieldLogger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		runner:      runner,
		log:         log,
		inFlight:    make(map[string]struct{}),
		quit:        make(chan struct{}),
		runCtx:      runCtx,
		cancelRuns:  cancel,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.log.WithField("workers", wp.workerCount).Info("Starting worker pool")
		for i := 0; i < wp.workerCount; i++ {
			wp.wg.Add(1)
			go wp.worker(i)
		}
	})
}

// reserve marks taskID as owned by the pool
func (wp *WorkerPool) reserve(taskID string) error {
	if wp.stopped {
		return ErrPoolStopped
	}
	if _, ok := wp.inFlight[taskID]; ok {
		return ErrAlreadyQueued
	}
	wp.inFlight[taskID] = struct{}{}
	return nil
}

func (wp *WorkerPool) release(taskID string) {
	wp.mu.Lock()
	delete(wp.inFlight, taskID)
	wp.mu.Unlock()
}

// Submit enqueues the task without blocking
func (wp *WorkerPool) Submit(taskID string) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err := wp.reserve(taskID); err != nil {
		return err
	}
	select {
	case wp.jobQueue <- NewJob(taskID):
		wp.log.WithFields(logrus.Fields{"task_id": taskID, "queued": len(wp.jobQueue)}).Info("Task enqueued")
		return nil
	default:
		delete(wp.inFlight, taskID)
		return ErrQueueFull
	}
}

// SubmitWait enqueues the task, waiting for a free slot until ctx ends
func (wp *WorkerPool) SubmitWait(ctx context.Context, taskID string) error {
	wp.mu.Lock()
	err := wp.reserve(taskID)
	wp.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case wp.jobQueue <- NewJob(taskID):
		wp.log.WithField("task_id", taskID).Info("Task enqueued")
		return nil
	case <-ctx.Done():
		wp.release(taskID)
		return ctx.Err()
	case <-wp.quit:
		wp.release(taskID)
		return ErrPoolStopped
	}
}

// Stats reports queue depth and running work
func (wp *WorkerPool) Stats() Stats {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return Stats{
		Workers:  wp.workerCount,
		Queued:   len(wp.jobQueue),
		Capacity: cap(wp.jobQueue),
		InFlight: len(wp.inFlight),
	}
}

// Stop stops accepting work and waits for running tasks. Jobs still in the
// queue are dropped; their tasks stay PENDING in the store. If ctx ends
// first, running tasks are cancelled and Stop returns ctx.Err().
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.stopped = true
		wp.mu.Unlock()
		close(wp.quit)
	})

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancelRuns()
		wp.log.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.cancelRuns()
		<-done
		wp.log.Warn("Worker pool stopped before running tasks finished")
		return ctx.Err()
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.WithField("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-wp.quit:
			log.Debug("Worker exiting")
			return
		case job := <-wp.jobQueue:
			wp.process(log, job)
		}
	}
}

func (wp *WorkerPool) process(log logrus.FieldLogger, job *Job) {
	jlog := log.WithField("task_id", job.TaskID)
	defer wp.release(job.TaskID)
	defer func() {
		if r := recover(); r != nil {
			jlog.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Worker panic while processing task")
		}
	}()

	jlog.WithField("waited", time.Since(job.EnqueuedAt).Round(time.Millisecond).String()).Info("Processing task")
	if ok := wp.runner.Run(wp.runCtx, job.TaskID); ok {
		jlog.Info("Task finished")
	} else {
		jlog.Warn("Task did not complete")
	}
}
