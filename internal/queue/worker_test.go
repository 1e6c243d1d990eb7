package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner reports each started task and holds it until released
type blockingRunner struct {
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 16), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, taskID string) bool {
	r.started <- taskID
	select {
	case <-r.release:
		return true
	case <-ctx.Done():
		return false
	}
}

func newTestPool(t *testing.T, workers, queueSize int, runner Runner) *WorkerPool {
	log, _ := test.NewNullLogger()
	wp := NewWorkerPool(workers, queueSize, runner, log)
	wp.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		wp.Stop(ctx)
	})
	return wp
}

func waitStarted(t *testing.T, r *blockingRunner) string {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
		return ""
	}
}

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	var (
		mu  sync.Mutex
		ran []string
		wg  sync.WaitGroup
	)
	wg.Add(3)
	runner := RunnerFunc(func(_ context.Context, id string) bool {
		mu.Lock()
		ran = append(ran, id)
		mu.Unlock()
		wg.Done()
		return true
	})
	wp := newTestPool(t, 2, 10, runner)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, wp.Submit(id))
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, ran)
	assert.Eventually(t, func() bool { return wp.Stats().InFlight == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_RejectsWhenQueueFull(t *testing.T) {
	runner := newBlockingRunner()
	wp := newTestPool(t, 1, 1, runner)

	require.NoError(t, wp.Submit("a"))
	assert.Equal(t, "a", waitStarted(t, runner))

	require.NoError(t, wp.Submit("b"))
	assert.ErrorIs(t, wp.Submit("c"), ErrQueueFull)

	stats := wp.Stats()
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.Capacity)
	assert.Equal(t, 2, stats.InFlight)

	// a rejected id is not remembered
	close(runner.release)
	assert.Equal(t, "b", waitStarted(t, runner))
	assert.NoError(t, wp.Submit("c"))
}

func TestWorkerPool_RejectsDuplicateTask(t *testing.T) {
	runner := newBlockingRunner()
	wp := newTestPool(t, 1, 4, runner)

	require.NoError(t, wp.Submit("a"))
	waitStarted(t, runner)
	assert.ErrorIs(t, wp.Submit("a"), ErrAlreadyQueued)
	assert.ErrorIs(t, wp.SubmitWait(context.Background(), "a"), ErrAlreadyQueued)

	runner.release <- struct{}{}
	require.Eventually(t, func() bool { return wp.Stats().InFlight == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, wp.Submit("a"))
}

func TestWorkerPool_SubmitWaitBlocksForSlot(t *testing.T) {
	runner := newBlockingRunner()
	wp := newTestPool(t, 1, 1, runner)

	require.NoError(t, wp.Submit("a"))
	waitStarted(t, runner)
	require.NoError(t, wp.Submit("b"))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, wp.SubmitWait(short, "c"), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- wp.SubmitWait(context.Background(), "c") }()

	runner.release <- struct{}{} // a finishes, b leaves the queue
	assert.Equal(t, "b", waitStarted(t, runner))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitWait did not return")
	}
	close(runner.release)
	assert.Equal(t, "c", waitStarted(t, runner))
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	ran := make(chan string, 2)
	runner := RunnerFunc(func(_ context.Context, id string) bool {
		if id == "boom" {
			panic("unexpected")
		}
		ran <- id
		return true
	})
	wp := newTestPool(t, 1, 4, runner)

	require.NoError(t, wp.Submit("boom"))
	require.NoError(t, wp.Submit("ok"))

	select {
	case id := <-ran:
		assert.Equal(t, "ok", id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	assert.Eventually(t, func() bool { return wp.Stats().InFlight == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_StopRejectsNewWork(t *testing.T) {
	log, _ := test.NewNullLogger()
	wp := NewWorkerPool(2, 4, RunnerFunc(func(context.Context, string) bool { return true }), log)
	wp.Start()

	require.NoError(t, wp.Stop(context.Background()))
	assert.ErrorIs(t, wp.Submit("a"), ErrPoolStopped)
	assert.ErrorIs(t, wp.SubmitWait(context.Background(), "a"), ErrPoolStopped)
	require.NoError(t, wp.Stop(context.Background()))
}

func TestWorkerPool_StopTimeoutCancelsRunningTasks(t *testing.T) {
	log, _ := test.NewNullLogger()
	runner := newBlockingRunner()
	wp := NewWorkerPool(1, 1, runner, log)
	wp.Start()

	require.NoError(t, wp.Submit("a"))
	waitStarted(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, wp.Stop(ctx), context.DeadlineExceeded)
	assert.Zero(t, wp.Stats().InFlight)
}
