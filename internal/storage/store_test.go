package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

var baseTime = time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC)

type storeFactory func(t *testing.T) TaskStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) TaskStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) TaskStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s TaskStore)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func newTask(id string) *types.Task {
	return types.NewTask(id, "/uploads/"+id+".mp3", types.Options{BatchSize: 8, Language: "ru"}, baseTime)
}

func TestStore_SaveAndGetTask(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveTask(ctx, newTask("t1")))

		got, err := s.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, types.StatusPending, got.Status)
		assert.Equal(t, "/uploads/t1.mp3", got.SourcePath)
		assert.Equal(t, types.Options{BatchSize: 8, Language: "ru"}, got.Options)
		assert.True(t, got.CreatedAt.Equal(baseTime))
	})
}

func TestStore_UnknownTaskIsNotFoundEverywhere(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()

		_, err := s.GetTask(ctx, "nope")
		assert.True(t, errors.Is(err, types.ErrNotFound), "GetTask: %v", err)

		_, err = GetTranscription(ctx, s, "nope")
		assert.True(t, errors.Is(err, types.ErrNotFound), "GetTranscription: %v", err)

		_, err = GetReport(ctx, s, "nope")
		assert.True(t, errors.Is(err, types.ErrNotFound), "GetReport: %v", err)

		chunks, err := s.ListChunks(ctx, "nope")
		assert.True(t, errors.Is(err, types.ErrNotFound), "ListChunks: %v", err)
		assert.Nil(t, chunks)

		err = s.UpdateStatus(ctx, "nope", types.StatusTranscribing)
		assert.True(t, errors.Is(err, types.ErrNotFound), "UpdateStatus: %v", err)

		err = SaveTranscription(ctx, s, "nope", &types.TranscriptionResult{})
		assert.True(t, errors.Is(err, types.ErrNotFound), "SaveTranscription: %v", err)
	})
}

func TestStore_UpdateStatusEnforcesStateMachine(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveTask(ctx, newTask("t1")))

		err := s.UpdateStatus(ctx, "t1", types.StatusSummarizing)
		assert.True(t, errors.Is(err, types.ErrInvalidTransition))

		require.NoError(t, s.UpdateStatus(ctx, "t1", types.StatusTranscribing))
		require.NoError(t, s.UpdateStatus(ctx, "t1", types.StatusFailed))

		err = s.UpdateStatus(ctx, "t1", types.StatusFailed)
		assert.True(t, errors.Is(err, types.ErrInvalidTransition))

		got, err := s.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, types.StatusFailed, got.Status)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})
}

func TestStore_UpdatedAtIsMonotonic(t *testing.T) {
	mem := NewMemoryStore()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer sq.Close()

	// a clock running backwards must not move updated_at back
	backwards := func() time.Time { return baseTime.Add(-time.Hour) }
	mem.now = backwards
	sq.now = backwards

	for name, s := range map[string]TaskStore{"memory": mem, "sqlite": sq} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveTask(ctx, newTask("t1")))
			require.NoError(t, s.UpdateStatus(ctx, "t1", types.StatusTranscribing))

			got, err := s.GetTask(ctx, "t1")
			require.NoError(t, err)
			assert.True(t, got.UpdatedAt.Equal(baseTime), "updated_at %s", got.UpdatedAt)
		})
	}
}

func TestStore_ArtifactsReplace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveTask(ctx, newTask("t1")))

		_, err := GetTranscription(ctx, s, "t1")
		assert.True(t, errors.Is(err, types.ErrMissingArtifact))

		first := &types.TranscriptionResult{Text: "one", Segments: []types.Segment{{Start: 0, End: 1, Text: "one"}}}
		second := &types.TranscriptionResult{Text: "two", Language: "en"}
		require.NoError(t, SaveTranscription(ctx, s, "t1", first))
		require.NoError(t, SaveTranscription(ctx, s, "t1", second))

		got, err := GetTranscription(ctx, s, "t1")
		require.NoError(t, err)
		assert.Equal(t, "two", got.Text)
		assert.Equal(t, "en", got.Language)
		assert.Empty(t, got.Segments)

		report := &types.FinalReport{TaskID: "t1", Content: "# Summary", CompletedAt: baseTime}
		require.NoError(t, SaveReport(ctx, s, report))
		gotReport, err := GetReport(ctx, s, "t1")
		require.NoError(t, err)
		assert.Equal(t, "# Summary", gotReport.Content)
		assert.True(t, gotReport.CompletedAt.Equal(baseTime))
	})
}

func TestStore_ChunksOrderedAndCleared(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveTask(ctx, newTask("t1")))

		empty, err := s.ListChunks(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, empty)

		for _, idx := range []int{2, 0, 1} {
			require.NoError(t, s.SaveChunk(ctx, types.SummaryChunk{
				TaskID: "t1", Index: idx, Text: fmt.Sprintf("chunk %d", idx), CompletedAt: baseTime,
			}))
		}
		chunks, err := s.ListChunks(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, fmt.Sprintf("chunk %d", i), c.Text)
			assert.Equal(t, "t1", c.TaskID)
		}

		require.NoError(t, s.ClearChunks(ctx, "t1"))
		chunks, err = s.ListChunks(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestStore_ListTasksNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			task := newTask(fmt.Sprintf("t%d", i))
			task.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveTask(ctx, task))
		}

		tasks, err := s.ListTasks(ctx, 2)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "t2", tasks[0].ID)
		assert.Equal(t, "t1", tasks[1].ID)

		all, err := s.ListTasks(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestStore_ConcurrentTasks(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("t%d", i)
				assert.NoError(t, s.SaveTask(ctx, newTask(id)))
				assert.NoError(t, s.UpdateStatus(ctx, id, types.StatusTranscribing))
				assert.NoError(t, SaveTranscription(ctx, s, id, &types.TranscriptionResult{Text: id}))
				assert.NoError(t, s.SaveChunk(ctx, types.SummaryChunk{TaskID: id, Index: 0, Text: id, CompletedAt: baseTime}))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("t%d", i)
			got, err := GetTranscription(ctx, s, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.Text)
		}
	})
}

func TestStore_SaveTaskRejectsUnknownStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s TaskStore) {
		ctx := context.Background()
		task := newTask("t1")
		task.Status = "running"

		err := s.SaveTask(ctx, task)
		assert.True(t, errors.Is(err, types.ErrCorruptState), "SaveTask: %v", err)

		_, err = s.GetTask(ctx, "t1")
		assert.True(t, errors.Is(err, types.ErrNotFound), "nothing was stored: %v", err)
	})
}

func TestSQLiteStore_CorruptStatus(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, newTask("t1")))
	_, err = s.db.Exec(`UPDATE tasks SET status = 'RUNNING' WHERE task_id = 't1'`)
	require.NoError(t, err)

	_, err = s.GetTask(ctx, "t1")
	assert.True(t, errors.Is(err, types.ErrCorruptState), "GetTask: %v", err)

	err = s.UpdateStatus(ctx, "t1", types.StatusFailed)
	assert.True(t, errors.Is(err, types.ErrCorruptState), "UpdateStatus: %v", err)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, newTask("t1")))
	require.NoError(t, s.UpdateStatus(ctx, "t1", types.StatusTranscribing))
	require.NoError(t, SaveTranscription(ctx, s, "t1", &types.TranscriptionResult{Text: "kept"}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusTranscribing, got.Status)
	tr, err := GetTranscription(ctx, reopened, "t1")
	require.NoError(t, err)
	assert.Equal(t, "kept", tr.Text)
}
