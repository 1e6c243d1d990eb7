package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestCanTransition_AllowsForwardPath(t *testing.T) {
	path := []Status{
		StatusPending,
		StatusTranscribing,
		StatusTranscribed,
		StatusSummarizing,
		StatusSummarized,
		StatusFinalizing,
		StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransition_FailedFromAnyNonTerminal(t *testing.T) {
	for _, st := range forward[:len(forward)-1] {
		assert.True(t, CanTransition(st, StatusFailed), "%s -> failed", st)
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusPending, StatusTranscribed},
		{StatusTranscribing, StatusSummarizing},
		{StatusSummarized, StatusSummarizing},
		{StatusTranscribed, StatusPending},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusPending},
		{StatusFailed, StatusFailed},
		{StatusPending, StatusPending},
		{Status("bogus"), StatusFailed},
	}
	for _, tc := range cases {
		assert.False(t, CanTransition(tc.from, tc.to), "%q -> %q", tc.from, tc.to)
	}
}

func TestTransition_WrapsInvalidTransition(t *testing.T) {
	err := Transition("task-1", StatusCompleted, StatusFailed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "task-1")
}

func TestParseStatus_RoundTrip(t *testing.T) {
	all := append(append([]Status{}, forward...), StatusFailed)
	for _, st := range all {
		got, err := ParseStatus(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
}

func TestParseStatus_UnknownIsCorrupt(t *testing.T) {
	for _, raw := range []string{"", "PENDING", "done", "running"} {
		_, err := ParseStatus(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCorruptState), "value %q", raw)
	}
}

func TestNewTask_AppliesDefaults(t *testing.T) {
	task := NewTask("id-1", "/uploads/a.mp3", Options{Language: "en"}, fixedTime)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, DefaultBatchSize, task.Options.BatchSize)
	assert.Equal(t, "en", task.Options.Language)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
}
