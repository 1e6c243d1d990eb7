package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepTime = time.Date(2025, 1, 23, 12, 0, 0, 0, time.UTC)

func writeAged(t *testing.T, path string, size int, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	mod := sweepTime.Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func newTestScheduler(t *testing.T, dir string) *Scheduler {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := NewScheduler(dir, 60, 24, log)
	s.now = func() time.Time { return sweepTime }
	return s
}

func TestSweep_RemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "t1_meeting.mp3")
	nested := filepath.Join(dir, "session_x", "normalized_t1.wav")
	fresh := filepath.Join(dir, "t2_call.wav")
	writeAged(t, old, 2048, 48*time.Hour)
	writeAged(t, nested, 1024, 25*time.Hour)
	writeAged(t, fresh, 512, time.Hour)

	res := newTestScheduler(t, dir).Sweep()

	assert.Equal(t, Result{Deleted: 2, Freed: 3072}, res)
	assert.NoFileExists(t, old)
	assert.NoFileExists(t, nested)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "session_x"))
}

func TestSweep_MissingDir(t *testing.T) {
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, Result{}, s.Sweep())
}

func TestSweep_RemoveFailureIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "a.mp3"), 10, 48*time.Hour)
	writeAged(t, filepath.Join(dir, "b.mp3"), 20, 48*time.Hour)

	s := newTestScheduler(t, dir)
	s.remove = func(path string) error {
		if filepath.Base(path) == "a.mp3" {
			return errors.New("permission denied")
		}
		return os.Remove(path)
	}

	assert.Equal(t, Result{Deleted: 1, Freed: 20}, s.Sweep())
	assert.FileExists(t, filepath.Join(dir, "a.mp3"))
}

func TestScheduler_StartStop(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.wav")
	writeAged(t, old, 1, 72*time.Hour)

	s := newTestScheduler(t, dir)
	s.Start()
	assert.NoFileExists(t, old, "initial sweep runs on start")

	s.Stop()
	s.Stop()
}

func TestNewScheduler_Defaults(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewScheduler("uploads", 0, -1, log)
	assert.Equal(t, time.Hour, s.interval)
	assert.Equal(t, 24*time.Hour, s.maxAge)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}
