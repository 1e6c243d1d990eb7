package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

func TestLocalStorage_SaveUpload(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(filepath.Join(dir, "uploads"), filepath.Join(dir, "summaries"))

	path, err := ls.SaveUpload("abc", "../../etc/meeting.mp3", strings.NewReader("audio bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "uploads", "abc_meeting.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(data))
}

func TestLocalStorage_PublishUsesDatedDirectory(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(filepath.Join(dir, "uploads"), filepath.Join(dir, "summaries"))

	report := &types.FinalReport{TaskID: "abc", Content: "# Summary\n\nok\n", CompletedAt: baseTime}
	path, err := ls.Publish(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summaries", "2025", "01", "23", "abc.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report.Content, string(data))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"podcast.mp3", "podcast.mp3"},
		{"a/b/c.wav", "c.wav"},
		{`C:\Users\me\talk.m4a`, "talk.m4a"},
		{`what?*.mp3`, "what__.mp3"},
		{"..", "upload"},
		{"", "upload"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}
