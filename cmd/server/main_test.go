package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/config"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "process")

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config/config.yaml", flag.DefValue)
}

func TestProcessCommand_RejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"process"}, "accepts 1 arg"},
		{"unknown format", []string{"process", "a.wav", "--format", "pdf"}, `unknown format "pdf"`},
		{"xlsx to stdout", []string{"process", "a.wav", "--format", "xlsx"}, "requires --output"},
		{"unsupported file", []string{"process", "notes.txt"}, "unsupported audio format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	store, err := openStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, store)
	require.NoError(t, store.Close())

	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Database = filepath.Join(t.TempDir(), "tasks.db")
	store, err = openStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteStore{}, store)
	require.NoError(t, store.Close())
}

func TestPublishers(t *testing.T) {
	log, hook := test.NewNullLogger()
	local := storage.NewLocalStorage(t.TempDir(), t.TempDir())
	cfg := config.Default()

	pubs := publishers(context.Background(), cfg, local, log)
	require.Len(t, pubs, 1)
	assert.Equal(t, "local", pubs[0].Name())

	cfg.GoogleDrive.Enabled = true
	cfg.GoogleDrive.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")
	pubs = publishers(context.Background(), cfg, local, log)
	require.Len(t, pubs, 1, "an unusable Drive setup falls back to local only")
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "Google Drive not available")
}

func TestWriteReport(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.SaveReport(ctx, store, &types.FinalReport{TaskID: "t1", Content: "# Summary\n\nDone."}))

	var out bytes.Buffer
	require.NoError(t, writeReport(ctx, store, "t1", &processOptions{format: "text"}, &out))
	assert.Equal(t, "# Summary\n\nDone.\n", out.String())

	out.Reset()
	require.NoError(t, writeReport(ctx, store, "t1", &processOptions{format: "html"}, &out))
	assert.Contains(t, out.String(), "<h1>Summary</h1>")

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, writeReport(ctx, store, "t1", &processOptions{format: "text", output: path}, &out))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n\nDone.\n", string(saved))
}
