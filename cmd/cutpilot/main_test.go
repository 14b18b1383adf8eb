package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutpilot/cutpilot-agent/internal/config"
	"github.com/cutpilot/cutpilot-agent/internal/db"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
)

const sampleTimeline = `name: rough
fps: 24
tracks:
  - - {id: intro, start: 0, end: 3}
    - {id: talk, start: 3, end: 9.5}
`

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ask", "edl"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestEnsurePreset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "presets")

	require.NoError(t, ensurePreset(dir, "WAV.epr"))
	path := filepath.Join(dir, "WAV.epr")
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, ensurePreset(dir, "WAV.epr"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data), "an installed preset is left alone")
}

func TestEnsureAuthToken_Stable(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer database.Close()
	repo := journal.NewRepository(database)
	ctx := context.Background()

	first, err := ensureAuthToken(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := ensureAuthToken(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEDLCommand(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)
	t.Setenv(config.EnvHeadless, "true")

	tl := filepath.Join(t.TempDir(), "rough.yaml")
	require.NoError(t, os.WriteFile(tl, []byte(sampleTimeline), 0o644))
	outDir := t.TempDir()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"edl", outDir, "--timeline", tl, "--env-file", filepath.Join(dataDir, "none.env"), "--title", "Rough Cut"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		timeline, edlTitle = "", ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "wrote 2 events at 24 fps")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".edl"))

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "TITLE:")

	_, err = os.Stat(filepath.Join(dataDir, "presets", config.DefaultAudioPreset))
	assert.NoError(t, err, "preset installed into the data dir")
}
