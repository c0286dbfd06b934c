package verify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsOriginalInvocation(t *testing.T) {
	var opts Options
	opts.applyDefaults()

	assert.Equal(t, "http://localhost:5173/", opts.TargetURL)
	assert.Equal(t, ".leaflet-container", opts.Marker)
	assert.Equal(t, "Simulate Run", opts.ButtonLabel)
	assert.Equal(t, 3*time.Second, opts.Settle)
	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.NotEmpty(t, opts.Workspace)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	opts := Options{
		TargetURL:   "http://localhost:9090/",
		Marker:      "#map",
		ButtonLabel: "Go",
		Settle:      500 * time.Millisecond,
		Headless:    playwright.Bool(false),
		Workspace:   "/tmp/ws",
	}
	opts.applyDefaults()

	assert.Equal(t, "http://localhost:9090/", opts.TargetURL)
	assert.Equal(t, "#map", opts.Marker)
	assert.Equal(t, "Go", opts.ButtonLabel)
	assert.Equal(t, 500*time.Millisecond, opts.Settle)
	require.NotNil(t, opts.Headless)
	assert.False(t, *opts.Headless)
	assert.Equal(t, "/tmp/ws", opts.Workspace)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")

	want := Manifest{
		RunID:          "abc",
		StartedAt:      time.Now().UTC().Truncate(time.Second),
		FinishedAt:     time.Now().UTC().Truncate(time.Second),
		TargetURL:      "http://localhost:5173/",
		Marker:         ".leaflet-container",
		ButtonLabel:    "Simulate Run",
		SettleMS:       3000,
		BeforeHTML:     "before.html",
		AfterHTML:      "after.html",
		Screenshot:     "screenshot.png",
		MarkupSuperset: true,
		LogPath:        filepath.Join(dir, "runner.ndjson"),
	}
	require.NoError(t, writeManifest(path, want))

	got, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestFindRuns(t *testing.T) {
	ws := t.TempDir()

	ids, err := FindRuns(ws)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, os.MkdirAll(filepath.Join(ws, "runs", "one"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "runs", "two"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "runs", "stray.txt"), nil, 0o644))

	ids, err = FindRuns(ws)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}
