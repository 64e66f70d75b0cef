package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRecentDedupesAndCaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "placetap", "recent.json")
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := range 12 {
		db := filepath.Join(dir, fmt.Sprintf("run_%02d.db", i))
		require.NoError(t, saveRecent(path, db, base.Add(time.Duration(i)*time.Minute)))
	}
	entries := loadRecent(path)
	require.Len(t, entries, maxRecent)
	assert.Equal(t, filepath.Join(dir, "run_11.db"), entries[0].Path)
	assert.Equal(t, filepath.Join(dir, "run_02.db"), entries[maxRecent-1].Path)

	require.NoError(t, saveRecent(path, filepath.Join(dir, "run_05.db"), base.Add(time.Hour)))
	entries = loadRecent(path)
	require.Len(t, entries, maxRecent)
	assert.Equal(t, filepath.Join(dir, "run_05.db"), entries[0].Path)
	assert.True(t, entries[0].OpenedAt.Equal(base.Add(time.Hour)))
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.Path]++
	}
	assert.Equal(t, 1, seen[filepath.Join(dir, "run_05.db")])
}

func TestLoadRecentMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, loadRecent(filepath.Join(dir, "nope.json")))

	bad := filepath.Join(dir, "recent.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	assert.Nil(t, loadRecent(bad))
}
