package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rendis/placetap/internal/tui/views"
)

const maxRecent = 10

type recentFile struct {
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`
}

func recentFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "placetap", "recent.json")
}

// LoadRecent returns the recently opened databases, newest first.
func LoadRecent() []views.RecentEntry {
	return loadRecent(recentFilePath())
}

// SaveRecent records dbPath as the most recent database. Failures are ignored.
func SaveRecent(dbPath string) {
	_ = saveRecent(recentFilePath(), dbPath, time.Now())
}

func loadRecent(path string) []views.RecentEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var stored []recentFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil
	}
	entries := make([]views.RecentEntry, len(stored))
	for i, e := range stored {
		entries[i] = views.RecentEntry{Path: e.Path, OpenedAt: e.OpenedAt}
	}
	return entries
}

func saveRecent(path, dbPath string, now time.Time) error {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}

	entries := slices.DeleteFunc(loadRecent(path), func(e views.RecentEntry) bool { return e.Path == abs })
	entries = slices.Insert(entries, 0, views.RecentEntry{Path: abs, OpenedAt: now})
	entries = entries[:min(len(entries), maxRecent)]

	stored := make([]recentFile, len(entries))
	for i, e := range entries {
		stored[i] = recentFile{Path: e.Path, OpenedAt: e.OpenedAt}
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
