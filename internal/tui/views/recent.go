package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/tui/styles"
)

// RecentEntry is a database listed in the recent view.
type RecentEntry struct {
	Path     string
	OpenedAt time.Time
}

type RecentModel struct {
	entries []RecentEntry
	cursor  int
	now     func() time.Time
}

func NewRecentModel(entries []RecentEntry) RecentModel {
	return RecentModel{entries: entries, now: time.Now}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			if m.cursor < len(m.entries) {
				path := m.entries[m.cursor].Path
				if _, err := os.Stat(path); err != nil {
					return m, nil
				}
				return m, func() tea.Msg { return NavigateToExplorer{DBPath: path} }
			}
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		default:
			m.cursor = moveCursor(msg.String(), m.cursor, len(m.entries))
		}
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Recent Databases"))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No recent databases"))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	missing := lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true)
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	for i, entry := range m.entries {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		name := style.Render(filepath.Base(entry.Path))
		if _, err := os.Stat(entry.Path); err != nil {
			name = missing.Render(filepath.Base(entry.Path))
		}
		where := muted.Render(fmt.Sprintf("  %s  %s", filepath.Dir(entry.Path), timeAgo(m.now().Sub(entry.OpenedAt))))
		b.WriteString(fmt.Sprintf("%s%s\n%s\n", cursor, name, where))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter open • esc back"))

	return styles.Border.Render(b.String())
}

func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// NavigateToRecent signals navigation to the recent databases view.
type NavigateToRecent struct{}
