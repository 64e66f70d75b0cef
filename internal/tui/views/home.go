package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rendis/placetap/internal/tui/styles"
)

type menuItem struct {
	key   string
	label string
	desc  string
}

type HomeModel struct {
	items   []menuItem
	cursor  int
	version string
}

func NewHomeModel(version string) HomeModel {
	return HomeModel{
		version: version,
		items: []menuItem{
			{key: "n", label: "New Extraction", desc: "Extract businesses for a category and location"},
			{key: "l", label: "Load Database", desc: "Open an existing .db file"},
			{key: "r", label: "Recent Databases", desc: "Reopen a recent result set"},
			{key: "q", label: "Quit", desc: "Exit placetap"},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		if k == "enter" {
			return m, m.handleSelect()
		}
		for i, item := range m.items {
			if item.key == k {
				m.cursor = i
				return m, m.handleSelect()
			}
		}
		m.cursor = moveCursor(k, m.cursor, len(m.items))
	}
	return m, nil
}

func (m HomeModel) handleSelect() tea.Cmd {
	switch m.cursor {
	case 0:
		return func() tea.Msg { return NavigateToSearch{} }
	case 1:
		return func() tea.Msg { return NavigateToLoad{} }
	case 2:
		return func() tea.Msg { return NavigateToRecent{} }
	case 3:
		return tea.Quit
	}
	return nil
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Render("  placetap")

	version := lipgloss.NewStyle().
		Foreground(styles.Muted).
		Render(" " + m.version)

	tagline := lipgloss.NewStyle().
		Foreground(styles.Secondary).
		Italic(true).
		Render("  Map business listings, extracted")

	b.WriteString(logo + version + "\n")
	b.WriteString(tagline + "\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		key := lipgloss.NewStyle().
			Foreground(styles.Secondary).
			Bold(true).
			Render(fmt.Sprintf("[%s]", item.key))

		label := style.Render(item.label)
		desc := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Render(" - " + item.desc)

		b.WriteString(fmt.Sprintf("%s%s %s%s\n", cursor, key, label, desc))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}

// moveCursor applies up/down keys to a cursor over n items.
func moveCursor(key string, cursor, n int) int {
	switch key {
	case "up", "k":
		return max(0, cursor-1)
	case "down", "j":
		return max(0, min(n-1, cursor+1))
	}
	return cursor
}

type NavigateToSearch struct{}
type NavigateToLoad struct{}
