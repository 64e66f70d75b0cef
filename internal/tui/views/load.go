package views

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/tui/styles"
)

// LoadModel browses the filesystem for a .db file to explore.
type LoadModel struct {
	picker filepicker.Model
	err    string
}

// NewLoadModel starts browsing at dir, or the working directory when empty.
func NewLoadModel(dir string) LoadModel {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	fp := filepicker.New()
	fp.CurrentDirectory = dir
	fp.AllowedTypes = []string{".db"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	// esc leaves the view instead of walking up a directory.
	fp.KeyMap.Back = key.NewBinding(key.WithKeys("h", "backspace", "left"), key.WithHelp("h", "back"))
	fp.Styles.Cursor = fp.Styles.Cursor.Foreground(styles.Primary)
	fp.Styles.Selected = fp.Styles.Selected.Foreground(styles.Primary).Bold(true)
	fp.Styles.Directory = fp.Styles.Directory.Foreground(styles.Secondary)
	return LoadModel{picker: fp}
}

func (m LoadModel) Init() tea.Cmd {
	return m.picker.Init()
}

func (m LoadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		return m, func() tea.Msg { return NavigateToHome{} }
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m, func() tea.Msg { return NavigateToExplorer{DBPath: path} }
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.err = fmt.Sprintf("%s is not a .db file", path)
		return m, cmd
	}
	return m, cmd
}

func (m LoadModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Load Database"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(m.picker.CurrentDirectory))
	b.WriteString("\n\n")
	b.WriteString(m.picker.View())

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render(m.err))
	}
	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter open • ←/backspace parent dir • esc back"))

	return styles.Border.Render(b.String())
}
