// Package tui is the interactive front end: a menu, the extraction form, live progress and
// a database explorer.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewSearch
	viewProgress
	viewExplorer
	viewLoad
	viewRecent
)

// App is the root bubbletea model.
type App struct {
	cfg         config.Config
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	search      views.SearchModel
	progress    views.ProgressModel
	explorer    views.ExplorerModel
	load        views.LoadModel
	recent      views.RecentModel
}

// NewApp builds the root model. cfg seeds the extraction form.
func NewApp(cfg config.Config, version string) App {
	return App{
		cfg:         cfg,
		currentView: viewHome,
		home:        views.NewHomeModel(version),
	}
}

func (a App) Init() tea.Cmd {
	return a.home.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && a.currentView != viewProgress {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToHome:
		a.currentView = viewHome
		return a, nil
	case views.NavigateToSearch:
		a.currentView = viewSearch
		a.search = views.NewSearchModel(a.cfg)
		return a, a.search.Init()
	case views.NavigateToLoad:
		a.currentView = viewLoad
		a.load = views.NewLoadModel(a.cfg.Storage.OutputDir)
		return a, tea.Batch(a.load.Init(), a.sizeCmd())
	case views.NavigateToRecent:
		a.currentView = viewRecent
		a.recent = views.NewRecentModel(LoadRecent())
		return a, a.recent.Init()
	case views.StartScrapeMsg:
		a.currentView = viewProgress
		a.progress = views.NewProgressModel(msg)
		return a, tea.Batch(a.progress.Init(), a.sizeCmd())
	case views.NavigateToExplorer:
		a.currentView = viewExplorer
		a.explorer = views.NewExplorerModel(msg.DBPath)
		SaveRecent(msg.DBPath)
		return a, tea.Batch(a.explorer.Init(), a.sizeCmd())
	}

	var m tea.Model
	var cmd tea.Cmd
	switch a.currentView {
	case viewHome:
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewSearch:
		m, cmd = a.search.Update(msg)
		a.search = m.(views.SearchModel)
	case viewProgress:
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	case viewExplorer:
		m, cmd = a.explorer.Update(msg)
		a.explorer = m.(views.ExplorerModel)
	case viewLoad:
		m, cmd = a.load.Update(msg)
		a.load = m.(views.LoadModel)
	case viewRecent:
		m, cmd = a.recent.Update(msg)
		a.recent = m.(views.RecentModel)
	}
	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewSearch:
		content = a.search.View()
	case viewProgress:
		content = a.progress.View()
	case viewExplorer:
		content = a.explorer.View()
	case viewLoad:
		content = a.load.View()
	case viewRecent:
		content = a.recent.View()
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Top, content)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI with the config found in the usual places, falling back to defaults.
func Run(version string) error {
	cfg, err := config.Load("", "")
	if err != nil {
		cfg = config.Default()
	}
	p := tea.NewProgram(NewApp(cfg, version), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
