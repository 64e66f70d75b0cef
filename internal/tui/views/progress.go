package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/runner"
	"github.com/rendis/placetap/internal/tui/styles"
)

const recentNames = 5

// sharedState holds data written by the scrape goroutine and read by the view.
// Lives behind a pointer so it survives bubbletea's value copies.
type sharedState struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	dbPath  string
	logPath string
	area    string
	latest  []string
}

func (s *sharedState) setSession(cancel context.CancelFunc, dbPath, logPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel, s.dbPath, s.logPath = cancel, dbPath, logPath
}

func (s *sharedState) getCancel() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

func (s *sharedState) paths() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbPath, s.logPath
}

func (s *sharedState) push(rec model.PlaceRecord, res model.SaveResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := rec.Name
	if res.Outcome == model.Exists {
		line += " (known)"
	}
	s.latest = append(s.latest, line)
	if len(s.latest) > recentNames {
		s.latest = s.latest[len(s.latest)-recentNames:]
	}
}

func (s *sharedState) recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.latest...)
}

// ProgressModel runs one scrape job and shows its live counters.
type ProgressModel struct {
	target      model.ExtractionTarget
	cfg         config.Config
	stats       *scraper.Stats
	progress    progress.Model
	startTime   time.Time
	done        bool
	confirmQuit bool
	err         error
	result      *runner.Result
	width       int
	height      int
	shared      *sharedState
}

type progressTickMsg time.Time

type scrapeCompleteMsg struct {
	Result *runner.Result
	Err    error
}

func NewProgressModel(msg StartScrapeMsg) ProgressModel {
	return ProgressModel{
		target:    msg.Target,
		cfg:       msg.Config,
		stats:     &scraper.Stats{},
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		startTime: time.Now(),
		shared:    &sharedState{},
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.startScraping(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startScraping() tea.Cmd {
	shared := m.shared
	stats := m.stats
	target := m.target
	cfg := m.cfg
	// Console mirroring would draw over the alt screen.
	cfg.Log.Debug = false

	return func() tea.Msg {
		sess, err := config.OpenSession(cfg.Storage.OutputDir, cfg.Log.Dir, false)
		if err != nil {
			return scrapeCompleteMsg{Err: err}
		}
		defer sess.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		shared.setSession(cancel, sess.DBPath, sess.LogPath)

		sess.Logger.Info().Str("category", target.Category).Str("location", target.Location).
			Int("max_results", target.MaxResults).Str("db", sess.DBPath).Msg("tui session start")

		res, err := runner.Scrape(ctx, runner.Request{
			Target:  target,
			Config:  cfg,
			DBPath:  sess.DBPath,
			Logger:  sess.Logger,
			Stats:   stats,
			OnPlace: shared.push,
			Quiet:   true,
		})
		if res != nil && res.Area != nil {
			shared.mu.Lock()
			shared.area = res.Area.Name
			shared.mu.Unlock()
		}
		return scrapeCompleteMsg{Result: res, Err: err}
	}
}

func (m ProgressModel) openExplorer() tea.Cmd {
	dbPath, _ := m.shared.paths()
	if dbPath == "" {
		return func() tea.Msg { return NavigateToHome{} }
	}
	return func() tea.Msg { return NavigateToExplorer{DBPath: dbPath} }
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(50, max(20, msg.Width-10))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if cancel := m.shared.getCancel(); cancel != nil {
				cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, m.openExplorer()
			}
			if m.confirmQuit {
				if cancel := m.shared.getCancel(); cancel != nil {
					cancel()
				}
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done {
				return m, m.openExplorer()
			}
		}
		m.confirmQuit = false
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case scrapeCompleteMsg:
		m.done = true
		m.err = msg.Err
		m.result = msg.Result
		return m, nil
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

// fraction is the share of the target already extracted.
func (m ProgressModel) fraction() float64 {
	if m.done && m.err == nil {
		return 1
	}
	if m.target.MaxResults <= 0 {
		return 0
	}
	return min(1, float64(m.stats.Processed.Load())/float64(m.target.MaxResults))
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Extracting: %s", m.target.Query())))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Secondary).Render(m.stats.Phase().String()))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(32).
		Render(m.renderStats())
	latestBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(36).
		Render(m.renderLatest())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statsBox, " ", latestBox))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.fraction()))
	b.WriteString("\n\n")

	dbPath, logPath := m.shared.paths()
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	switch {
	case m.done:
		if m.err != nil && !errors.Is(m.err, context.Canceled) {
			b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			summary := fmt.Sprintf("Complete! %d new places stored", m.stats.Stored.Load())
			if errors.Is(m.err, context.Canceled) {
				summary = fmt.Sprintf("Stopped. %d new places stored", m.stats.Stored.Load())
			}
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).Render(summary))
			if m.result != nil {
				b.WriteString(muted.Render(fmt.Sprintf("  (%d in database, %s)", m.result.Total, m.result.Duration)))
			}
		}
		if dbPath != "" {
			b.WriteString("\n")
			b.WriteString(muted.Render("Database: " + dbPath))
			b.WriteString("\n")
			b.WriteString(muted.Render("Log:      " + logPath))
		}
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter explore results • esc back"))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop; places stored so far are kept"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c quit"))
	}

	return b.String()
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)
	s := m.stats

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(13)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)
	row := func(label, value string, style lipgloss.Style) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(style.Render(value))
		sb.WriteString("\n")
	}

	processed := s.Processed.Load()
	row("Extracted:", fmt.Sprintf("%d/%d", processed, m.target.MaxResults), statVal)
	row("Candidates:", fmt.Sprintf("%d (%d rendered)", s.Candidates.Load(), s.Rendered.Load()), statVal)
	row("Stored:", fmt.Sprintf("%d", s.Stored.Load()), statVal)
	row("Known:", fmt.Sprintf("%d", s.Existing.Load()), statVal)
	if n := s.Filtered.Load(); n > 0 {
		row("Filtered:", fmt.Sprintf("%d", n), lipgloss.NewStyle().Foreground(styles.Warning).Bold(true))
	}
	errStyle := statVal
	if s.Errors.Load() > 0 {
		errStyle = lipgloss.NewStyle().Foreground(styles.Error).Bold(true)
	}
	row("Errors:", fmt.Sprintf("%d", s.Errors.Load()), errStyle)
	row("Elapsed:", elapsed.String(), statVal)

	if processed > 0 && !m.done && int(processed) < m.target.MaxResults {
		per := elapsed.Seconds() / float64(processed)
		eta := time.Duration(per * float64(int64(m.target.MaxResults)-processed) * float64(time.Second)).Truncate(time.Second)
		row("ETA:", "~"+eta.String(), statVal)
	}
	return sb.String()
}

func (m ProgressModel) renderLatest() string {
	var sb strings.Builder
	sb.WriteString(styles.Subtitle.Render("Latest"))
	sb.WriteString("\n")
	m.shared.mu.Lock()
	area := m.shared.area
	m.shared.mu.Unlock()
	if area != "" {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(truncate(area, 32)))
		sb.WriteString("\n")
	}
	names := m.shared.recent()
	if len(names) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("waiting for results"))
		return sb.String()
	}
	for i := len(names) - 1; i >= 0; i-- {
		sb.WriteString("• " + truncate(names[i], 32) + "\n")
	}
	return sb.String()
}

// NavigateToExplorer signals transition to explorer view.
type NavigateToExplorer struct {
	DBPath string
}
