package views

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/export"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
	focusJSON
)

// ExplorerModel browses a database: a table on top, a detail card and the raw JSON below.
type ExplorerModel struct {
	dbPath    string
	places    []model.StoredPlace
	filtered  []model.StoredPlace
	table     table.Model
	filter    textinput.Model
	focus     focusArea
	selected  int
	width     int
	height    int
	err       error
	format    int
	statusMsg string

	cardScrollY int
	cardLines   []string
	jsonScrollY int
	jsonScrollX int
	jsonLines   []string
	jsonRaw     string
}

type dbLoadedMsg struct {
	Places []model.StoredPlace
	Err    error
}

func NewExplorerModel(dbPath string) ExplorerModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ExplorerModel{
		dbPath:   dbPath,
		filter:   filter,
		selected: -1,
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	dbPath := m.dbPath
	return func() tea.Msg {
		places, err := loadPlaces(dbPath)
		return dbLoadedMsg{Places: places, Err: err}
	}
}

func loadPlaces(dbPath string) ([]model.StoredPlace, error) {
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return store.Places(ctx, storage.Filter{})
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case dbLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.places = msg.Places
		m.filtered = msg.Places
		m.buildTable()
		m.selectRow(0)
		return m, nil
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		if handled, cmd := m.handleKey(key); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		if cursor := m.table.Cursor(); cursor != m.selected && cursor < len(m.filtered) {
			m.selectRow(cursor)
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	}
	return m, cmd
}

// handleKey processes keys bound to the focused area. Unhandled keys reach the table or filter.
func (m *ExplorerModel) handleKey(key string) (bool, tea.Cmd) {
	switch m.focus {
	case focusTable:
		switch key {
		case "esc", "q":
			return true, func() tea.Msg { return NavigateToHome{} }
		case "/", "tab":
			m.focus = focusFilter
			m.filter.Focus()
			return true, textinput.Blink
		case "1":
			m.focus = focusCard
			m.table.SetStyles(tableStyles(false))
			return true, nil
		case "2":
			m.focus = focusJSON
			m.table.SetStyles(tableStyles(false))
			return true, nil
		case "f":
			m.format = (m.format + 1) % len(export.Formats)
			m.statusMsg = "Export format: " + export.Formats[m.format]
			return true, nil
		case "e":
			m.exportFiltered()
			return true, nil
		}
	case focusFilter:
		switch key {
		case "esc", "enter", "tab":
			m.focus = focusTable
			m.filter.Blur()
			return true, nil
		}
	case focusCard, focusJSON:
		lines := m.cardLines
		scroll := &m.cardScrollY
		if m.focus == focusJSON {
			lines, scroll = m.jsonLines, &m.jsonScrollY
		}
		maxScroll := max(0, len(lines)-m.panelHeight())
		switch key {
		case "esc":
			m.focus = focusTable
			m.table.SetStyles(tableStyles(true))
		case "up", "k":
			*scroll = max(0, *scroll-1)
		case "down", "j":
			*scroll = min(maxScroll, *scroll+1)
		case "left", "h":
			m.jsonScrollX = max(0, m.jsonScrollX-4)
		case "right", "l":
			m.jsonScrollX += 4
		case "c":
			m.copyJSON()
		}
		return true, nil
	}
	return false, nil
}

func (m *ExplorerModel) selectRow(i int) {
	m.cardScrollY, m.jsonScrollY, m.jsonScrollX = 0, 0, 0
	if i < 0 || i >= len(m.filtered) {
		m.selected = -1
		m.cardLines, m.jsonLines, m.jsonRaw = nil, nil, ""
		return
	}
	m.selected = i
	p := m.filtered[i]
	m.cardLines = cardLines(p)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		m.jsonLines, m.jsonRaw = []string{"JSON error"}, ""
		return
	}
	m.jsonRaw = string(data)
	m.jsonLines = strings.Split(m.jsonRaw, "\n")
}

func cardLines(p model.StoredPlace) []string {
	lines := []string{p.Name}
	if p.Rating != nil {
		r := fmt.Sprintf("★ %.1f", *p.Rating)
		if p.ReviewCount != nil {
			r += fmt.Sprintf(" (%d reviews)", *p.ReviewCount)
		}
		lines = append(lines, r)
	}
	lines = append(lines, p.Category, "")

	row := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, value))
		}
	}
	row("Address:", p.Address)
	row("Phone:", p.Phone)
	if p.Coords != nil {
		row("Coords:", fmt.Sprintf("%.6f, %.6f", p.Coords.Lat, p.Coords.Lng))
	}
	row("Source:", string(p.Source))
	row("Query:", p.Query)
	if !p.ScrapedAt.IsZero() {
		row("Scraped:", p.ScrapedAt.Local().Format("2006-01-02 15:04"))
	}

	if len(p.Images)+len(p.Videos) > 0 {
		lines = append(lines, "", fmt.Sprintf("Media: %d images, %d videos", len(p.Images), len(p.Videos)))
		for _, u := range p.Images {
			lines = append(lines, "  "+u)
		}
		for _, u := range p.Videos {
			lines = append(lines, "  ▶ "+u)
		}
	}

	if len(p.Reviews) > 0 {
		lines = append(lines, "", fmt.Sprintf("Reviews: %d", len(p.Reviews)))
		for _, r := range p.Reviews {
			head := "- " + r.Author
			if r.Rating != nil {
				head += fmt.Sprintf(" %.0f★", *r.Rating)
			}
			if r.Date != "" {
				head += " · " + r.Date
			}
			lines = append(lines, head)
			if r.Text != "" {
				lines = append(lines, "  "+r.Text)
			}
		}
	}
	return lines
}

// matchPlace reports whether every folded word occurs in the place's searchable text.
func matchPlace(p model.StoredPlace, words []string) bool {
	haystack := scraper.Fold(strings.Join([]string{p.Name, p.Category, p.Address, p.Phone, p.Query}, " "))
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

func (m *ExplorerModel) applyFilter() {
	words := strings.Fields(scraper.Fold(m.filter.Value()))
	if len(words) == 0 {
		m.filtered = m.places
	} else {
		m.filtered = nil
		for _, p := range m.places {
			if matchPlace(p, words) {
				m.filtered = append(m.filtered, p)
			}
		}
	}
	m.buildTable()
	m.selectRow(0)
}

func (m *ExplorerModel) buildTable() {
	nameW, catW, addrW, ratingW, phoneW := 28, 18, 24, 6, 16
	if m.width > 120 {
		extra := m.width - 120
		nameW += extra * 3 / 10
		catW += extra * 2 / 10
		addrW += extra * 3 / 10
		phoneW += extra * 2 / 10
	}

	rows := make([]table.Row, len(m.filtered))
	for i, p := range m.filtered {
		rating := ""
		if p.Rating != nil {
			rating = fmt.Sprintf("%.1f", *p.Rating)
		}
		rows[i] = table.Row{
			truncate(p.Name, nameW),
			truncate(p.Category, catW),
			truncate(p.Address, addrW),
			rating,
			truncate(p.Phone, phoneW),
		}
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: nameW},
			{Title: "Category", Width: catW},
			{Title: "Address", Width: addrW},
			{Title: "Rating", Width: ratingW},
			{Title: "Phone", Width: phoneW},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(5, m.height/2-4)),
	)
	t.SetStyles(tableStyles(m.focus == focusTable || m.focus == focusFilter))
	m.table = t
}

func tableStyles(focused bool) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	if !focused {
		s.Header = s.Header.Foreground(styles.Muted)
		s.Selected = s.Selected.
			Foreground(styles.Text).
			Background(lipgloss.Color("#333333")).
			Bold(false)
	}
	return s
}

func (m ExplorerModel) panelHeight() int {
	return max(6, m.height/2-6)
}

func (m *ExplorerModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable()
}

func (m *ExplorerModel) copyJSON() {
	if m.jsonRaw == "" {
		return
	}
	if err := clipboard.WriteAll(m.jsonRaw); err != nil {
		m.statusMsg = fmt.Sprintf("Copy failed: %v", err)
		return
	}
	m.statusMsg = "JSON copied to clipboard"
}

// exportFiltered writes the visible rows next to the database in the selected format.
func (m *ExplorerModel) exportFiltered() {
	data := m.filtered
	if len(data) == 0 {
		data = m.places
	}
	format := export.Formats[m.format]
	path := export.DefaultPath(m.dbPath, format)
	if err := export.File(path, format, data); err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("Exported %d places to %s", len(data), path)
}

func (m ExplorerModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading DB: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Explorer: %d places", len(m.places))))
	if len(m.filtered) != len(m.places) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf(" (showing %d)", len(m.filtered))))
	}
	b.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	detailW := max(40, m.width-2)
	panelH := m.panelHeight()
	cardOuterW := detailW * 2 / 5
	jsonOuterW := detailW - cardOuterW - 1

	cardBox := panel("[1] Details", m.focus == focusCard, cardOuterW, panelH,
		m.viewCardPanel(max(20, cardOuterW-4), panelH))
	jsonBox := panel("[2] JSON", m.focus == focusJSON, jsonOuterW, panelH,
		m.viewJSONPanel(max(20, jsonOuterW-4), panelH))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cardBox, " ", jsonBox))
	b.WriteString("\n\n")

	if m.statusMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.statusMsg))
		b.WriteString("\n")
	}

	var status string
	switch m.focus {
	case focusTable:
		status = fmt.Sprintf("↑↓ navigate • 1 details • 2 json • / filter • e export %s • f format • esc back",
			export.Formats[m.format])
	case focusFilter:
		status = "type to filter • esc back"
	case focusCard:
		status = "↑↓ scroll • esc back to table"
	case focusJSON:
		status = "↑↓ scroll • ←→ pan • c copy json • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(status))
	return b.String()
}

func panel(title string, focused bool, outerW, h int, content string) string {
	color := styles.Muted
	if focused {
		color = styles.Primary
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(outerW - 2).
		Height(h).
		Render(content)
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(title) + "\n" + box
}

// window clamps scrollY and returns the visible slice bounds of n lines.
func window(scrollY, n, h int) (int, int) {
	scrollY = max(0, min(scrollY, n-h))
	return scrollY, min(n, scrollY+h)
}

func (m ExplorerModel) viewCardPanel(w, h int) string {
	if m.selected < 0 || len(m.cardLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a place\nto view details")
	}

	start, end := window(m.cardScrollY, len(m.cardLines), h)
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	valStyle := lipgloss.NewStyle().Foreground(styles.Text)

	var sb strings.Builder
	for i, line := range m.cardLines[start:end] {
		switch {
		case start+i == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).Render(truncate(line, w)))
		case strings.HasPrefix(line, "★"):
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render(truncate(line, w)))
		case strings.HasPrefix(line, "  http"), strings.HasPrefix(line, "  ▶"):
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render(truncate(line, w)))
		case strings.HasPrefix(line, "Media:"), strings.HasPrefix(line, "Reviews:"):
			sb.WriteString(styles.Subtitle.Render(truncate(line, w)))
		default:
			sb.WriteString(valStyle.Render(truncate(line, w)))
		}
		if start+i < end-1 {
			sb.WriteString("\n")
		}
	}
	if start > 0 {
		sb.WriteString("\n" + label.Render("  ▲ more above"))
	}
	if end < len(m.cardLines) {
		sb.WriteString("\n" + label.Render("  ▼ more below"))
	}
	return sb.String()
}

func (m ExplorerModel) viewJSONPanel(w, h int) string {
	if m.selected < 0 || len(m.jsonLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a place\nto view JSON")
	}

	plain := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	valStyle := lipgloss.NewStyle().Foreground(styles.Success)

	start, end := window(m.jsonScrollY, len(m.jsonLines), h)
	var sb strings.Builder
	for i, line := range m.jsonLines[start:end] {
		r := []rune(line)
		display := ""
		if m.jsonScrollX < len(r) {
			display = truncate(string(r[m.jsonScrollX:]), w)
		}
		if idx := strings.Index(display, "\":"); idx > 0 && strings.HasPrefix(strings.TrimSpace(display), "\"") {
			sb.WriteString(keyStyle.Render(display[:idx+1]))
			sb.WriteString(valStyle.Render(display[idx+1:]))
		} else {
			sb.WriteString(plain.Render(display))
		}
		if start+i < end-1 {
			sb.WriteString("\n")
		}
	}
	if start > 0 || end < len(m.jsonLines) {
		indicator := fmt.Sprintf("  [%d/%d]", start+1, len(m.jsonLines))
		if m.jsonScrollX > 0 {
			indicator += fmt.Sprintf(" ←%d", m.jsonScrollX)
		}
		sb.WriteString("\n" + plain.Render(indicator))
	}
	return sb.String()
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
