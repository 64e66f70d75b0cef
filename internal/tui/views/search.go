package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cast"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/tui/styles"
)

// Field order on the form. Toggles are virtual fields flipped with space or ←→.
const (
	fieldCategory = iota
	fieldLocation
	fieldMax
	fieldMinRating
	fieldOutput
	fieldDetail
	fieldReviews
	fieldMedia
	fieldGeoFilter
	fieldHeadless
	fieldCount
)

const firstToggle = fieldDetail

type SearchModel struct {
	cfg     config.Config
	inputs  []textinput.Model
	toggles map[int]bool
	focused int
	err     string
}

// NewSearchModel prefills the form from cfg.
func NewSearchModel(cfg config.Config) SearchModel {
	inputs := make([]textinput.Model, firstToggle)
	inputs[fieldCategory] = newInput("cafes", "", 40)
	inputs[fieldLocation] = newInput("Lisbon, Portugal", "", 40)
	inputs[fieldMax] = newInput("20", cast.ToString(cfg.Pipeline.MaxResults), 6)
	inputs[fieldMinRating] = newInput("0", "", 6)
	if cfg.Pipeline.MinRating > 0 {
		inputs[fieldMinRating].SetValue(cast.ToString(cfg.Pipeline.MinRating))
	}
	inputs[fieldOutput] = newInput("./projects", cfg.Storage.OutputDir, 50)
	inputs[fieldCategory].Focus()

	return SearchModel{
		cfg:    cfg,
		inputs: inputs,
		toggles: map[int]bool{
			fieldDetail:    cfg.Pipeline.UseDetailView,
			fieldReviews:   cfg.Pipeline.FetchReviews,
			fieldMedia:     cfg.Pipeline.FetchMedia,
			fieldGeoFilter: cfg.Geo.Filter,
			fieldHeadless:  cfg.Browser.Headless,
		},
	}
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	if value != "" {
		ti.SetValue(value)
	}
	return ti
}

func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		case "down", "tab":
			m.err = ""
			return m, m.focus(m.focused + 1)
		case "up", "shift+tab":
			m.err = ""
			return m, m.focus(m.focused - 1)
		case "enter":
			return m, m.submit()
		case " ", "left", "right":
			if m.focused >= firstToggle {
				m.toggles[m.focused] = !m.toggles[m.focused]
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.focused < firstToggle {
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	}
	return m, cmd
}

func (m *SearchModel) focus(idx int) tea.Cmd {
	if m.focused < firstToggle {
		m.inputs[m.focused].Blur()
	}
	m.focused = (idx + fieldCount) % fieldCount
	if m.focused >= firstToggle {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SearchModel) value(idx int) string {
	return strings.TrimSpace(m.inputs[idx].Value())
}

// build turns the form into a job, reporting the first invalid field.
func (m *SearchModel) build() (StartScrapeMsg, error) {
	switch {
	case m.value(fieldCategory) == "":
		return StartScrapeMsg{}, fmt.Errorf("category is required")
	case m.value(fieldLocation) == "":
		return StartScrapeMsg{}, fmt.Errorf("location is required")
	}

	cfg := m.cfg
	cfg.Pipeline.UseDetailView = m.toggles[fieldDetail]
	cfg.Pipeline.FetchReviews = m.toggles[fieldReviews]
	cfg.Pipeline.FetchMedia = m.toggles[fieldMedia]
	cfg.Geo.Filter = m.toggles[fieldGeoFilter]
	cfg.Browser.Headless = m.toggles[fieldHeadless]

	if v := m.value(fieldMax); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 1 {
			return StartScrapeMsg{}, fmt.Errorf("max results must be a positive number")
		}
		cfg.Pipeline.MaxResults = n
	}
	cfg.Pipeline.MinRating = 0
	if v := m.value(fieldMinRating); v != "" {
		r, err := cast.ToFloat64E(v)
		if err != nil {
			return StartScrapeMsg{}, fmt.Errorf("min rating must be a number between 0 and 5")
		}
		cfg.Pipeline.MinRating = r
	}
	if out := m.value(fieldOutput); out != "" {
		cfg.Storage.OutputDir = out
	}

	target := model.NewTarget(m.value(fieldCategory), m.value(fieldLocation), cfg.Pipeline.MaxResults)
	if err := target.Validate(); err != nil {
		return StartScrapeMsg{}, err
	}
	if err := cfg.Validate(); err != nil {
		return StartScrapeMsg{}, err
	}
	return StartScrapeMsg{Target: target, Config: cfg}, nil
}

func (m *SearchModel) submit() tea.Cmd {
	msg, err := m.build()
	if err != nil {
		m.err = err.Error()
		return nil
	}
	return func() tea.Msg { return msg }
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Extraction") + "\n\n")

	b.WriteString(m.renderField("Category:", fieldCategory))
	b.WriteString(m.renderField("Location:", fieldLocation))
	b.WriteString("\n")
	b.WriteString(m.renderField("Max results:", fieldMax))
	b.WriteString(m.renderField("Min rating:", fieldMinRating))
	b.WriteString(m.renderField("Output:", fieldOutput))
	b.WriteString("\n")
	b.WriteString(m.renderToggle("Detail view:", fieldDetail, "open each place for phone, address and coordinates"))
	b.WriteString(m.renderToggle("Reviews:", fieldReviews, "needs detail view"))
	b.WriteString(m.renderToggle("Media:", fieldMedia, "photo and video URLs, needs detail view"))
	b.WriteString(m.renderToggle("Geo filter:", fieldGeoFilter, "drop places outside the geocoded location"))
	b.WriteString(m.renderToggle("Headless:", fieldHeadless, ""))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • space toggle • esc back"))

	return styles.Border.Render(b.String())
}

func (m SearchModel) renderField(label string, idx int) string {
	return fmt.Sprintf("%s %s\n", styles.Label.Render(label), m.inputs[idx].View())
}

func (m SearchModel) renderToggle(label string, idx int, hint string) string {
	box := "[ ]"
	if m.toggles[idx] {
		box = "[x]"
	}
	style := styles.InactiveItem
	if m.focused == idx {
		style = styles.ActiveItem
	}
	line := styles.Label.Render(label) + " " + style.Render(box)
	if hint != "" && m.focused == idx {
		line += lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("  " + hint)
	}
	return line + "\n"
}

// NavigateToHome signals navigation back to the menu.
type NavigateToHome struct{}

// StartScrapeMsg carries a validated job from the form to the progress view.
type StartScrapeMsg struct {
	Target model.ExtractionTarget
	Config config.Config
}
