package tui

import (
	"fmt"
	"math"
	"strings"

	"beatmap/internal/analysis"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))
)

const (
	barWidth     = 24 // Cells in a full-strength bar.
	contextRange = 24 // Frames shown either side of an onset on the detail screen.
	chromeLines  = 4  // Title, help, and their spacing.
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

type keyMap struct {
	Up, Down, Open, Back, Quit key.Binding
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k")),
	Down: key.NewBinding(key.WithKeys("down", "j")),
	Open: key.NewBinding(key.WithKeys("enter")),
	Back: key.NewBinding(key.WithKeys("esc")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// OnsetModel is the Bubble Tea model for browsing the onsets of one pass.
type OnsetModel struct {
	result        *analysis.Result
	events        []analysis.Event
	peak          float64 // Strongest onset, for bar scaling.
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	activeScreen  ScreenType
}

// NewOnsetModel creates a browser over result.
func NewOnsetModel(result *analysis.Result) OnsetModel {
	events := result.Events()
	peak := 0.0
	for _, e := range events {
		peak = math.Max(peak, e.Strength)
	}
	return OnsetModel{
		result:       result,
		events:       events,
		peak:         peak,
		activeScreen: ListScreen,
	}
}

// Init implements tea.Model.
func (m OnsetModel) Init() tea.Cmd {
	return nil
}

// Selected returns the highlighted event and whether there is one.
func (m OnsetModel) Selected() (analysis.Event, bool) {
	if len(m.events) == 0 {
		return analysis.Event{}, false
	}
	return m.events[m.selectedIndex], true
}

// Screen returns the active screen.
func (m OnsetModel) Screen() ScreenType {
	return m.activeScreen
}

// Update implements tea.Model.
func (m OnsetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeLines)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeLines
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keys.Down):
				if m.selectedIndex < len(m.events)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keys.Open):
				if len(m.events) > 0 {
					m.activeScreen = DetailScreen
				}
			}

		case DetailScreen:
			switch {
			case key.Matches(msg, keys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, keys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keys.Down):
				if m.selectedIndex < len(m.events)-1 {
					m.selectedIndex++
				}
			}
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh re-renders the active screen and keeps the selection visible.
func (m *OnsetModel) refresh() {
	if !m.ready {
		return
	}

	if m.activeScreen == DetailScreen {
		m.viewport.SetContent(m.renderDetail())
		m.viewport.GotoTop()
		return
	}

	m.viewport.SetContent(m.renderList())
	line := m.selectedIndex + 2 // Summary and blank line come first.
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
	} else if bottom := m.viewport.YOffset + m.viewport.Height - 1; line > bottom {
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

// View implements tea.Model.
func (m OnsetModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Detected Onsets")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Inspect • q: Quit")
	} else {
		title = titleStyle.Render("Onset Detail")
		help = infoStyle.Render("↑/↓: Previous/Next • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m OnsetModel) summary() string {
	r := m.result
	source := r.Source
	if source == "" {
		source = "<memory>"
	}
	return fmt.Sprintf("%s • %d Hz • %d frames of %d • %.2fs • %d onsets",
		source, r.Format.SampleRate, r.Frames(), r.FrameSize, r.Duration(), len(m.events))
}

// renderList formats one line per onset.
func (m OnsetModel) renderList() string {
	var sb strings.Builder
	sb.WriteString(dimStyle.Render(m.summary()))
	sb.WriteString("\n\n")

	if len(m.events) == 0 {
		sb.WriteString("No onsets detected.")
		return sb.String()
	}

	for i, e := range m.events {
		cursor := " "
		if i == m.selectedIndex {
			cursor = "▶"
		}
		line := fmt.Sprintf("%s %5d  %9.3fs  %-12.4g %s",
			cursor, e.Index, e.Time, e.Strength, bar(e.Strength, m.peak, barWidth))
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDetail shows the flux around the selected onset.
func (m OnsetModel) renderDetail() string {
	e, ok := m.Selected()
	if !ok {
		return "No onsets detected."
	}

	r := m.result
	lo := max(0, e.Index-contextRange)
	hi := min(len(r.Flux), e.Index+contextRange+1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Onset %d of %d\n\n", m.selectedIndex+1, len(m.events))
	fmt.Fprintf(&sb, "  Frame:     %d\n", e.Index)
	fmt.Fprintf(&sb, "  Time:      %.4fs (sample %d)\n", e.Time, e.Index*r.FrameSize)
	fmt.Fprintf(&sb, "  Strength:  %.6g (%s)\n", e.Strength, r.Normalization)
	fmt.Fprintf(&sb, "  Flux:      %.6g\n", r.Flux[e.Index])
	if prev := m.selectedIndex - 1; prev >= 0 {
		fmt.Fprintf(&sb, "  Since previous onset: %.4fs\n", e.Time-m.events[prev].Time)
	}

	fmt.Fprintf(&sb, "\nFlux, frames %d to %d:\n\n", lo, hi-1)
	spark := sparkline(r.Flux[lo:hi])
	marker := strings.Repeat(" ", e.Index-lo) + "^"
	sb.WriteString("  " + highlightStyle.Render(spark) + "\n")
	sb.WriteString("  " + marker + "\n")
	return sb.String()
}

// bar renders value relative to peak as a horizontal bar.
func bar(value, peak float64, width int) string {
	if peak <= 0 || value <= 0 {
		return ""
	}
	cells := int(math.Round(value / peak * float64(width)))
	return strings.Repeat("█", max(1, min(width, cells)))
}

// sparkline renders values as block characters scaled to their maximum.
func sparkline(values []float64) string {
	top := 0.0
	for _, v := range values {
		top = math.Max(top, v)
	}

	runes := make([]rune, len(values))
	for i, v := range values {
		level := 0
		if top > 0 && v > 0 {
			level = int(v / top * float64(len(sparkLevels)-1))
		}
		runes[i] = sparkLevels[level]
	}
	return string(runes)
}

// Run launches the onset browser and blocks until the user quits.
func Run(result *analysis.Result) error {
	p := tea.NewProgram(
		NewOnsetModel(result),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
