package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/telemetry"
)

const (
	dialWidth       = 24
	dialHeight      = 12
	historyCapacity = 120
	knobStep        = 64
)

// Stepper runs one loop cycle. Experiment.Step and Driver.Cycle both fit.
type Stepper func(ctx context.Context) (driver.Sample, error)

type TickMsg time.Time

// Options configures a live Model.
type Options struct {
	Title string
	// Interval paces the ticks. Zero uses the loop's sample interval.
	Interval time.Duration
	// Knob turns the set-point by delta counts. Nil disables the arrow keys.
	Knob func(delta float64)
	// Resolution is the count of one full turn.
	Resolution float64
}

// Model steps a position loop on a timer and renders it.
type Model struct {
	step       Stepper
	loop       *control.Loop
	knob       func(float64)
	title      string
	interval   time.Duration
	resolution float64

	canvas   *Canvas
	stats    *telemetry.Stats
	position []float64
	setPoint []float64
	errHist  []float64
	last     driver.Sample
	lost     bool
	err      error

	running  bool
	gainKeys []string
	selected int
	showHelp bool
	width    int
}

// NewModel returns a running Model stepping step and tuning loop.
func NewModel(step Stepper, loop *control.Loop, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = loop.Config().SampleInterval
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 4096
	}
	if opts.Title == "" {
		opts.Title = "servo"
	}
	return Model{
		step:       step,
		loop:       loop,
		knob:       opts.Knob,
		title:      opts.Title,
		interval:   opts.Interval,
		resolution: opts.Resolution,
		canvas:     NewCanvas(dialWidth, dialHeight),
		stats:      telemetry.NewStats(telemetry.DefaultWindow),
		position:   make([]float64, 0, historyCapacity),
		setPoint:   make([]float64, 0, historyCapacity),
		errHist:    make([]float64, 0, historyCapacity),
		running:    true,
		gainKeys:   []string{"Kp", "Ki"},
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles keys and steps the loop on every tick while running.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.loop.Reset()
			m.position = m.position[:0]
			m.setPoint = m.setPoint[:0]
			m.errHist = m.errHist[:0]
		case "tab":
			m.selected = (m.selected + 1) % len(m.gainKeys)
		case "up", "k":
			m.adjustGain(1.1)
		case "down", "j":
			m.adjustGain(0.9)
		case "left", "h":
			if m.knob != nil {
				m.knob(-knobStep)
			}
		case "right", "l":
			if m.knob != nil {
				m.knob(knobStep)
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		if m.running && m.err == nil {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	s, err := m.step(context.Background())
	if err != nil && !errors.Is(err, driver.ErrSensorLost) {
		m.err = err
		m.running = false
		return
	}
	m.lost = s.Lost || err != nil
	m.last = s
	m.stats.OnCycle(s)
	m.position = pushBounded(m.position, s.Position)
	m.setPoint = pushBounded(m.setPoint, s.SetPoint)
	m.errHist = pushBounded(m.errHist, s.Error)
}

func pushBounded(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) adjustGain(factor float64) {
	key := m.gainKeys[m.selected]
	val := m.loop.Gains().GetParams()[key] * factor
	if val == 0 && factor > 1 {
		val = 0.1
	}
	m.loop.Gains().SetParam(key, val)
}

// Last returns the most recent sample.
func (m Model) Last() driver.Sample { return m.last }

// Err is the error that stopped the loop, if any.
func (m Model) Err() error { return m.err }

func (m Model) status() (string, string) {
	switch {
	case m.err != nil:
		return "fault", "FAULT: " + m.err.Error()
	case m.lost:
		return "lost", "SENSOR LOST"
	case !m.running:
		return "paused", "PAUSED"
	}
	return "running", "RUNNING"
}

// View renders the dial beside the telemetry panel.
func (m Model) View() string {
	m.canvas.Clear()
	m.canvas.DrawDial(m.last.Position, m.last.SetPoint, m.resolution)
	dialView := dialStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n")
	kind, text := m.status()
	s.WriteString(statusStyle(kind).Render(text) + "\n\n")

	if len(m.position) > 1 {
		chart := asciigraph.PlotMany([][]float64{m.setPoint, m.position},
			asciigraph.Height(6), asciigraph.Width(36),
			asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
			asciigraph.Caption("set-point / rotor"))
		s.WriteString(chart + "\n\n")
	}

	sum := m.stats.Summary()
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Cycle", fmt.Sprintf("%d", m.last.Cycle))
	row("Pot", fmt.Sprintf("%.1f", m.last.SetPoint))
	row("Rotor", fmt.Sprintf("%.1f", m.last.Position))
	row("Error", fmt.Sprintf("%.1f", m.last.Error))
	row("Drive", fmt.Sprintf("%s %d", m.last.Command.Direction, m.last.Command.Duty))
	row("Mean |e|", fmt.Sprintf("%.1f", sum.MeanAbsErr))
	row("Dropouts", ProgressBar(sum.DropoutRate, 10))
	s.WriteString(labelStyle.Render("Error") + Sparkline(m.errHist, 24) + "\n")

	s.WriteString("\nGAINS\n")
	params := m.loop.Gains().GetParams()
	for i, k := range m.gainKeys {
		line := fmt.Sprintf("%-4s %8.3f", k, params[k])
		if i == m.selected {
			s.WriteString(activeStyle().Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}

	keys := "SP:Pause R:Reset Q:Quit\nTab:Gain ↑↓:Tune T:Theme"
	if m.knob != nil {
		keys += "\n←→:Set-point"
	}
	s.WriteString(helpStyle.Render(Separator(24) + "\n" + keys))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, dialView, panelStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume the loop    ║
║  R        - Reset filters/integral   ║
║  Q        - Quit                     ║
║  Tab      - Select gain              ║
║  Up/K     - Raise gain (+10%)        ║
║  Down/J   - Lower gain (-10%)        ║
║  Left/H   - Knob down (sim only)     ║
║  Right/L  - Knob up (sim only)       ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// Run starts m full screen and blocks until it quits.
func Run(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
