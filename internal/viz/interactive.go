package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/config"
	"github.com/san-kum/servoctl/internal/experiment"
	"github.com/san-kum/servoctl/internal/sim"
)

var presetInfo = map[string]string{
	"bench":  "P only, as on the bench",
	"pi":     "bounded integral",
	"snappy": "light smoothing",
	"wrap":   "circular error across 0",
	"noisy":  "noise, dropouts, friction",
}

// Builder makes the live model for a preset name.
type Builder func(name string) (Model, error)

// SimModel runs cfg against the simulated rig. The arrow keys turn the
// simulated potentiometer.
func SimModel(name string, cfg *config.Config) (Model, error) {
	ec, err := cfg.Experiment()
	if err != nil {
		return Model{}, err
	}
	// the live view runs until quit
	ec.Cycles = 0
	ec.Keep = historyCapacity
	exp, err := experiment.New(ec)
	if err != nil {
		return Model{}, err
	}
	pot := exp.Rig().Pot
	knob := func(delta float64) {
		pot.Set(math.Max(0, math.Min(sim.PotMax, pot.Value()+delta)))
	}
	return NewModel(exp.Step, exp.Driver().Loop(), Options{Title: name, Knob: knob}), nil
}

// PresetBuilder builds simulated models from the named presets.
func PresetBuilder(name string) (Model, error) {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return Model{}, errors.Errorf("unknown preset %q", name)
	}
	return SimModel(name, cfg)
}

const (
	stateMenu = iota
	stateLive
)

// Menu lists presets and hands over to a live Model on enter.
type Menu struct {
	state   int
	cursor  int
	presets []string
	build   Builder
	live    Model
	err     error
	width   int
}

func NewMenu(presets []string, build Builder) Menu {
	return Menu{presets: presets, build: build, width: 80}
}

func (m Menu) Init() tea.Cmd { return nil }

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateLive {
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.presets)-1 {
				m.cursor++
			}
		case "enter", " ":
			if len(m.presets) == 0 {
				return m, nil
			}
			live, err := m.build(m.presets[m.cursor])
			if err != nil {
				m.err = err
				return m, nil
			}
			m.live, m.state, m.err = live, stateLive, nil
			return m, m.live.Init()
		}
	}
	return m, nil
}

// Selected is the preset under the cursor.
func (m Menu) Selected() string {
	if len(m.presets) == 0 {
		return ""
	}
	return m.presets[m.cursor]
}

// Live reports whether a preset has been started.
func (m Menu) Live() bool { return m.state == stateLive }

func (m Menu) View() string {
	if m.state == stateLive {
		return m.live.View()
	}
	var b strings.Builder
	h := lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	b.WriteString("\n\n    " + h.Render("SERVOCTL") + "\n    " + subtleStyle.Render("position loop bench") + "\n    " + subtleStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n",
				lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true).Render("▸"),
				lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true).Render(fmt.Sprintf("%-10s", name)),
				lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff")).Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n",
				lipgloss.NewStyle().Foreground(lipgloss.Color("#555566")).Render(fmt.Sprintf("  %-10s", name)),
				lipgloss.NewStyle().Foreground(lipgloss.Color("#444455")).Render(desc)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + statusStyle("fault").Render(m.err.Error()) + "\n")
	}
	key := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
	b.WriteString("\n    " + key.Render("j/k") + subtleStyle.Render(" navigate  ") + key.Render("enter") + subtleStyle.Render(" start  ") + key.Render("q") + subtleStyle.Render(" quit") + "\n")
	return b.String()
}

// RunInteractive opens the preset menu on the simulated rig.
func RunInteractive() error {
	return Run(NewMenu(config.ListPresets(), PresetBuilder))
}
