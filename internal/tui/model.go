// SPDX-License-Identifier: MIT
/*
Package tui is the live tuning screen. It renders the tracker telemetry
at ~60 fps and routes keystrokes into the parameter stores; it never
touches the audio callback directly.
*/
package tui

import (
	"fmt"
	"strings"
	"time"

	"beatclock/internal/clock"
	"beatclock/internal/effects"
	"beatclock/internal/params"

	"github.com/charmbracelet/bubbles/key"
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

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F2C94C")).
			Bold(true)
)

const tickInterval = 60 * time.Millisecond

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Coarse key.Binding
	Fine   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Coarse: key.NewBinding(key.WithKeys("left", "right", "-", "=")),
	Fine:   key.NewBinding(key.WithKeys("shift+left", "shift+right", "_", "+")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// parameter is one tunable row: a label, a value renderer, and the two
// step sizes routed into its store.
type parameter struct {
	name   string
	value  func() string
	adjust func(delta float64)
	coarse float64
	fine   float64
}

// Model is the bubbletea model for both run modes. In clock mode the
// rows tune the detector store; in effect mode they tune the effects
// chain and the meters show the pre/post chain peaks instead.
type Model struct {
	title     string
	inputName string
	rows      []parameter
	selected  int
	width     int
	height    int

	telem      *clock.Telemetry
	sampleRate float64
	status     clock.Status
	peak       float32

	fx    *effects.Chain
	fxIn  float32
	fxOut float32
}

// NewClockModel builds the detector tuning screen.
func NewClockModel(store *params.Store, telem *clock.Telemetry, sampleRate float64, inputName string) Model {
	return Model{
		title:      "beatclock",
		inputName:  inputName,
		telem:      telem,
		sampleRate: sampleRate,
		rows: []parameter{
			{
				name:   "rising threshold",
				value:  func() string { return fmt.Sprintf("%+7.2f dB", store.RisingDB()) },
				adjust: store.StepRisingDB,
				coarse: 1.0,
				fine:   0.1,
			},
			{
				name:   "falling threshold",
				value:  func() string { return fmt.Sprintf("%+7.2f dB", store.FallingDB()) },
				adjust: store.StepFallingDB,
				coarse: 1.0,
				fine:   0.1,
			},
			{
				name:   "refractory window",
				value:  func() string { return fmt.Sprintf("%7.1f ms", store.RefractoryMS()) },
				adjust: store.StepRefractoryMS,
				coarse: 10.0,
				fine:   1.0,
			},
			{
				name:   "warm-up beats",
				value:  func() string { return fmt.Sprintf("%7d", store.WarmupBeats()) },
				adjust: func(delta float64) { store.StepWarmupBeats(int64(delta)) },
				coarse: 1.0,
				fine:   1.0,
			},
		},
	}
}

// NewEffectModel builds the effects tuning screen.
func NewEffectModel(fx *effects.Chain, telem *clock.Telemetry, sampleRate float64, inputName string) Model {
	store := fx.Store()
	return Model{
		title:      "beatclock · effect",
		inputName:  inputName,
		telem:      telem,
		sampleRate: sampleRate,
		fx:         fx,
		rows: []parameter{
			{
				name:   "low-pass filter steepness",
				value:  func() string { return fmt.Sprintf("%7.2f", store.Steepness()) },
				adjust: store.StepSteepness,
				coarse: 0.1,
				fine:   0.01,
			},
			{
				name:   "compressor ratio",
				value:  func() string { return fmt.Sprintf("%7.2f", store.Ratio()) },
				adjust: store.StepRatio,
				coarse: 0.1,
				fine:   0.01,
			},
			{
				name:   "compressor threshold",
				value:  func() string { return fmt.Sprintf("%+7.2f dB", store.ThresholdDB()) },
				adjust: store.StepThresholdDB,
				coarse: 0.1,
				fine:   0.01,
			},
			{
				name:   "makeup gain",
				value:  func() string { return fmt.Sprintf("%+7.2f dB", store.MakeupDB()) },
				adjust: store.StepMakeupDB,
				coarse: 0.1,
				fine:   0.01,
			},
		},
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles keystrokes and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.telem != nil {
			m.status = m.telem.Snapshot(m.sampleRate)
			m.peak = m.telem.TakePeak()
		}
		if m.fx != nil {
			m.fxIn = m.fx.TakeInputPeak()
			m.fxOut = m.fx.TakeOutputPeak()
		}
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}

		case key.Matches(msg, keys.Down):
			if m.selected < len(m.rows)-1 {
				m.selected++
			}

		case key.Matches(msg, keys.Fine):
			m.step(msg.String(), true)

		case key.Matches(msg, keys.Coarse):
			m.step(msg.String(), false)
		}
	}

	return m, nil
}

func (m *Model) step(keyName string, fine bool) {
	row := m.rows[m.selected]
	delta := row.coarse
	if fine {
		delta = row.fine
	}
	switch keyName {
	case "left", "shift+left", "-", "_":
		row.adjust(-delta)
	case "right", "shift+right", "=", "+":
		row.adjust(delta)
	}
}

// View renders the full screen.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	if m.inputName != "" {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("  %s", m.inputName)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderMeters())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("Parameters:"))
	sb.WriteString("\n")
	sb.WriteString(m.renderRows())
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("↑/↓: select · ←/→: adjust · shift+←/→: fine · q: quit"))

	return sb.String()
}

func (m Model) barWidth() int {
	w := m.width - 28
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	return w
}

func renderBar(amplitude float32, width int) string {
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude > 1 {
		amplitude = 1
	}
	full := int(amplitude * float32(width))
	return barStyle.Render(strings.Repeat("█", full)) + strings.Repeat(" ", width-full)
}

func (m Model) renderMeters() string {
	var sb strings.Builder
	w := m.barWidth()

	if m.fx != nil {
		sb.WriteString(fmt.Sprintf("input amplitude:  %1.4f %s\n", m.fxIn, renderBar(m.fxIn, w)))
		sb.WriteString(fmt.Sprintf("output amplitude: %1.4f %s\n", m.fxOut, renderBar(m.fxOut, w)))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("input amplitude:  %1.4f %s\n", m.peak, renderBar(m.peak, w)))
	return sb.String()
}

func (m Model) renderStatus() string {
	if m.fx != nil {
		return ""
	}

	state := "waiting"
	if m.status.Active {
		state = activeStyle.Render("beat")
	}

	bpm := "--"
	if m.status.BPM > 0 {
		bpm = fmt.Sprintf("%.1f", m.status.BPM)
	}

	return fmt.Sprintf("tempo: %s BPM · beats: %d · pulses: %d · state: %s\n",
		bpm, m.status.Beats, m.status.Pulses, state)
}

func (m Model) renderRows() string {
	var sb strings.Builder
	for i, row := range m.rows {
		line := fmt.Sprintf("  %s  %s", row.value(), row.name)
		if i == m.selected {
			line = highlightStyle.Render("▶" + line[1:])
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run blocks in the alt screen until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
