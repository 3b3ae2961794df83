// Package tui provides a terminal dashboard over a running
// multi-engine timecode host: per-engine routing status with an
// active/inactive marker, and the input/output controls spec.md §4.9
// describes as a GUI surface. It does not show device ownership.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/host"
)

var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")
	alertRed   = lipgloss.Color("#FF0000")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(acidGreen).
				Bold(true).
				PaddingLeft(2)

	activeStyle = lipgloss.NewStyle().Foreground(acidYellow)
	errorStyle  = lipgloss.NewStyle().Foreground(alertRed).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(acidGreen).Padding(1, 2)
)

const tickInterval = 200 * time.Millisecond

// outputSlot indexes the four per-engine outputs the dashboard can
// toggle and offset.
type outputSlot int

const (
	slotMTC outputSlot = iota
	slotArtNet
	slotLTC
	slotAudio
)

func (s outputSlot) label() string {
	switch s {
	case slotMTC:
		return "MTC out"
	case slotArtNet:
		return "Art-Net out"
	case slotLTC:
		return "LTC out"
	case slotAudio:
		return "Audio thru"
	default:
		return "?"
	}
}

var inputOrder = []engine.InputSource{engine.InputMTC, engine.InputArtNet, engine.InputSystemTime, engine.InputLTC}

func inputLabel(s engine.InputSource) string {
	switch s {
	case engine.InputMTC:
		return "MTC"
	case engine.InputArtNet:
		return "Art-Net"
	case engine.InputSystemTime:
		return "System clock"
	case engine.InputLTC:
		return "LTC"
	default:
		return "?"
	}
}

// Model is the dashboard's bubbletea model; it holds no engine state of
// its own, only a live pointer into the host and which row/slot the
// cursor is on.
type Model struct {
	host           *host.Host
	selectedEngine int
	selectedSlot   outputSlot
	err            error
	width          int
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// New builds a dashboard Model over h.
func New(h *host.Host) Model {
	return Model{host: h}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.host.Tick()
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	engines := m.host.Engines()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.selectedEngine > 0 {
			m.selectedEngine--
		}
	case "down", "j":
		if m.selectedEngine < len(engines)-1 {
			m.selectedEngine++
		}
	case "tab":
		m.selectedSlot = (m.selectedSlot + 1) % 4
	case "i":
		m.cycleActiveInput(engines)
	case "e":
		m.toggleSelectedOutput(engines)
	case "+", "=":
		m.nudgeOffset(engines, 1)
	case "-", "_":
		m.nudgeOffset(engines, -1)
	case "a":
		if _, err := m.host.AddEngine(); err != nil {
			m.err = err
		}
	case "r":
		if err := m.host.RemoveEngine(m.selectedEngine); err != nil {
			m.err = err
		} else if m.selectedEngine >= len(m.host.Engines()) {
			m.selectedEngine = len(m.host.Engines()) - 1
		}
	}
	return m, nil
}

func (m *Model) cycleActiveInput(engines []*engine.Engine) {
	if m.selectedEngine >= len(engines) {
		return
	}
	e := engines[m.selectedEngine]
	for i, s := range inputOrder {
		if s == e.ActiveInput {
			e.SetActiveInput(inputOrder[(i+1)%len(inputOrder)])
			return
		}
	}
	e.SetActiveInput(inputOrder[0])
}

func (m *Model) selectedOutput(e *engine.Engine) *engine.Output {
	switch m.selectedSlot {
	case slotMTC:
		return &e.MTCOutput
	case slotArtNet:
		return &e.ArtNetOutput
	case slotLTC:
		return &e.LTCOutput
	case slotAudio:
		return &e.AudioOutput
	default:
		return &e.MTCOutput
	}
}

func (m *Model) toggleSelectedOutput(engines []*engine.Engine) {
	if m.selectedEngine >= len(engines) {
		return
	}
	out := m.selectedOutput(engines[m.selectedEngine])
	out.Enabled = !out.Enabled
}

func (m *Model) nudgeOffset(engines []*engine.Engine, delta int) {
	if m.selectedEngine >= len(engines) {
		return
	}
	out := m.selectedOutput(engines[m.selectedEngine])
	offset := out.Offset + delta
	switch {
	case offset < -30:
		offset = -30
	case offset > 30:
		offset = 30
	}
	out.Offset = offset
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(" SUPER TIMECODE CONVERTER "))
	s.WriteString("\n\n")

	engines := m.host.Engines()
	primary := m.host.PrimaryIndex()
	for i, e := range engines {
		s.WriteString(m.renderEngine(i, e, i == primary))
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()))
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("↑/↓ engine · tab output slot · i cycle input · e toggle · +/- offset · a add · r remove · q quit"))
	return s.String()
}

func (m Model) renderEngine(index int, e *engine.Engine, primary bool) string {
	t, active := e.CurrentTimecode()
	marker := "●"
	if !active {
		marker = "○"
	}
	header := fmt.Sprintf("%s ENGINE %d", marker, index+1)
	if primary {
		header += " (primary)"
	}

	style := rowStyle
	if index == m.selectedEngine {
		style = selectedRowStyle
	}

	var b strings.Builder
	b.WriteString(style.Render(header))
	b.WriteString("\n")
	b.WriteString(rowStyle.Render(fmt.Sprintf("  input: %-12s fps: %-8s  tc: %s", inputLabel(e.ActiveInput), e.FPS.String(), t.String())))
	b.WriteString("\n")
	b.WriteString(rowStyle.Render(fmt.Sprintf("  %s  %s  %s  %s",
		renderOutput(index, m, slotMTC, e.MTCOutput, e.MTCOut().Status().Text()),
		renderOutput(index, m, slotArtNet, e.ArtNetOutput, e.ArtNetOut().Status().Text()),
		renderOutput(index, m, slotLTC, e.LTCOutput, e.LTCOut().Status().Text()),
		renderOutput(index, m, slotAudio, e.AudioOutput, e.AudioThru().Status().Text()))))
	return boxStyle.Render(b.String())
}

func renderOutput(engineIndex int, m Model, slot outputSlot, out engine.Output, statusText string) string {
	state := "off"
	if out.Enabled {
		state = "on"
	}
	text := fmt.Sprintf("%s:%s(%+d)[%s]", slot.label(), state, out.Offset, statusText)
	if engineIndex == m.selectedEngine && slot == m.selectedSlot {
		return activeStyle.Render(text)
	}
	return text
}

// Run starts the dashboard over h and blocks until the user quits.
func Run(h *host.Host) error {
	p := tea.NewProgram(New(h), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
