// Package tui is the interactive front end: it renders the sample
// history and link status, and feeds operator adjustments into the
// shared configuration store. The control loop itself renders nothing
// and never blocks on the display.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/proforce-air/pidlink/internal/config"
	"github.com/proforce-air/pidlink/internal/loop"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// adjustment steps per keypress
const (
	stepKp       = 1.0
	stepKi       = 0.1
	stepKd       = 0.5
	stepSetpoint = 0.5
	stepLimit    = 1.0
)

// StatusMsg carries the loop status published after each tick.
type StatusMsg struct {
	Status loop.Status
}

type tickMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type Model struct {
	store   *loop.Store
	history *loop.History
	preset  config.Preset

	status loop.Status
	width  int
	height int
}

func New(store *loop.Store, history *loop.History, preset config.Preset) Model {
	return Model{
		store:   store,
		history: history,
		preset:  preset,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd { return frame() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case StatusMsg:
		m.status = msg.Status
		return m, nil
	case tickMsg:
		return m, frame()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := m.store.Current()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.store.SetEmergencyStop(!cfg.EmergencyStop)
	case "r":
		m.store.RequestReset()
	case "c":
		m.store.RequestConnect()
	case "P":
		m.store.SetGains(cfg.Kp+stepKp, cfg.Ki, cfg.Kd)
	case "p":
		m.store.SetGains(max(0, cfg.Kp-stepKp), cfg.Ki, cfg.Kd)
	case "I":
		m.store.SetGains(cfg.Kp, cfg.Ki+stepKi, cfg.Kd)
	case "i":
		m.store.SetGains(cfg.Kp, max(0, cfg.Ki-stepKi), cfg.Kd)
	case "D":
		m.store.SetGains(cfg.Kp, cfg.Ki, cfg.Kd+stepKd)
	case "d":
		m.store.SetGains(cfg.Kp, cfg.Ki, max(0, cfg.Kd-stepKd))
	case "up":
		m.store.SetSetpoint(min(m.preset.SetpointMax, cfg.Setpoint+stepSetpoint))
	case "down":
		m.store.SetSetpoint(max(m.preset.SetpointMin, cfg.Setpoint-stepSetpoint))
	case "L":
		m.store.SetOutputLimit(cfg.OutputLimit + stepLimit)
	case "l":
		m.store.SetOutputLimit(cfg.OutputLimit - stepLimit)
	}
	return m, nil
}

func (m Model) View() string {
	cfg := m.store.Current()
	samples := m.history.Snapshot()

	var b strings.Builder
	b.WriteString(cyan.Render("pidlink") + "  " + m.stateBadge(cfg) + "  " + m.linkBadge() + "\n")
	if m.status.LastErr != "" {
		b.WriteString(yellow.Render("! "+m.status.LastErr) + "\n")
	}
	b.WriteString("\n")

	plotWidth := m.width - 10
	if plotWidth < 20 {
		plotWidth = 20
	}

	b.WriteString(m.plot(samples, plotWidth, func(s loop.Sample) float64 { return s.Measurement },
		fmt.Sprintf("measurement (%s), setpoint %.2f", m.preset.Unit, cfg.Setpoint)))
	b.WriteString(m.plot(samples, plotWidth, func(s loop.Sample) float64 { return s.Control },
		fmt.Sprintf("control output, limit ±%.1f", cfg.OutputLimit)))
	b.WriteString(m.plot(samples, plotWidth, func(s loop.Sample) float64 { return s.Err },
		"error"))

	b.WriteString("\n")
	b.WriteString(white.Render(fmt.Sprintf("kp %.1f  ki %.2f  kd %.1f  setpoint %.2f  limit %.1f",
		cfg.Kp, cfg.Ki, cfg.Kd, cfg.Setpoint, cfg.OutputLimit)) + "\n")
	if len(m.status.Characteristics) > 0 {
		b.WriteString(dim.Render("characteristics: "+strings.Join(m.status.Characteristics, " ")) + "\n")
	}
	b.WriteString(dim.Render("P/p I/i D/d gains · ↑/↓ setpoint · L/l limit · space e-stop · r reset · c connect · q quit") + "\n")
	return b.String()
}

func (m Model) stateBadge(cfg loop.Config) string {
	if cfg.EmergencyStop {
		return red.Render("EMERGENCY STOP")
	}
	switch m.status.State {
	case loop.StateRunning:
		if m.status.Degraded {
			return yellow.Render("running (degraded)")
		}
		return green.Render("running")
	case loop.StateEmergencyStopped:
		return red.Render("EMERGENCY STOP")
	default:
		return dim.Render("idle")
	}
}

func (m Model) linkBadge() string {
	if m.status.Connected {
		return green.Render("link up")
	}
	return dim.Render("no link (simulation)")
}

func (m Model) plot(samples []loop.Sample, width int, pick func(loop.Sample) float64, caption string) string {
	if len(samples) < 2 {
		return dim.Render("(waiting for samples: "+caption+")") + "\n\n"
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = pick(s)
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(5),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
	return graph + "\n\n"
}
