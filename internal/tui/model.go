// Package tui is a terminal view for a playback session. It renders one
// progress bar per segment and the steps revealed so far in the active
// segment, and maps key presses onto session commands.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stwalsh4118/demoreel/internal/playback"
	"github.com/stwalsh4118/demoreel/internal/script"
	"github.com/stwalsh4118/demoreel/internal/session"
)

const (
	commandTimeout = 2 * time.Second
	defaultWidth   = 80
	minBarWidth    = 10
	labelWidth     = 24
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cdd6f4"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	barFillStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475a"))
	stepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 2)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Player accepts playback commands. *session.Session satisfies it.
type Player interface {
	Execute(ctx context.Context, cmd session.Command, index int) (playback.State, error)
}

type eventMsg session.Event

type streamClosedMsg struct{}

type commandDoneMsg struct {
	cmd session.Command
	err error
}

// Model is the bubbletea model for a playback session
type Model struct {
	title    string
	timeline *script.Timeline
	player   Player
	events   <-chan session.Event
	keys     keyMap

	state    playback.State
	segment  int
	fraction float64
	revealed []session.StepPayload
	err      error
	width    int
	quitting bool
}

// New creates a model that sends commands to player and renders the events
// read from events
func New(title string, timeline *script.Timeline, player Player, events <-chan session.Event) Model {
	return Model{
		title:    title,
		timeline: timeline,
		player:   player,
		events:   events,
		keys:     newKeyMap(),
		state:    playback.State{Status: playback.StatusIdle, SegmentCount: timeline.Len()},
		width:    defaultWidth,
	}
}

// Init starts reading the event stream
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles key presses, stream events and command results
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(session.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case commandDoneMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.PlayPause):
		if m.state.Status == playback.StatusPlaying {
			return m, m.execute(session.CommandPause, 0)
		}
		return m, m.execute(session.CommandPlay, 0)
	case key.Matches(msg, m.keys.Restart):
		return m, m.execute(session.CommandRestart, 0)
	case key.Matches(msg, m.keys.Previous):
		return m, m.execute(session.CommandPrevious, 0)
	case key.Matches(msg, m.keys.Next):
		return m, m.execute(session.CommandNext, 0)
	case key.Matches(msg, m.keys.Jump):
		index := int(msg.String()[0] - '1')
		if index >= m.timeline.Len() {
			m.err = fmt.Errorf("no segment %d: script has %d", index+1, m.timeline.Len())
			return m, nil
		}
		return m, m.execute(session.CommandJump, index)
	}
	return m, nil
}

func (m Model) execute(cmd session.Command, index int) tea.Cmd {
	player := m.player
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := player.Execute(ctx, cmd, index)
		return commandDoneMsg{cmd: cmd, err: err}
	}
}

// apply folds one session event into the view state
func (m *Model) apply(ev session.Event) {
	switch ev.Type {
	case session.EventState:
		if ev.State != nil {
			m.state = *ev.State
			m.fraction = ev.State.Fraction
			if ev.State.SegmentIndex != m.segment {
				m.segment = ev.State.SegmentIndex
				m.revealed = nil
			}
		}
	case session.EventSegment:
		// Every activation starts the segment over, including a jump to itself
		m.segment = ev.SegmentIndex
		m.fraction = 0
		m.revealed = nil
		if ev.State != nil {
			m.state = *ev.State
		}
	case session.EventProgress:
		if ev.SegmentIndex == m.segment {
			m.fraction = ev.Fraction
		}
	case session.EventStep:
		if ev.SegmentIndex == m.segment && ev.Step != nil {
			m.revealed = append(m.revealed, *ev.Step)
		}
	}
}

// View renders the player
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	barWidth := m.width - labelWidth - 10
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	for i, seg := range m.timeline.Segments() {
		style := inactiveStyle
		marker := "  "
		if i == m.segment {
			style = activeStyle
			marker = "> "
		}
		label := fmt.Sprintf("%s%d %s", marker, i+1, seg.Label())
		b.WriteString(style.Render(padRight(label, labelWidth)))
		b.WriteString(" ")
		b.WriteString(renderBar(m.segmentFraction(i), barWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(m.revealed) == 0 {
		b.WriteString(inactiveStyle.Render("  (no steps yet)"))
		b.WriteString("\n")
	}
	for _, step := range m.revealed {
		b.WriteString(stepStyle.Render(fmt.Sprintf("  • %-12s %s", step.Kind, step.ID)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("  " + errorText(m.err)))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render(m.helpLine()))
	b.WriteString("\n")
	return b.String()
}

// segmentFraction is the bar fill for segment i: finished segments are full,
// upcoming ones empty
func (m Model) segmentFraction(i int) float64 {
	switch {
	case i < m.segment:
		return 1
	case i == m.segment:
		return m.fraction
	default:
		return 0
	}
}

func (m Model) statusLine() string {
	elapsed := time.Duration(m.state.ElapsedMillis) * time.Millisecond
	duration := time.Duration(m.state.DurationMillis) * time.Millisecond
	return fmt.Sprintf("%s  segment %d/%d  %s / %s  steps %d/%d",
		m.state.Status, m.segment+1, m.timeline.Len(),
		elapsed.Truncate(100*time.Millisecond), duration,
		m.state.StepsFired, m.state.StepCount)
}

func (m Model) helpLine() string {
	parts := make([]string, 0, len(m.keys.bindings()))
	for _, b := range m.keys.bindings() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

func renderBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return barFillStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func errorText(err error) string {
	if errors.Is(err, session.ErrSessionClosed) {
		return "session closed"
	}
	return err.Error()
}
