// Package tui shows live pipeline progress while a model runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type stageStatus int

const (
	statusPending stageStatus = iota
	statusRunning
	statusDone
	statusFailed
)

// StageMsg reports a stage transition into the program.
type StageMsg struct {
	Name    string
	Index   int
	Total   int
	Done    bool
	Elapsed time.Duration
	Err     error
}

// FinishedMsg ends the program once the run completes.
type FinishedMsg struct{ Err error }

type stageRow struct {
	name    string
	status  stageStatus
	elapsed time.Duration
}

// Model is the bubbletea model for a pipeline run.
type Model struct {
	title  string
	events <-chan tea.Msg
	rows   []stageRow
	err    error
	done   bool
}

// NewModel builds a progress view over the named stages, fed by events.
func NewModel(title string, stages []string, events <-chan tea.Msg) Model {
	rows := make([]stageRow, len(stages))
	for i, name := range stages {
		rows[i] = stageRow{name: name}
	}
	return Model{title: title, events: events, rows: rows}
}

func (m Model) next() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m Model) Init() tea.Cmd { return m.next() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case StageMsg:
		if msg.Index < len(m.rows) {
			row := &m.rows[msg.Index]
			switch {
			case msg.Err != nil:
				row.status = statusFailed
			case msg.Done:
				row.status = statusDone
				row.elapsed = msg.Elapsed
			default:
				row.status = statusRunning
			}
		}
		return m, m.next()
	case FinishedMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n\n")
	for _, row := range m.rows {
		switch row.status {
		case statusDone:
			b.WriteString(doneStyle.Render(fmt.Sprintf("  ✓ %-40s %s", row.name, row.elapsed.Round(time.Millisecond))))
		case statusRunning:
			b.WriteString(runningStyle.Render(fmt.Sprintf("  › %s", row.name)))
		case statusFailed:
			b.WriteString(failedStyle.Render(fmt.Sprintf("  ✗ %s", row.name)))
		default:
			b.WriteString(pendingStyle.Render(fmt.Sprintf("    %s", row.name)))
		}
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n" + failedStyle.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

// Observer adapts kernel notifications onto the event channel. Done is
// closed when the view stops listening; sends after that are abandoned
// so a quit view never blocks the run goroutine.
type Observer struct {
	Events chan<- tea.Msg
	Done   <-chan struct{}
}

func (o Observer) send(msg tea.Msg) {
	select {
	case o.Events <- msg:
	case <-o.Done:
	}
}

func (o Observer) UnitStart(name string, index, total int) {
	o.send(StageMsg{Name: name, Index: index, Total: total})
}

func (o Observer) UnitDone(name string, index, total int, elapsed time.Duration, err error) {
	o.send(StageMsg{Name: name, Index: index, Total: total, Done: true, Elapsed: elapsed, Err: err})
}
