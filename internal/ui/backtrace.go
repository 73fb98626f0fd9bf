// Package ui renders crash reports interactively.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"faulttrace/internal/crash"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	frameStyle    = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type backtraceModel struct {
	report *crash.Report
	cursor int
	width  int
	done   bool
	depth  progress.Model // gauge for the cursor's depth in the stack
}

// NewBacktraceModel returns a Bubble Tea model browsing a report's frames.
func NewBacktraceModel(r *crash.Report) tea.Model {
	depth := progress.New(progress.WithSolidFill("6"))
	depth.Width = 24
	depth.ShowPercentage = false
	return &backtraceModel{report: r, width: 80, depth: depth}
}

func (m *backtraceModel) Init() tea.Cmd {
	return nil
}

func (m *backtraceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.report.Frames)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m *backtraceModel) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder

	header := fmt.Sprintf("%s: %s in %s", m.report.Kind, m.report.Description, m.report.Machine)
	sb.WriteString(headerStyle.Render(runewidth.Truncate(header, m.width, "...")))
	sb.WriteString("\n\n")

	for i, f := range m.report.Frames {
		line := fmt.Sprintf("#%d %s at %s", i, f.Function, frameLocation(f))
		line = runewidth.Truncate(line, m.width-4, "...")
		if i == m.cursor {
			sb.WriteString("  > " + selectedStyle.Render(line))
		} else {
			sb.WriteString("    " + frameStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	sel := m.report.Frames[m.cursor]
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  frame %06x  return %06x  function %06x\n",
		uint32(sel.FrameAddr), uint32(sel.RetAddr), uint32(sel.FuncAddr)))
	if sel.Display != "" {
		sb.WriteString(fmt.Sprintf("  argument %q\n", sel.Display))
	}

	sb.WriteString("\n")
	ratio := 0.0
	if n := len(m.report.Frames); n > 1 {
		ratio = float64(m.cursor) / float64(n-1)
	}
	sb.WriteString("  depth " + m.depth.ViewAs(ratio))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render("j/k move  q quit"))
	sb.WriteString("\n")
	return sb.String()
}

func frameLocation(f crash.FrameInfo) string {
	if !f.HasLine {
		return f.File
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// Browse runs the interactive viewer until the user quits.
func Browse(r *crash.Report) error {
	if r == nil || len(r.Frames) == 0 {
		return nil
	}
	_, err := tea.NewProgram(NewBacktraceModel(r)).Run()
	return err
}
