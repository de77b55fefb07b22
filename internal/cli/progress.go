package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// errInterrupted is returned when the user quits while a job is running.
var errInterrupted = errors.New("interrupted")

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status).Bold(true)
}

// snapshotMsg carries the next job snapshot from the subscription.
type snapshotMsg service.JobSnapshot

// streamClosedMsg means the subscription ended.
type streamClosedMsg struct{}

// progressModel is the bubbletea model for one stage job.
type progressModel struct {
	updates  <-chan service.JobSnapshot
	job      service.JobSnapshot
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

func newProgressModel(job service.JobSnapshot, updates <-chan service.JobSnapshot) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		updates:  updates,
		job:      job,
		progress: prog,
		theme:    defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.progress.Init(),
	)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case snapshotMsg:
		m.job = service.JobSnapshot(msg)
		if m.job.Status.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf("\n%s interrupted.\n", m.job.Stage.Title()))
	}
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	bar := m.progress.ViewAs(float64(m.job.Progress) / 100)
	hint := m.theme.hintStyle().Render("Press q to stop")
	return fmt.Sprintf("%s %s %s %3d%%\n%s\n", m.job.Stage.Title(), status, bar, m.job.Progress, hint)
}

func (m progressModel) finalView() string {
	return renderOutcome(m.theme, m.job)
}

// renderOutcome is the one-line summary printed when a job ends.
func renderOutcome(t Theme, s service.JobSnapshot) string {
	switch {
	case s.Status == service.JobStatusFailed:
		return t.errorStyle().Render(fmt.Sprintf("✗ %s failed: %s", s.Stage.Title(), s.Error)) + "\n"
	case s.Discarded:
		return t.hintStyle().Render(fmt.Sprintf("%s result discarded", s.Stage.Title())) + "\n"
	}
	return t.completedStyle().Render(fmt.Sprintf("✓ %s", s.Stage.Title())) +
		fmt.Sprintf("  %d entries in %s\n", s.Entries, s.Duration.Round(10*time.Millisecond))
}

func waitForSnapshot(ch <-chan service.JobSnapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

// RunJobProgress shows an interactive progress bar until job finishes.
// It returns errInterrupted if the user quits first.
func RunJobProgress(job *service.Job) error {
	updates, cancel := job.Subscribe()
	defer cancel()

	p := tea.NewProgram(newProgressModel(job.Snapshot(), updates))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(progressModel); ok && m.quitting {
		return errInterrupted
	}
	<-job.Done()
	return nil
}

// printJobProgress is the non-interactive fallback: one line per
// progress change, then the outcome.
func printJobProgress(w io.Writer, job *service.Job) {
	updates, cancel := job.Subscribe()
	defer cancel()

	last := -1
	for snap := range updates {
		if snap.Status.Terminal() || snap.Progress == last {
			continue
		}
		last = snap.Progress
		fmt.Fprintf(w, "%s: %s %d%%\n", snap.Stage.Title(), snap.Status, snap.Progress)
	}
	<-job.Done()
	fmt.Fprint(w, renderOutcome(plainTheme, job.Snapshot()))
}

// plainTheme renders without colors for pipes and files.
var plainTheme = Theme{}
