package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/ragchat/internal/ingest"
)

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

// fileDoneMsg reports one finished file.
type fileDoneMsg ingest.Progress

// loadDoneMsg ends the run.
type loadDoneMsg struct {
	summary ingest.Summary
	err     error
}

// loadModel is the bubbletea model for a knowledge base load.
type loadModel struct {
	dir      string
	last     ingest.Progress
	chunks   int
	summary  ingest.Summary
	progress progress.Model
	theme    Theme
	dryRun   bool
	done     bool
	quitting bool
	err      error

	cancel func()
}

func newLoadModel(dir string, dryRun bool, cancel func()) loadModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return loadModel{
		dir:      dir,
		progress: prog,
		theme:    defaultTheme,
		dryRun:   dryRun,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m loadModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m loadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The loader stops at the next file or chunk and reports back
			// with loadDoneMsg.
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case fileDoneMsg:
		m.last = ingest.Progress(msg)
		m.chunks += msg.Chunks
		return m, nil

	case loadDoneMsg:
		m.summary = msg.summary
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m loadModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m loadModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.quitting {
		return m.theme.hintStyle().Render("Stopping...") + "\n"
	}

	if m.last.FilesTotal == 0 {
		return m.theme.statusStyle().Render(fmt.Sprintf("Loading %s...", m.dir)) + "\n"
	}

	pct := float64(m.last.FilesDone) / float64(m.last.FilesTotal)
	status := m.theme.statusStyle().Render("[loading]")
	if m.dryRun {
		status = m.theme.statusStyle().Render("[dry run]")
	}

	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d files, %d chunks", m.last.FilesDone, m.last.FilesTotal, m.chunks)
	current := m.theme.hintStyle().Render(m.last.File)

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, current)
}

func (m loadModel) finalView() string {
	if m.err != nil {
		if m.quitting {
			return m.theme.hintStyle().Render("\nLoad cancelled.\n") + summaryText(m.summary, m.dryRun)
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Load failed: %s\n", m.err))
	}

	return m.theme.completedStyle().Render("✓ Completed") + "\n\n" + summaryText(m.summary, m.dryRun)
}

// summaryText formats a load summary for the terminal.
func summaryText(s ingest.Summary, dryRun bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Documents:         %d\n", s.Documents)
	fmt.Fprintf(&b, "  Chunks:            %d\n", s.Chunks)
	fmt.Fprintf(&b, "  Avg chunks/doc:    %.1f\n", s.AverageChunks())
	if !dryRun {
		fmt.Fprintf(&b, "  Stored:            %d\n", s.Stored)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "  Skipped files:     %d\n", s.Skipped)
	}
	if s.FailedChunks > 0 || s.DroppedChunks > 0 {
		fmt.Fprintf(&b, "  Failed chunks:     %d\n", s.FailedChunks)
		fmt.Fprintf(&b, "  Dropped chunks:    %d (%d batches)\n", s.DroppedChunks, s.FailedBatches)
	}
	fmt.Fprintf(&b, "  Duration:          %s\n", s.Duration.Round(10*time.Millisecond))
	return b.String()
}

// runLoadProgress runs a load behind the interactive progress UI. run must
// report every finished file through the callback it is given; cancel must
// stop the context run uses.
func runLoadProgress(run func(report func(ingest.Progress)) (ingest.Summary, error), dir string, dryRun bool, cancel func()) (ingest.Summary, error) {
	p := tea.NewProgram(newLoadModel(dir, dryRun, cancel))

	go func() {
		summary, err := run(func(pr ingest.Progress) {
			p.Send(fileDoneMsg(pr))
		})
		p.Send(loadDoneMsg{summary: summary, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return ingest.Summary{}, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(loadModel)
	if !ok {
		return ingest.Summary{}, nil
	}
	return m.summary, m.err
}
