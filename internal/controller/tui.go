package controller

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "strykr.dev/pkg/strykr/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	killedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	survivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// TUI implements UI with a Bubble Tea progress display.
type TUI struct {
	output  io.Writer
	program *tea.Program

	mu      sync.Mutex
	started bool
	wait    chan struct{}
}

// NewTUI creates a new TUI writing to output.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

type runInfoMsg struct {
	mutants     int
	tests       int
	concurrency int
}

type mutantResultMsg struct {
	mutant *m.Mutant
}

type finishedMsg struct{}

// Start launches the interactive program for test mode. Estimation mode
// renders static tables, no program needed.
func (t *TUI) Start(ctx context.Context, mode StartMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if mode != ModeTest {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.program = tea.NewProgram(newRunModel(), tea.WithOutput(t.output))
	t.wait = make(chan struct{})
	t.started = true

	go func() {
		defer close(t.wait)

		if _, err := t.program.Run(); err != nil {
			fmt.Fprintf(t.output, "tui error: %v\n", err)
		}
	}()

	return nil
}

// Close stops the program and waits for the final frame.
func (t *TUI) Close(ctx context.Context) {
	t.mu.Lock()
	program, wait, started := t.program, t.wait, t.started
	t.started = false
	t.mu.Unlock()

	if !started || program == nil {
		return
	}

	program.Send(finishedMsg{})
	program.Quit()

	select {
	case <-wait:
	case <-ctx.Done():
	}
}

// DisplayEstimation prints the same table as the simple UI; estimation
// output is short enough that interactivity adds nothing.
func (t *TUI) DisplayEstimation(ctx context.Context, mutants []*m.Mutant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stats := buildFileStats(mutants)
	fmt.Fprintf(t.output, "\n%s", renderEstimationTable(stats, len(mutants)))

	return nil
}

// DisplayRunInfo seeds the progress model with the work totals.
func (t *TUI) DisplayRunInfo(ctx context.Context, mutantCount, testCount, concurrency int) {
	if ctx.Err() != nil {
		return
	}

	t.send(runInfoMsg{mutants: mutantCount, tests: testCount, concurrency: concurrency})
}

// DisplayMutantResult advances the progress bar.
func (t *TUI) DisplayMutantResult(ctx context.Context, mutant *m.Mutant) {
	if ctx.Err() != nil || mutant == nil {
		return
	}

	t.send(mutantResultMsg{mutant: mutant})
}

// DisplayResults renders the final summary after the program has stopped.
func (t *TUI) DisplayResults(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	score := "n/a"
	if !math.IsNaN(report.Score) {
		score = fmt.Sprintf("%.1f%%", report.Score*100)
	}

	fmt.Fprintf(t.output, "\n%s\n", titleStyle.Render("mutation score: "+score))
	fmt.Fprintf(t.output, "%s %d  %s %d  %s\n",
		killedStyle.Render("killed:"), report.Totals.Killed+report.Totals.Timeout,
		survivedStyle.Render("survived:"), report.Totals.Survived,
		dimStyle.Render(fmt.Sprintf("(no coverage: %d, compile errors: %d, ignored: %d)",
			report.Totals.NoCoverage, report.Totals.CompileError, report.Totals.Ignored)))

	return nil
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program, started := t.program, t.started
	t.mu.Unlock()

	if started && program != nil {
		program.Send(msg)
	}
}

// runModel is the Bubble Tea model for the dispatch phase.
type runModel struct {
	bar      progress.Model
	total    int
	done     int
	killed   int
	survived int
	other    int
	recent   []string
	finished bool
}

func newRunModel() runModel {
	return runModel{bar: progress.New(progress.WithDefaultGradient())}
}

// Init implements tea.Model.
func (rm runModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return rm, tea.Quit
		}
	case tea.WindowSizeMsg:
		rm.bar.Width = msg.Width - 8
	case runInfoMsg:
		rm.total = msg.mutants
	case mutantResultMsg:
		rm.done++

		switch msg.mutant.Status {
		case m.StatusKilled, m.StatusTimeout:
			rm.killed++
		case m.StatusSurvived:
			rm.survived++
		case m.StatusPending, m.StatusIgnored, m.StatusCompileError, m.StatusNoCoverage:
			rm.other++
		}

		rm.recent = append(rm.recent, fmt.Sprintf("#%d %s:%d %s - %s",
			msg.mutant.ID, msg.mutant.File, msg.mutant.Span.StartLine,
			msg.mutant.Mutation.DisplayName, msg.mutant.Status))
		if len(rm.recent) > 8 {
			rm.recent = rm.recent[len(rm.recent)-8:]
		}
	case finishedMsg:
		rm.finished = true
	}

	return rm, nil
}

// View implements tea.Model.
func (rm runModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("strykr - mutation testing"))
	b.WriteString("\n\n")

	percent := 0.0
	if rm.total > 0 {
		percent = float64(rm.done) / float64(rm.total)
	}

	b.WriteString(rm.bar.ViewAs(percent))
	fmt.Fprintf(&b, "\n%d/%d  %s %d  %s %d\n",
		rm.done, rm.total,
		killedStyle.Render("killed"), rm.killed,
		survivedStyle.Render("survived"), rm.survived)

	for _, line := range rm.recent {
		b.WriteString(dimStyle.Render("  " + line))
		b.WriteString("\n")
	}

	if rm.finished {
		b.WriteString("\ndone\n")
	}

	return b.String()
}
