package controller

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "strykr.dev/pkg/strykr/internal/model"
)

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ StartMode) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	_ = ctx.Err()
}

// DisplayEstimation prints a per-file mutation count table.
func (s *SimpleUI) DisplayEstimation(ctx context.Context, mutants []*m.Mutant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stats := buildFileStats(mutants)
	s.printf("\n%s", renderEstimationTable(stats, len(mutants)))

	return nil
}

// DisplayRunInfo announces the upcoming dispatch.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, mutantCount, testCount, concurrency int) {
	if ctx.Err() != nil {
		return
	}

	s.printf("Testing %d mutants against %d tests (%d workers)\n", mutantCount, testCount, concurrency)
}

// DisplayMutantResult prints one verdict line.
func (s *SimpleUI) DisplayMutantResult(ctx context.Context, mutant *m.Mutant) {
	if ctx.Err() != nil || mutant == nil {
		return
	}

	marker := "✗"
	if mutant.Status == m.StatusKilled || mutant.Status == m.StatusTimeout {
		marker = "✓"
	}

	s.printf("  %s #%d %s:%d %s - %s\n",
		marker, mutant.ID, mutant.File, mutant.Span.StartLine, mutant.Mutation.DisplayName, mutant.Status)
}

// DisplayResults prints the totals table and the final score.
func (s *SimpleUI) DisplayResults(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Status", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	table.Append([]string{"Killed", fmt.Sprintf("%d", report.Totals.Killed)})
	table.Append([]string{"Timeout", fmt.Sprintf("%d", report.Totals.Timeout)})
	table.Append([]string{"Survived", fmt.Sprintf("%d", report.Totals.Survived)})
	table.Append([]string{"No coverage", fmt.Sprintf("%d", report.Totals.NoCoverage)})
	table.Append([]string{"Compile error", fmt.Sprintf("%d", report.Totals.CompileError)})
	table.Append([]string{"Ignored", fmt.Sprintf("%d", report.Totals.Ignored)})
	table.SetFooter([]string{"Score", formatScore(report.Score)})
	table.Render()

	s.printf("\n%s\n", buf.String())

	for _, mutant := range report.Mutants {
		if mutant.Status != m.StatusSurvived || mutant.Diff == "" {
			continue
		}

		s.printf("survived mutant #%d (%s):\n%s\n", mutant.ID, mutant.DisplayName, mutant.Diff)
	}

	return nil
}

func formatScore(score float64) string {
	if math.IsNaN(score) {
		return "n/a"
	}

	return fmt.Sprintf("%.1f%%", score*100)
}

type fileStat struct {
	path  string
	count int
}

func buildFileStats(mutants []*m.Mutant) []fileStat {
	info := make(map[string]int)

	for _, mutant := range mutants {
		info[string(mutant.File)]++
	}

	stats := make([]fileStat, 0, len(info))
	for path, count := range info {
		stats = append(stats, fileStat{path: path, count: count})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].path < stats[j].path })

	return stats
}

func renderEstimationTable(stats []fileStat, totalMutations int) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Path", "Mutations"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, stat := range stats {
		table.Append([]string{stat.path, fmt.Sprintf("%d", stat.count)})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(stats)),
		fmt.Sprintf("%d", totalMutations),
	})

	table.Render()

	return buf.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
