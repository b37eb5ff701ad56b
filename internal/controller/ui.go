// Package controller provides output adapters for displaying mutation
// testing progress and results.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "strykr.dev/pkg/strykr/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeEstimate StartMode = iota
	ModeTest
)

// UI is the interface for displaying estimation tables, per-mutant progress,
// and the final score. Implementations can be plain text or interactive.
type UI interface {
	Start(ctx context.Context, mode StartMode) error
	Close(ctx context.Context)
	DisplayEstimation(ctx context.Context, mutants []*m.Mutant) error
	DisplayRunInfo(ctx context.Context, mutantCount, testCount, concurrency int)
	DisplayMutantResult(ctx context.Context, mutant *m.Mutant)
	DisplayResults(ctx context.Context, report m.RunReport) error
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewUI picks the interactive TUI on terminals and the simple printer
// otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}
