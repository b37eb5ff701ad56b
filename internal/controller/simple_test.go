package controller

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	return cmd, out
}

func TestSimpleUIDisplayEstimation(t *testing.T) {
	t.Parallel()

	cmd, out := newTestCmd()
	ui := NewSimpleUI(cmd)

	mutants := []*m.Mutant{
		{ID: 0, File: "calc.go"},
		{ID: 1, File: "calc.go"},
		{ID: 2, File: "util.go"},
	}

	require.NoError(t, ui.DisplayEstimation(context.Background(), mutants))

	rendered := out.String()
	assert.Contains(t, rendered, "calc.go")
	assert.Contains(t, rendered, "util.go")
	assert.Contains(t, rendered, "3")
}

func TestSimpleUIDisplayResults(t *testing.T) {
	t.Parallel()

	cmd, out := newTestCmd()
	ui := NewSimpleUI(cmd)

	report := m.RunReport{
		Totals: m.RunTotals{Killed: 3, Survived: 1},
		Score:  0.75,
		Mutants: []m.MutantReport{
			{ID: 4, Status: m.StatusSurvived, DisplayName: "+ -> -", Diff: "-a + b\n+a - b\n"},
		},
	}

	require.NoError(t, ui.DisplayResults(context.Background(), report))

	rendered := out.String()
	assert.Contains(t, rendered, "75.0%")
	assert.Contains(t, rendered, "survived mutant #4")
	assert.Contains(t, rendered, "+a - b")
}

func TestSimpleUIUndefinedScore(t *testing.T) {
	t.Parallel()

	cmd, out := newTestCmd()
	ui := NewSimpleUI(cmd)

	require.NoError(t, ui.DisplayResults(context.Background(), m.RunReport{Score: math.NaN()}))
	assert.Contains(t, out.String(), "n/a")
}

func TestSimpleUIDisplayMutantResult(t *testing.T) {
	t.Parallel()

	cmd, out := newTestCmd()
	ui := NewSimpleUI(cmd)

	ui.DisplayMutantResult(context.Background(), &m.Mutant{
		ID:       7,
		File:     "calc.go",
		Span:     m.Span{StartLine: 12},
		Mutation: m.Mutation{DisplayName: "+ -> -"},
		Status:   m.StatusKilled,
	})

	assert.Contains(t, out.String(), "#7 calc.go:12 + -> - - killed")

	ui.DisplayMutantResult(context.Background(), nil)
}

func TestSimpleUIRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	cmd, out := newTestCmd()
	ui := NewSimpleUI(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, ui.DisplayEstimation(ctx, nil))
	ui.DisplayMutantResult(ctx, &m.Mutant{})
	assert.Empty(t, out.String())
}
