package domain

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
	"strykr.dev/pkg/strykr/pkg"
)

func TestMutationScore(t *testing.T) {
	t.Parallel()

	t.Run("timeouts count as killed", func(t *testing.T) {
		t.Parallel()

		totals := m.RunTotals{Killed: 3, Survived: 4, Timeout: 1}
		assert.InDelta(t, 0.5, MutationScore(totals, false), 1e-9)
	})

	t.Run("ignored and compile errors stay out of the denominator", func(t *testing.T) {
		t.Parallel()

		totals := m.RunTotals{Killed: 1, Survived: 1, Ignored: 10, CompileError: 5}
		assert.InDelta(t, 0.5, MutationScore(totals, false), 1e-9)
	})

	t.Run("uncovered mutants enter the denominator on request", func(t *testing.T) {
		t.Parallel()

		totals := m.RunTotals{Killed: 1, Survived: 0, NoCoverage: 1}
		assert.InDelta(t, 1.0, MutationScore(totals, false), 1e-9)
		assert.InDelta(t, 0.5, MutationScore(totals, true), 1e-9)
	})

	t.Run("nothing testable is NaN", func(t *testing.T) {
		t.Parallel()

		assert.True(t, math.IsNaN(MutationScore(m.RunTotals{Ignored: 3}, false)))
	})

	t.Run("score stays within the unit interval", func(t *testing.T) {
		t.Parallel()

		cases := []m.RunTotals{
			{Killed: 1},
			{Survived: 1},
			{Killed: 7, Survived: 3, Timeout: 2},
		}

		for _, totals := range cases {
			score := MutationScore(totals, false)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})
}

func TestThresholdVerdict(t *testing.T) {
	t.Parallel()

	t.Run("score below threshold violates", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ExitBreakThresholdViolated, ThresholdVerdict(0.3, 40))
	})

	t.Run("score at threshold passes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ExitOK, ThresholdVerdict(0.4, 40))
	})

	t.Run("NaN score passes regardless of threshold", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ExitOK, ThresholdVerdict(math.NaN(), 40))
	})

	t.Run("disabled threshold always passes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ExitOK, ThresholdVerdict(0.0, -1))
	})
}

func TestTotalsFromSpill(t *testing.T) {
	t.Parallel()

	spill, err := pkg.NewFileSpill[m.MutantReport](filepath.Join(t.TempDir(), "mutants.gob"))
	require.NoError(t, err)

	defer func() { _ = spill.Close() }()

	reports := []m.MutantReport{
		{ID: 0, Status: m.StatusKilled},
		{ID: 1, Status: m.StatusKilled},
		{ID: 2, Status: m.StatusSurvived},
		{ID: 3, Status: m.StatusTimeout},
		{ID: 4, Status: m.StatusIgnored},
	}
	require.NoError(t, spill.AppendBatch(reports))

	totals, err := TotalsFromSpill(spill)
	require.NoError(t, err)

	assert.Equal(t, 2, totals.Killed)
	assert.Equal(t, 1, totals.Survived)
	assert.Equal(t, 1, totals.Timeout)
	assert.Equal(t, 1, totals.Ignored)
	assert.Equal(t, 4, totals.Tested())
}
