package domain

import (
	"math"

	m "strykr.dev/pkg/strykr/internal/model"
	"strykr.dev/pkg/strykr/pkg"
)

// MutationScore computes killed / (killed + survived + timeout), with
// timeouts counted as killed. Ignored and compile-error mutants never enter
// the denominator; uncovered mutants only do when the options ask for it.
// With nothing testable the score is NaN.
func MutationScore(totals m.RunTotals, countUncovered bool) float64 {
	killed := totals.Killed + totals.Timeout

	denominator := totals.Tested()
	if countUncovered {
		denominator += totals.NoCoverage
	}

	if denominator == 0 {
		return math.NaN()
	}

	return float64(killed) / float64(denominator)
}

// TotalsFromSpill aggregates statuses from the per-mutant report spill.
func TotalsFromSpill(reports pkg.FileSpill[m.MutantReport]) (m.RunTotals, error) {
	totals := m.RunTotals{}

	err := reports.Range(func(_ uint64, report m.MutantReport) error {
		switch report.Status {
		case m.StatusKilled:
			totals.Killed++
		case m.StatusSurvived:
			totals.Survived++
		case m.StatusTimeout:
			totals.Timeout++
		case m.StatusNoCoverage:
			totals.NoCoverage++
		case m.StatusCompileError:
			totals.CompileError++
		case m.StatusIgnored:
			totals.Ignored++
		case m.StatusPending:
			// Pending records should not appear in a finished spill.
		}

		return nil
	})
	if err != nil {
		return m.RunTotals{}, err
	}

	return totals, nil
}

// ThresholdVerdict maps a score against the break threshold (a percentage).
// An undefined score never violates the threshold, whatever its value.
func ThresholdVerdict(score, breakAt float64) int {
	if math.IsNaN(score) || breakAt < 0 {
		return ExitOK
	}

	if score*100 < breakAt {
		return ExitBreakThresholdViolated
	}

	return ExitOK
}
