package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strykr.dev/pkg/strykr/internal/host"
	m "strykr.dev/pkg/strykr/internal/model"
)

// fakePlatform decodes every settings document it receives and routes the
// call to the coverage or dispatch handler.
type fakePlatform struct {
	mu       sync.Mutex
	calls    []host.RunSettings
	coverage func(tests []m.TestDescription) []m.TestResult
	dispatch func(settings host.RunSettings, tests []m.TestDescription) []m.TestResult
	runErr   []error
}

func (f *fakePlatform) Discover(_ context.Context, _ m.Path) ([]m.TestDescription, error) {
	return nil, nil
}

func (f *fakePlatform) Run(_ context.Context, _ m.Path, settingsXML []byte, tests []m.TestDescription) ([]m.TestResult, error) {
	settings, err := host.DecodeRunSettings(settingsXML)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, settings)

	var nextErr error

	if len(f.runErr) > 0 {
		nextErr = f.runErr[0]
		f.runErr = f.runErr[1:]
	}
	f.mu.Unlock()

	if nextErr != nil {
		return nil, nextErr
	}

	if settings.Collector.Capture {
		return f.coverage(tests), nil
	}

	return f.dispatch(settings, tests), nil
}

func (f *fakePlatform) dispatchCalls() []host.RunSettings {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []host.RunSettings

	for _, call := range f.calls {
		if !call.Collector.Capture {
			out = append(out, call)
		}
	}

	return out
}

func testDescriptions(names ...string) []m.TestDescription {
	tests := make([]m.TestDescription, len(names))
	for i, name := range names {
		tests[i] = m.TestDescription{ID: name, Name: name, Framework: m.FrameworkGoTest}
	}

	return tests
}

func coverageResult(test m.TestDescription, duration time.Duration, normal, static []int) m.TestResult {
	return m.TestResult{
		Test:     test,
		Outcome:  m.OutcomePassed,
		Duration: duration,
		Properties: map[string]string{
			host.PropertyCoverage: host.FormatCoverage(normal, static),
		},
	}
}

func newSchedulerFixture(t *testing.T, mutantCount int, tests []m.TestDescription) *Session {
	t.Helper()

	session := newTestSession(t, nil)

	for i := 0; i < mutantCount; i++ {
		session.Track(&m.Mutant{})
	}

	session.SetTests(tests)

	return session
}

func TestSchedulerSingleTestMutant(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1", "t2")

	t.Run("covering test fails means killed", func(t *testing.T) {
		t.Parallel()

		session := newSchedulerFixture(t, 1, tests)

		platform := &fakePlatform{
			coverage: func(all []m.TestDescription) []m.TestResult {
				return []m.TestResult{
					coverageResult(all[0], 200*time.Millisecond, []int{0}, nil),
					coverageResult(all[1], 100*time.Millisecond, nil, nil),
				}
			},
			dispatch: func(_ host.RunSettings, batch []m.TestDescription) []m.TestResult {
				require.Len(t, batch, 1)
				return []m.TestResult{{Test: batch[0], Outcome: m.OutcomeFailed}}
			},
		}

		require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))

		mutant := session.Mutant(0)
		assert.Equal(t, m.StatusKilled, mutant.Status)
		assert.Equal(t, []string{"t1"}, mutant.KilledBy)
		assert.Equal(t, []string{"t1"}, mutant.CoveredBy)
	})

	t.Run("covering test passes means survived", func(t *testing.T) {
		t.Parallel()

		session := newSchedulerFixture(t, 1, tests)

		platform := &fakePlatform{
			coverage: func(all []m.TestDescription) []m.TestResult {
				return []m.TestResult{coverageResult(all[0], 0, []int{0}, nil)}
			},
			dispatch: func(_ host.RunSettings, batch []m.TestDescription) []m.TestResult {
				return []m.TestResult{{Test: batch[0], Outcome: m.OutcomePassed}}
			},
		}

		require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))
		assert.Equal(t, m.StatusSurvived, session.Mutant(0).Status)
	})
}

func TestSchedulerNoCoverage(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1")
	session := newSchedulerFixture(t, 2, tests)

	platform := &fakePlatform{
		coverage: func(all []m.TestDescription) []m.TestResult {
			return []m.TestResult{coverageResult(all[0], 0, []int{1}, nil)}
		},
		dispatch: func(_ host.RunSettings, batch []m.TestDescription) []m.TestResult {
			return []m.TestResult{{Test: batch[0], Outcome: m.OutcomePassed}}
		},
	}

	require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))

	assert.Equal(t, m.StatusNoCoverage, session.Mutant(0).Status)
	assert.Equal(t, m.StatusSurvived, session.Mutant(1).Status)
}

func TestSchedulerStaticMutantRunsAllTests(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1", "t2", "t3")
	session := newSchedulerFixture(t, 1, tests)

	platform := &fakePlatform{
		coverage: func(all []m.TestDescription) []m.TestResult {
			// Mutant 0 is hit from a one-time initializer during t1.
			return []m.TestResult{coverageResult(all[0], 0, nil, []int{0})}
		},
		dispatch: func(settings host.RunSettings, batch []m.TestDescription) []m.TestResult {
			// Every test runs with the static mutant active.
			require.Len(t, batch, 3)
			require.Equal(t, map[int][]string{0: {"t1", "t2", "t3"}}, canonicalMutantMap(settings.Collector.MutantMap))

			results := make([]m.TestResult, len(batch))
			for i, test := range batch {
				outcome := m.OutcomePassed
				if test.ID == "t3" {
					outcome = m.OutcomeFailed
				}

				results[i] = m.TestResult{Test: test, Outcome: outcome}
			}

			return results
		},
	}

	require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))

	mutant := session.Mutant(0)
	assert.Equal(t, m.StatusKilled, mutant.Status)
	assert.Equal(t, []string{"t3"}, mutant.KilledBy)
	assert.True(t, mutant.Static)
}

func TestSchedulerTimeoutDerivationAndVerdict(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1")
	session := newSchedulerFixture(t, 1, tests)

	platform := &fakePlatform{
		coverage: func(all []m.TestDescription) []m.TestResult {
			// Longest coverage test: 200ms; floor 5000ms wins.
			return []m.TestResult{coverageResult(all[0], 200*time.Millisecond, []int{0}, nil)}
		},
		dispatch: func(_ host.RunSettings, batch []m.TestDescription) []m.TestResult {
			return []m.TestResult{{Test: batch[0], Outcome: m.OutcomeTimedOut}}
		},
	}

	require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))

	assert.Equal(t, m.StatusTimeout, session.Mutant(0).Status)

	dispatches := platform.dispatchCalls()
	require.Len(t, dispatches, 1)
	assert.Equal(t, int64(5000), dispatches[0].TimeoutMS)
}

func TestSchedulerVerdictLocalityInBatchedRuns(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1", "t2", "t3", "t4")
	session := newSchedulerFixture(t, 2, tests)

	platform := &fakePlatform{
		coverage: func(all []m.TestDescription) []m.TestResult {
			return []m.TestResult{
				coverageResult(all[0], 0, []int{0}, nil),
				coverageResult(all[1], 0, []int{0}, nil),
				coverageResult(all[2], 0, []int{1}, nil),
				coverageResult(all[3], 0, []int{1}, nil),
			}
		},
		dispatch: func(settings host.RunSettings, batch []m.TestDescription) []m.TestResult {
			// Disjoint multi-test mutants share one parallelism-free run.
			require.True(t, settings.DisableParallelization)
			require.Len(t, batch, 4)

			results := make([]m.TestResult, len(batch))
			for i, test := range batch {
				outcome := m.OutcomePassed
				if test.ID == "t1" {
					outcome = m.OutcomeFailed
				}

				results[i] = m.TestResult{Test: test, Outcome: outcome}
			}

			return results
		},
	}

	require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))

	// t1's failure kills mutant 0 and says nothing about mutant 1.
	assert.Equal(t, m.StatusKilled, session.Mutant(0).Status)
	assert.Equal(t, m.StatusSurvived, session.Mutant(1).Status)
}

func TestSchedulerRetriesUnreachableHostOnce(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1")
	session := newSchedulerFixture(t, 0, tests)

	platform := &fakePlatform{
		coverage: func(all []m.TestDescription) []m.TestResult {
			return []m.TestResult{coverageResult(all[0], 0, nil, nil)}
		},
		runErr: []error{assert.AnError},
	}

	require.NoError(t, NewScheduler(platform, session).Run(context.Background(), "work"))
	assert.Len(t, platform.calls, 2)
}

func TestSchedulerUnreachableAfterRetry(t *testing.T) {
	t.Parallel()

	tests := testDescriptions("t1")
	session := newSchedulerFixture(t, 0, tests)

	platform := &fakePlatform{
		runErr: []error{assert.AnError, assert.AnError},
	}

	err := NewScheduler(platform, session).Run(context.Background(), "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTestHostUnreachable)
}

func canonicalMutantMap(mutantMap map[int][]string) map[int][]string {
	out := make(map[int][]string, len(mutantMap))

	for id, tests := range mutantMap {
		sorted := append([]string(nil), tests...)

		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}

		out[id] = sorted
	}

	return out
}
