package domain

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"strykr.dev/pkg/strykr/internal/adapter"
	"strykr.dev/pkg/strykr/internal/host"
	m "strykr.dev/pkg/strykr/internal/model"
)

// Scheduler builds the coverage matrix, derives per-mutant test subsets, and
// drives the test platform until every live mutant has a verdict.
//
// Verdicts are commutative: the order in which tests complete within a run
// never changes a mutant's final status, only its reason attribution.
type Scheduler struct {
	platform adapter.TestPlatform
	session  *Session
	progress func(mutant *m.Mutant)
}

// NewScheduler wires the scheduler to the platform and session.
func NewScheduler(platform adapter.TestPlatform, session *Session) *Scheduler {
	return &Scheduler{platform: platform, session: session}
}

// OnProgress registers a callback invoked after each mutant verdict.
func (s *Scheduler) OnProgress(fn func(mutant *m.Mutant)) {
	s.progress = fn
}

// Run executes both phases: the coverage run and the per-mutant dispatch.
func (s *Scheduler) Run(ctx context.Context, workDir m.Path) error {
	timeout, err := s.coverageRun(ctx, workDir)
	if err != nil {
		return err
	}

	plans := s.buildPlans()

	slog.Info("dispatching mutant runs",
		"plans", len(plans), "timeout", timeout, "concurrency", s.session.Options.Concurrency)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.session.Options.Concurrency)

	for _, plan := range plans {
		group.Go(func() error {
			return s.dispatch(groupCtx, workDir, plan, timeout)
		})
	}

	return group.Wait()
}

// coverageRun executes all tests once with capture enabled and no active
// mutant, populating the coverage matrix. It returns the derived per-mutant
// timeout: max(floor, longest-test x multiplier).
func (s *Scheduler) coverageRun(ctx context.Context, workDir m.Path) (time.Duration, error) {
	opts := s.session.Options

	settingsXML, err := host.EncodeRunSettings(host.RunSettings{
		Concurrency:            1,
		TargetFramework:        runtime.Version(),
		DisableParallelization: true,
		Collector: host.Settings{
			Capture:   true,
			Namespace: opts.HelperNamespace,
		},
	})
	if err != nil {
		return 0, err
	}

	results, err := s.runWithRetry(ctx, workDir, settingsXML, s.session.Tests())
	if err != nil {
		return 0, err
	}

	var longest time.Duration

	for _, result := range results {
		if result.Duration > longest {
			longest = result.Duration
		}

		s.recordCoverage(result)
	}

	timeout := time.Duration(float64(longest) * opts.TimeoutMultiplier)
	if timeout < opts.TimeoutFloor {
		timeout = opts.TimeoutFloor
	}

	s.assignCoverageVerdicts()

	return timeout, nil
}

func (s *Scheduler) recordCoverage(result m.TestResult) {
	coverage, ok := result.Properties[host.PropertyCoverage]
	if ok {
		normal, static, err := host.ParseCoverage(coverage)
		if err != nil {
			slog.Warn("malformed coverage property", "test", result.Test.Name, "error", err)
		}

		for _, id := range normal {
			s.session.Matrix.Record(id, result.Test.ID, false)
		}

		for _, id := range static {
			s.session.Matrix.Record(id, result.Test.ID, true)
		}
	}

	if outOfTests, ok := result.Properties[host.PropertyOutOfTests]; ok {
		ids, err := host.ParseIDList(outOfTests)
		if err != nil {
			slog.Warn("malformed out-of-tests property", "test", result.Test.Name, "error", err)
		}

		for _, id := range ids {
			s.session.Matrix.Record(id, "", true)
		}
	}
}

// assignCoverageVerdicts copies coverage onto mutants and settles the
// mutants no test reaches.
func (s *Scheduler) assignCoverageVerdicts() {
	for _, mutant := range s.session.Live() {
		s.session.Matrix.Ensure(mutant.ID)

		entry, _ := s.session.Matrix.Entry(mutant.ID)

		static := entry.Static || mutant.Static
		s.session.SetCoverage(mutant.ID, entry.Tests, static)

		if !static && len(entry.Tests) == 0 {
			s.session.SetStatus(mutant.ID, m.StatusNoCoverage, "no test covers this mutant")
			s.notify(mutant)
		}
	}
}

// buildPlans groups live mutants into run plans:
//   - static mutants run against all tests, one mutant per invocation;
//   - single-test mutants get independent small runs;
//   - multi-test mutants with disjoint covering sets share one batched
//     invocation, selected per test via the collector's mutant map.
func (s *Scheduler) buildPlans() []m.RunPlan {
	testByID := make(map[string]m.TestDescription)
	for _, test := range s.session.Tests() {
		testByID[test.ID] = test
	}

	var plans []m.RunPlan

	var multi []*m.Mutant

	for _, mutant := range s.session.Live() {
		switch {
		case mutant.Static:
			plans = append(plans, s.staticPlan(mutant))
		case len(mutant.CoveredBy) == 1:
			test, ok := testByID[mutant.CoveredBy[0]]
			if !ok {
				continue
			}

			plans = append(plans, m.RunPlan{
				MutantIDs:    []int{mutant.ID},
				Tests:        []m.TestDescription{test},
				ActiveByTest: map[string]int{test.ID: mutant.ID},
				Bucket:       m.BucketIsolated,
			})
		default:
			multi = append(multi, mutant)
		}
	}

	return append(plans, batchDisjoint(multi, testByID)...)
}

func (s *Scheduler) staticPlan(mutant *m.Mutant) m.RunPlan {
	tests := s.session.Tests()
	active := make(map[string]int, len(tests))

	for _, test := range tests {
		active[test.ID] = mutant.ID
	}

	return m.RunPlan{
		MutantIDs:    []int{mutant.ID},
		Tests:        tests,
		ActiveByTest: active,
		Bucket:       m.BucketIsolated,
	}
}

// batchDisjoint greedily packs multi-test mutants whose covering sets do not
// overlap into shared invocations.
func batchDisjoint(mutants []*m.Mutant, testByID map[string]m.TestDescription) []m.RunPlan {
	type batch struct {
		used map[string]bool
		plan m.RunPlan
	}

	var batches []*batch

	for _, mutant := range mutants {
		var target *batch

		for _, b := range batches {
			overlap := false

			for _, testID := range mutant.CoveredBy {
				if b.used[testID] {
					overlap = true
					break
				}
			}

			if !overlap {
				target = b
				break
			}
		}

		if target == nil {
			target = &batch{
				used: make(map[string]bool),
				plan: m.RunPlan{ActiveByTest: make(map[string]int), Bucket: m.BucketBatched},
			}
			batches = append(batches, target)
		}

		target.plan.MutantIDs = append(target.plan.MutantIDs, mutant.ID)

		for _, testID := range mutant.CoveredBy {
			test, ok := testByID[testID]
			if !ok {
				continue
			}

			target.used[testID] = true
			target.plan.Tests = append(target.plan.Tests, test)
			target.plan.ActiveByTest[testID] = mutant.ID
		}
	}

	plans := make([]m.RunPlan, 0, len(batches))
	for _, b := range batches {
		plans = append(plans, b.plan)
	}

	return plans
}

// dispatch runs one plan and assigns verdicts. Only the plan's own mutants
// are touched: a passing test says nothing about any other mutant.
func (s *Scheduler) dispatch(ctx context.Context, workDir m.Path, plan m.RunPlan, timeout time.Duration) error {
	opts := s.session.Options

	mutantMap := make(map[int][]string, len(plan.MutantIDs))
	for testID, mutantID := range plan.ActiveByTest {
		mutantMap[mutantID] = append(mutantMap[mutantID], testID)
	}

	settingsXML, err := host.EncodeRunSettings(host.RunSettings{
		Concurrency:            1,
		TimeoutMS:              timeout.Milliseconds(),
		TargetFramework:        runtime.Version(),
		DisableParallelization: len(plan.MutantIDs) > 1,
		Collector: host.Settings{
			Capture:   false,
			Namespace: opts.HelperNamespace,
			MutantMap: mutantMap,
		},
	})
	if err != nil {
		return err
	}

	results, err := s.runWithRetry(ctx, workDir, settingsXML, plan.Tests)
	if err != nil {
		return err
	}

	killed := make(map[int]bool)
	timedOut := make(map[int]bool)

	for _, result := range results {
		mutantID, ok := plan.ActiveByTest[result.Test.ID]
		if !ok {
			continue
		}

		switch result.Outcome {
		case m.OutcomeFailed:
			killed[mutantID] = true

			s.session.RecordKill(mutantID, result.Test.ID)
		case m.OutcomeTimedOut:
			timedOut[mutantID] = true
		case m.OutcomePassed, m.OutcomeSkipped:
			// Passing or skipped tests contribute no kill evidence.
		}
	}

	for _, mutantID := range plan.MutantIDs {
		switch {
		case killed[mutantID]:
			s.session.SetStatus(mutantID, m.StatusKilled, "covering test failed")
		case timedOut[mutantID]:
			s.session.SetStatus(mutantID, m.StatusTimeout, "covering test exceeded timeout")
		default:
			s.session.SetStatus(mutantID, m.StatusSurvived, "all covering tests passed")
		}

		s.notify(s.session.Mutant(mutantID))
	}

	return nil
}

// runWithRetry retries one transport failure against a fresh host before
// declaring the test host unreachable.
func (s *Scheduler) runWithRetry(ctx context.Context, workDir m.Path, settingsXML []byte, tests []m.TestDescription) ([]m.TestResult, error) {
	results, err := s.platform.Run(ctx, workDir, settingsXML, tests)
	if err == nil {
		return results, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	slog.Warn("test host failed, retrying with a fresh host", "error", err)

	results, err = s.platform.Run(ctx, workDir, settingsXML, tests)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTestHostUnreachable, err)
	}

	return results, nil
}

func (s *Scheduler) notify(mutant *m.Mutant) {
	if s.progress != nil && mutant != nil {
		s.progress(mutant)
	}
}
