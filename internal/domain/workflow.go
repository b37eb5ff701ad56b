package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"strykr.dev/pkg/strykr/internal/adapter"
	"strykr.dev/pkg/strykr/internal/controller"
	m "strykr.dev/pkg/strykr/internal/model"
)

// EstimateArgs configures an estimation pass: mutation counting without
// running any tests.
type EstimateArgs struct {
	Path    m.Path
	Options Options
}

// TestArgs configures a full mutation testing run.
type TestArgs struct {
	Path       m.Path
	ReportsDir m.Path
	Options    Options
}

// Workflow is the top-level engine entrypoint the CLI drives.
type Workflow interface {
	Estimate(ctx context.Context, args EstimateArgs) error
	Test(ctx context.Context, args TestArgs) (int, error)
}

type workflow struct {
	frontend    adapter.LanguageFrontend
	compiler    adapter.Compiler
	platform    adapter.TestPlatform
	fs          adapter.SourceFSAdapter
	reportStore adapter.ReportStore
	ui          controller.UI
}

// NewWorkflow wires the engine to its collaborators.
func NewWorkflow(
	frontend adapter.LanguageFrontend,
	compiler adapter.Compiler,
	platform adapter.TestPlatform,
	fs adapter.SourceFSAdapter,
	reportStore adapter.ReportStore,
	ui controller.UI,
) Workflow {
	return &workflow{
		frontend:    frontend,
		compiler:    compiler,
		platform:    platform,
		fs:          fs,
		reportStore: reportStore,
		ui:          ui,
	}
}

// Estimate counts the mutations the current options would produce.
func (w *workflow) Estimate(ctx context.Context, args EstimateArgs) error {
	session, orchestrator, root, err := w.prepare(ctx, args.Path, args.Options)
	if err != nil {
		return err
	}

	units, err := w.loadUnits(ctx, args.Path, args.Options)
	if err != nil {
		return err
	}

	modulePath, err := w.fs.ModulePath(ctx, root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	if err := w.ui.Start(ctx, controller.ModeEstimate); err != nil {
		return err
	}

	defer w.ui.Close(ctx)

	w.warmAnalysis(ctx, orchestrator, units, args.Options.Concurrency)

	for _, unit := range units {
		orchestrator.Process(unit, modulePath)
	}

	return w.ui.DisplayEstimation(ctx, session.Mutants())
}

// Test runs the full pipeline and returns the exit code.
func (w *workflow) Test(ctx context.Context, args TestArgs) (int, error) {
	exitCode, err := w.test(ctx, args)
	if err != nil {
		slog.Error("mutation run failed", "error", err)
		return ExitCodeFor(err), err
	}

	return exitCode, nil
}

func (w *workflow) test(ctx context.Context, args TestArgs) (int, error) {
	session, orchestrator, root, err := w.prepare(ctx, args.Path, args.Options)
	if err != nil {
		return 0, err
	}

	modulePath, err := w.fs.ModulePath(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	units, err := w.loadUnits(ctx, args.Path, args.Options)
	if err != nil {
		return 0, err
	}

	w.warmAnalysis(ctx, orchestrator, units, args.Options.Concurrency)

	files := make(map[string]*InstrumentedFile, len(units))

	for _, unit := range units {
		file := orchestrator.Process(unit, modulePath)

		rel, err := w.fs.RelPath(ctx, root, unit.Path)
		if err != nil {
			return 0, err
		}

		files[string(rel)] = file
	}

	workDir, cleanup, err := w.stageWorkspace(ctx, root, session.Options.HelperNamespace)
	if err != nil {
		return 0, err
	}

	defer cleanup()

	rollback := NewRollbackLoop(w.compiler, w.fs, session, orchestrator.Placer())
	if err := rollback.Run(ctx, workDir, files); err != nil {
		return 0, err
	}

	tests, err := w.platform.Discover(ctx, workDir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrTestHostUnreachable, err)
	}

	session.SetTests(tests)

	if err := w.ui.Start(ctx, controller.ModeTest); err != nil {
		return 0, err
	}

	defer w.ui.Close(ctx)

	w.ui.DisplayRunInfo(ctx, len(session.Live()), len(tests), session.Options.Concurrency)

	scheduler := NewScheduler(w.platform, session)
	scheduler.OnProgress(func(mutant *m.Mutant) {
		w.ui.DisplayMutantResult(ctx, mutant)
	})

	if err := scheduler.Run(ctx, workDir); err != nil {
		return 0, err
	}

	report, err := w.buildReport(ctx, session, modulePath, args.ReportsDir)
	if err != nil {
		return 0, err
	}

	if err := w.ui.DisplayResults(ctx, report); err != nil {
		return 0, err
	}

	return ThresholdVerdict(report.Score, session.Options.BreakAt), nil
}

func (w *workflow) prepare(ctx context.Context, path m.Path, opts Options) (*Session, *Orchestrator, m.Path, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, "", err
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, "", err
	}

	root, err := w.fs.FindProjectRoot(ctx, path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	session := NewSession(opts)

	orchestrator, err := NewOrchestrator(session)
	if err != nil {
		return nil, nil, "", err
	}

	return session, orchestrator, root, nil
}

// loadUnits parses and type-checks the module, dropping generated and
// excluded files before any mutator sees them.
func (w *workflow) loadUnits(ctx context.Context, path m.Path, opts Options) ([]*adapter.SourceUnit, error) {
	root, err := w.fs.FindProjectRoot(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	matcher, err := adapter.NewExcludeMatcher(opts.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	units, err := w.frontend.LoadModule(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err)
	}

	kept := make([]*adapter.SourceUnit, 0, len(units))

	for _, unit := range units {
		if matcher.Match(unit.Path) {
			slog.Debug("file excluded by pattern", "file", unit.Path)
			continue
		}

		if IsGeneratedSource(unit.Content) {
			slog.Debug("generated file skipped", "file", unit.Path)
			continue
		}

		kept = append(kept, unit)
	}

	return kept, nil
}

// warmAnalysis runs the pure per-file analysis in parallel; id assignment
// stays sequential afterwards so mutant ids remain stable.
func (w *workflow) warmAnalysis(ctx context.Context, orchestrator *Orchestrator, units []*adapter.SourceUnit, threads int) {
	if threads < 1 {
		threads = 1
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(threads)

	for _, unit := range units {
		group.Go(func() error {
			orchestrator.Analyze(unit)
			return nil
		})
	}

	_ = group.Wait()
}

// stageWorkspace copies the project into a scratch directory and injects the
// runtime control package. The instrumented binary location is written once
// and then read-only for every worker.
func (w *workflow) stageWorkspace(ctx context.Context, root m.Path, namespace string) (m.Path, func(), error) {
	workDir, err := w.fs.CreateTempDir(ctx, "strykr-run-*")
	if err != nil {
		return "", nil, err
	}

	cleanup := func() {
		if err := w.fs.RemoveAll(context.Background(), workDir); err != nil {
			slog.Error("failed to clean workspace", "dir", workDir, "error", err)
		}
	}

	if err := w.fs.CopyDir(ctx, root, workDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage workspace: %w", err)
	}

	runtimePath := m.Path(filepath.Join(string(workDir), namespace, namespace+".go"))

	if err := w.fs.WriteFile(ctx, runtimePath, []byte(RuntimeSource(namespace)), 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write runtime package: %w", err)
	}

	return workDir, cleanup, nil
}

// buildReport assembles the per-mutant records, spills them, aggregates the
// totals from the spill, and persists the YAML summary.
func (w *workflow) buildReport(ctx context.Context, session *Session, modulePath string, reportsDir m.Path) (m.RunReport, error) {
	spill, err := w.reportStore.NewMutantSpill(reportsDir)
	if err != nil {
		return m.RunReport{}, err
	}

	defer func() { _ = spill.Close() }()

	var records []m.MutantReport

	for _, mutant := range session.Mutants() {
		records = append(records, m.MutantReport{
			ID:            mutant.ID,
			File:          mutant.File,
			Line:          mutant.Span.StartLine,
			Column:        mutant.Span.StartCol,
			Type:          mutant.Mutation.Type,
			DisplayName:   mutant.Mutation.DisplayName,
			Status:        mutant.Status,
			StatusReason:  mutant.StatusReason,
			KillingTests:  mutant.KilledBy,
			CoveringTests: mutant.CoveredBy,
			Diff:          mutant.Diff,
		})
	}

	if err := spill.AppendBatch(records); err != nil {
		return m.RunReport{}, err
	}

	totals, err := TotalsFromSpill(spill)
	if err != nil {
		return m.RunReport{}, err
	}

	report := m.RunReport{
		SessionID: session.ID,
		Module:    modulePath,
		Totals:    totals,
		Score:     MutationScore(totals, session.Options.CountUncovered),
		Mutants:   records,
	}

	if err := w.reportStore.SaveReport(ctx, reportsDir, report); err != nil {
		return m.RunReport{}, err
	}

	return report, nil
}
