package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"strykr.dev/pkg/strykr/internal/host"
	m "strykr.dev/pkg/strykr/internal/model"
)

// TestPlatform abstracts test discovery and execution. Settings travel as
// the XML run-settings document produced by the host package; the adapter
// decodes it, wires the coverage collector, and streams results back.
type TestPlatform interface {
	Discover(ctx context.Context, dir m.Path) ([]m.TestDescription, error)
	Run(ctx context.Context, dir m.Path, settingsXML []byte, tests []m.TestDescription) ([]m.TestResult, error)
}

// Env variable names shared with the injected runtime control package.
const (
	envActiveMutant = "STRYKR_ACTIVE_MUTANT"
	envCapture      = "STRYKR_CAPTURE"
	envCoverageSink = "STRYKR_COVERAGE_SINK"
)

// GoTestPlatform drives `go test` as the native test host. Each test case
// runs in its own host process: the active mutant is fixed per process via
// the environment, so batched runs are parallelism-free by construction.
type GoTestPlatform struct{}

// NewGoTestPlatform constructs a GoTestPlatform.
func NewGoTestPlatform() *GoTestPlatform {
	return &GoTestPlatform{}
}

var testNameRx = regexp.MustCompile(`^(Test|Fuzz)\w*$`)

// Discover lists the test cases of every package under dir.
func (p *GoTestPlatform) Discover(ctx context.Context, dir m.Path) ([]m.TestDescription, error) {
	cmd := exec.CommandContext(ctx, "go", "test", "-list", ".*", "./...")
	cmd.Dir = string(dir)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: discover tests: %w", stderr.String(), err)
	}

	modulePath, err := readModulePath(string(dir))
	if err != nil {
		return nil, err
	}

	var tests []m.TestDescription

	var pending []string

	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case testNameRx.MatchString(line):
			pending = append(pending, line)
		case strings.HasPrefix(line, "ok"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				pending = nil
				continue
			}

			pkgPath := fields[1]
			framework := detectFramework(string(dir), modulePath, pkgPath)

			for _, name := range pending {
				tests = append(tests, m.TestDescription{
					ID:         uuid.NewString(),
					Name:       name,
					SourcePath: m.Path(pkgPath),
					Framework:  framework,
				})
			}

			pending = nil
		case strings.HasPrefix(line, "?"):
			pending = nil
		}
	}

	return tests, scanner.Err()
}

// detectFramework inspects the package's test files for a testify import.
func detectFramework(moduleDir, modulePath, pkgPath string) m.TestFramework {
	rel := strings.TrimPrefix(pkgPath, modulePath)
	pkgDir := filepath.Join(moduleDir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))

	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return m.FrameworkGoTest
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(pkgDir, entry.Name()))
		if err != nil {
			continue
		}

		if bytes.Contains(content, []byte("github.com/stretchr/testify")) {
			return m.FrameworkTestify
		}
	}

	return m.FrameworkGoTest
}

// Run executes the given tests one host process per test case, wiring the
// coverage collector's lifecycle around each.
func (p *GoTestPlatform) Run(ctx context.Context, dir m.Path, settingsXML []byte, tests []m.TestDescription) ([]m.TestResult, error) {
	settings, err := host.DecodeRunSettings(settingsXML)
	if err != nil {
		return nil, err
	}

	collector := host.NewCollector(settings.Collector)
	if err := collector.SessionStart(); err != nil {
		return nil, err
	}

	var filter *regexp.Regexp

	if settings.TestCaseFilter != "" {
		filter, err = regexp.Compile(settings.TestCaseFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid test case filter: %w", err)
		}
	}

	results := make([]m.TestResult, 0, len(tests))

	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if filter != nil && !filter.MatchString(test.Name) {
			continue
		}

		result, err := p.runOne(ctx, dir, settings, collector, test)
		if err != nil {
			return results, err
		}

		results = append(results, result)
	}

	if err := collector.SessionEnd(); err != nil {
		return results, err
	}

	return results, nil
}

func (p *GoTestPlatform) runOne(
	ctx context.Context,
	dir m.Path,
	settings host.RunSettings,
	collector *host.Collector,
	test m.TestDescription,
) (m.TestResult, error) {
	if err := collector.TestCaseStart(test.ID); err != nil {
		return m.TestResult{}, err
	}

	runCtx := ctx

	var cancel context.CancelFunc

	if settings.TimeoutMS > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(settings.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	sinkPath, cleanup, err := p.createSink(settings.Collector.Capture)
	if err != nil {
		return m.TestResult{}, err
	}

	defer cleanup()

	outcome, duration := p.execTest(runCtx, dir, settings, collector, test, sinkPath)

	if sinkPath != "" {
		p.feedSink(collector, sinkPath)
	}

	props, err := collector.TestCaseEnd(test.ID)
	if err != nil {
		return m.TestResult{}, err
	}

	return m.TestResult{
		Test:       test,
		Outcome:    outcome,
		Duration:   duration,
		Properties: props,
	}, nil
}

func (p *GoTestPlatform) createSink(capture bool) (string, func(), error) {
	if !capture {
		return "", func() {}, nil
	}

	f, err := os.CreateTemp("", "strykr-sink-*")
	if err != nil {
		return "", nil, fmt.Errorf("create coverage sink: %w", err)
	}

	path := f.Name()
	_ = f.Close()

	return path, func() { _ = os.Remove(path) }, nil
}

func (p *GoTestPlatform) execTest(
	ctx context.Context,
	dir m.Path,
	settings host.RunSettings,
	collector *host.Collector,
	test m.TestDescription,
	sinkPath string,
) (m.TestOutcome, time.Duration) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, "go", "test", "-run", "^"+test.Name+"$", "-count=1", "-json", string(test.SourcePath))
	cmd.Dir = string(dir)
	cmd.Env = append(os.Environ(),
		envActiveMutant+"="+strconv.Itoa(collector.ActiveMutant()),
		envCapture+"="+captureFlag(settings.Collector.Capture),
		envCoverageSink+"="+sinkPath,
	)

	var stdout bytes.Buffer

	cmd.Stdout = &stdout

	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return m.OutcomeTimedOut, elapsed
	}

	outcome, eventDuration := parseTestEvents(stdout.Bytes(), test.Name)
	if eventDuration > 0 {
		elapsed = eventDuration
	}

	if outcome == "" {
		if runErr != nil {
			slog.Warn("test produced no verdict event", "test", test.Name, "error", runErr)
			return m.OutcomeFailed, elapsed
		}

		return m.OutcomeSkipped, elapsed
	}

	return outcome, elapsed
}

func captureFlag(capture bool) string {
	if capture {
		return "1"
	}

	return "0"
}

// testEvent mirrors the test2json event stream.
type testEvent struct {
	Action  string  `json:"Action"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
}

func parseTestEvents(output []byte, testName string) (m.TestOutcome, time.Duration) {
	var (
		outcome  m.TestOutcome
		duration time.Duration
	)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var event testEvent

		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}

		if event.Test != testName {
			continue
		}

		switch event.Action {
		case "pass":
			outcome = m.OutcomePassed
			duration = time.Duration(event.Elapsed * float64(time.Second))
		case "fail":
			outcome = m.OutcomeFailed
			duration = time.Duration(event.Elapsed * float64(time.Second))
		case "skip":
			outcome = m.OutcomeSkipped
		}
	}

	return outcome, duration
}

// feedSink replays the host's write-through coverage records into the
// collector. Lines are "N,<id>" for normal hits and "S,<id>" for static.
func (p *GoTestPlatform) feedSink(collector *host.Collector, sinkPath string) {
	content, err := os.ReadFile(sinkPath)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		kind, idStr, found := strings.Cut(strings.TrimSpace(line), ",")
		if !found {
			continue
		}

		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}

		switch kind {
		case "N":
			collector.HitNormal(id)
		case "S":
			collector.HitStatic(id)
		}
	}
}
