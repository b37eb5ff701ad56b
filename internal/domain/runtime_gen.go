package domain

import "strings"

// Env variable contract between the engine and the instrumented host.
const (
	EnvActiveMutant = "STRYKR_ACTIVE_MUTANT"
	EnvCapture      = "STRYKR_CAPTURE"
	EnvCoverageSink = "STRYKR_COVERAGE_SINK"
)

// runtimeTemplate is the source of the control package injected into the
// instrumented module. The token @NS@ is replaced by the helper namespace.
// It is the sole process-wide mutable state inside the test host: the active
// mutant id is read once at startup and never changes within a process.
//
// Coverage records are written through to the sink file the first time an id
// is seen, so no exit hook is needed: a crashing or timing-out host still
// leaves its hits behind.
const runtimeTemplate = `// Code generated by strykr. DO NOT EDIT.
package @NS@

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Site describes one guarded location: the mutant ids selectable there and
// whether the location runs from a one-time initializer.
type Site struct {
	IDs    []int
	Static bool
}

var (
	mu      sync.Mutex
	active  = -1
	capture bool
	sink    *os.File
	seen    = map[string]struct{}{}
)

func init() {
	if v, err := strconv.Atoi(os.Getenv("STRYKR_ACTIVE_MUTANT")); err == nil {
		active = v
	}

	capture = os.Getenv("STRYKR_CAPTURE") == "1"

	if path := os.Getenv("STRYKR_COVERAGE_SINK"); capture && path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			sink = f
		}
	}
}

// Act reports whether the given mutant is the active one.
func Act(id int) bool {
	return active == id
}

// Cover records a hit on a single mutant id.
func Cover(id int, static bool) {
	if !capture {
		return
	}

	record(id, static)
}

// CoverAll records hits for every mutant placed at a site; called on
// original-branch entry.
func CoverAll(static bool, ids ...int) {
	if !capture {
		return
	}

	for _, id := range ids {
		record(id, static)
	}
}

// Sel selects between the original expression and the active mutant's
// replacement, recording coverage on the branch it takes.
func Sel[T any](s Site, orig func() T, mut map[int]func() T) T {
	if f, ok := mut[active]; ok {
		Cover(active, s.Static)
		return f()
	}

	CoverAll(s.Static, s.IDs...)

	return orig()
}

func record(id int, static bool) {
	kind := "N"
	if static {
		kind = "S"
	}

	key := kind + strconv.Itoa(id)

	mu.Lock()
	defer mu.Unlock()

	if _, ok := seen[key]; ok {
		return
	}

	seen[key] = struct{}{}

	if sink != nil {
		fmt.Fprintf(sink, "%s,%d\n", kind, id)
	}
}
`

// RuntimeSource renders the runtime control package for the given helper
// namespace.
func RuntimeSource(namespace string) string {
	return strings.ReplaceAll(runtimeTemplate, "@NS@", namespace)
}
