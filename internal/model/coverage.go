package model

import "sync"

// CoverageEntry records which tests executed a mutant's site during the
// coverage run, and whether the site lives in a one-time initializer.
type CoverageEntry struct {
	Tests  []string // test ids, deduplicated, insertion order
	Static bool
}

// CoverageMatrix maps mutant ids to their coverage fingerprint. It is
// append-only and guarded by a single writer mutex; contention is per-mutant,
// not per-operation, so fine-grained locking is unnecessary.
type CoverageMatrix struct {
	mu      sync.Mutex
	entries map[int]*CoverageEntry
}

// NewCoverageMatrix returns an empty matrix.
func NewCoverageMatrix() *CoverageMatrix {
	return &CoverageMatrix{entries: make(map[int]*CoverageEntry)}
}

// Record notes that testID executed mutantID's site. A static hit also marks
// the mutant static (static mutants are run against all tests regardless);
// the test is recorded either way, and an empty testID records no test.
func (c *CoverageMatrix) Record(mutantID int, testID string, static bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[mutantID]
	if entry == nil {
		entry = &CoverageEntry{}
		c.entries[mutantID] = entry
	}

	if static {
		entry.Static = true
	}

	if testID == "" {
		return
	}

	for _, id := range entry.Tests {
		if id == testID {
			return
		}
	}

	entry.Tests = append(entry.Tests, testID)
}

// Ensure makes an empty entry exist for mutantID so every live mutant
// appears exactly once, covered or not.
func (c *CoverageMatrix) Ensure(mutantID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[mutantID]; !ok {
		c.entries[mutantID] = &CoverageEntry{}
	}
}

// Entry returns a copy of the entry for mutantID and whether it exists.
func (c *CoverageMatrix) Entry(mutantID int) (CoverageEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[mutantID]
	if !ok {
		return CoverageEntry{}, false
	}

	tests := make([]string, len(entry.Tests))
	copy(tests, entry.Tests)

	return CoverageEntry{Tests: tests, Static: entry.Static}, true
}

// Len returns the number of mutants in the matrix.
func (c *CoverageMatrix) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// RunBucket describes how a plan is executed.
type RunBucket string

// Buckets: isolated plans own their invocation, batched plans share one.
const (
	BucketIsolated RunBucket = "isolated"
	BucketBatched  RunBucket = "batched"
)

// RunPlan is the per-dispatch unit the scheduler hands to the test platform:
// the mutants under test, the tests to execute, and the per-test active
// mutant assignment used when several mutants share one invocation.
type RunPlan struct {
	MutantIDs    []int
	Tests        []TestDescription
	ActiveByTest map[string]int // test id -> mutant id
	Bucket       RunBucket
}
