package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	m "strykr.dev/pkg/strykr/internal/model"
)

// Options is the per-session configuration snapshot. It is taken once at
// session creation and never mutated afterwards.
type Options struct {
	Level             m.MutationLevel
	Types             []m.MutationType // empty = all
	Concurrency       int
	TimeoutFloor      time.Duration
	TimeoutMultiplier float64
	BreakAt           float64 // percent; negative disables the threshold
	ExcludePatterns   []string
	HelperNamespace   string
	CountUncovered    bool // include NoCoverage mutants in the score denominator
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		Level:             m.LevelStandard,
		Concurrency:       1,
		TimeoutFloor:      5000 * time.Millisecond,
		TimeoutMultiplier: 1.5,
		BreakAt:           -1,
		HelperNamespace:   "strykrmut",
	}
}

// Validate rejects option combinations before any mutation work begins.
func (o Options) Validate() error {
	if o.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrConfigurationInvalid, o.Concurrency)
	}

	if o.TimeoutMultiplier <= 0 {
		return fmt.Errorf("%w: timeout multiplier must be positive, got %g", ErrConfigurationInvalid, o.TimeoutMultiplier)
	}

	if o.HelperNamespace == "" {
		return fmt.Errorf("%w: helper namespace must not be empty", ErrConfigurationInvalid)
	}

	if o.BreakAt > 100 {
		return fmt.Errorf("%w: break-at is a percentage, got %g", ErrConfigurationInvalid, o.BreakAt)
	}

	return nil
}

// Session owns the mutant id allocator and the status map. It is the single
// writer for both; all access goes through its mutex. Ids are allocated in
// source-traversal order and never reused.
type Session struct {
	ID      string
	Options Options
	Matrix  *m.CoverageMatrix

	mu      sync.Mutex
	nextID  int
	mutants map[int]*m.Mutant
	tests   []m.TestDescription
}

// NewSession creates a session with a fresh id allocator.
func NewSession(opts Options) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Options: opts,
		Matrix:  m.NewCoverageMatrix(),
		mutants: make(map[int]*m.Mutant),
	}
}

// Track allocates the next mutant id, stamps it onto the mutant, and
// registers it with the session.
func (s *Session) Track(mutant *m.Mutant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutant.ID = s.nextID
	s.nextID++

	if mutant.Status == "" {
		mutant.Status = m.StatusPending
	}

	s.mutants[mutant.ID] = mutant
}

// Mutant returns the tracked mutant for id, or nil.
func (s *Session) Mutant(id int) *m.Mutant {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutants[id]
}

// Mutants returns all tracked mutants ordered by id.
func (s *Session) Mutants() []*m.Mutant {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*m.Mutant, 0, len(s.mutants))
	for _, mutant := range s.mutants {
		all = append(all, mutant)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return all
}

// Live returns the mutants still pending a verdict, ordered by id.
func (s *Session) Live() []*m.Mutant {
	var live []*m.Mutant

	for _, mutant := range s.Mutants() {
		if !mutant.Status.Terminal() {
			live = append(live, mutant)
		}
	}

	return live
}

// SetStatus transitions a mutant to a terminal status. Transitions are
// monotonic: once terminal, a mutant never changes again. Returns true when
// the transition was applied.
func (s *Session) SetStatus(id int, status m.MutantStatus, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutant, ok := s.mutants[id]
	if !ok || mutant.Status.Terminal() {
		return false
	}

	mutant.Status = status
	mutant.StatusReason = reason

	return true
}

// RecordKill appends a killing test to the mutant. The earliest recorded
// test is only used for reason attribution; verdicts are commutative.
func (s *Session) RecordKill(id int, testID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutant, ok := s.mutants[id]
	if !ok {
		return
	}

	for _, existing := range mutant.KilledBy {
		if existing == testID {
			return
		}
	}

	mutant.KilledBy = append(mutant.KilledBy, testID)
}

// SetCoverage copies the coverage fingerprint onto the mutant record.
func (s *Session) SetCoverage(id int, tests []string, static bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutant, ok := s.mutants[id]
	if !ok {
		return
	}

	mutant.CoveredBy = tests
	mutant.Static = static
}

// SetTests stores the discovered test set.
func (s *Session) SetTests(tests []m.TestDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tests = tests
}

// Tests returns the discovered test set.
func (s *Session) Tests() []m.TestDescription {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tests
}

// Totals aggregates terminal statuses for scoring.
func (s *Session) Totals() m.RunTotals {
	totals := m.RunTotals{}

	for _, mutant := range s.Mutants() {
		switch mutant.Status {
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
			// Pending mutants do not contribute to totals.
		}
	}

	return totals
}
