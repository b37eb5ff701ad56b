package model

import "fmt"

// MutationType represents the category of mutation.
type MutationType string

const (
	// MutationArithmetic represents arithmetic operator mutations (+, -, *, /, %).
	MutationArithmetic MutationType = "arithmetic"
	// MutationComparison represents comparison operator mutations (==, !=, <, <=, >, >=).
	MutationComparison MutationType = "comparison"
	// MutationBoolean represents boolean literal mutations (true <-> false).
	MutationBoolean MutationType = "boolean"
	// MutationString represents string literal mutations (blanking, seeding empties).
	MutationString MutationType = "string"
	// MutationUpdate represents increment/decrement swaps (x++ <-> x--).
	MutationUpdate MutationType = "update"
	// MutationAssignment represents compound assignment operator swaps (+= <-> -=).
	MutationAssignment MutationType = "assignment"
	// MutationCondition represents branch condition forcing (cond -> true/false).
	MutationCondition MutationType = "condition"
	// MutationCollection represents composite literal emptying ({...} -> {}).
	MutationCollection MutationType = "collection"
	// MutationMethodCall represents well-known call swaps (ToUpper <-> ToLower).
	MutationMethodCall MutationType = "methodcall"
	// MutationGuard represents identity-conversion unwrapping (T(x) -> x).
	MutationGuard MutationType = "guard"
)

// MutationLevel is an ordinal gate: a mutator only fires when the session
// level is at least the mutator's declared minimum.
type MutationLevel int

// Levels, in ascending order.
const (
	LevelBasic MutationLevel = iota
	LevelStandard
	LevelAdvanced
	LevelComplete
)

// ParseMutationLevel maps a config string to a MutationLevel.
func ParseMutationLevel(s string) (MutationLevel, error) {
	switch s {
	case "basic":
		return LevelBasic, nil
	case "standard", "":
		return LevelStandard, nil
	case "advanced":
		return LevelAdvanced, nil
	case "complete":
		return LevelComplete, nil
	}

	return LevelStandard, fmt.Errorf("unknown mutation level %q", s)
}

func (l MutationLevel) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelStandard:
		return "standard"
	case LevelAdvanced:
		return "advanced"
	case LevelComplete:
		return "complete"
	}

	return fmt.Sprintf("level(%d)", int(l))
}

// Edit is a local text replacement against the original file content.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Mutation is one proposed edit at a single syntactic site. It is immutable
// once created. The original node is referenced by its span, not by an owning
// AST pointer, so mutated trees own their nodes exclusively.
type Mutation struct {
	Type        MutationType
	DisplayName string // e.g. "+ -> -"
	Edits       []Edit // edits against the original file bytes
	Span        Span   // span of the anchor node in the original file
}

// MutantStatus is the lifecycle state of a tracked mutant. Every status
// other than Pending is terminal.
type MutantStatus string

// The terminal statuses a mutant can reach.
const (
	StatusPending      MutantStatus = "pending"
	StatusIgnored      MutantStatus = "ignored"
	StatusCompileError MutantStatus = "compile-error"
	StatusNoCoverage   MutantStatus = "no-coverage"
	StatusKilled       MutantStatus = "killed"
	StatusSurvived     MutantStatus = "survived"
	StatusTimeout      MutantStatus = "timeout"
)

// Terminal reports whether the status permits no further transitions.
func (s MutantStatus) Terminal() bool {
	return s != StatusPending && s != ""
}

// Mutant is a tracked instance of a Mutation with a session-unique id.
// Ids are assigned in source-traversal order and are stable across runs of
// the same source with the same mutator set.
type Mutant struct {
	ID           int
	File         Path
	Span         Span
	Mutation     Mutation
	Status       MutantStatus
	StatusReason string

	// CoveredBy holds the ids of the tests whose coverage fingerprint
	// includes this mutant. Static mutants are triggered from one-time
	// initializers and must be exercised by every test.
	CoveredBy []string
	Static    bool

	KilledBy []string

	// Diff is a unified diff of the anchor site, original vs mutated,
	// rendered once at orchestration time for reporting.
	Diff string
}
