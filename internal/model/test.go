package model

import "time"

// TestFramework tags the framework a test was discovered under.
type TestFramework string

// Known frameworks. Discovery inspects test file imports; plain `testing`
// tests are tagged GoTest, testify-based suites are tagged Testify.
const (
	FrameworkGoTest  TestFramework = "go-test"
	FrameworkTestify TestFramework = "testify"
)

// TestDescription identifies one discovered test case. Identity is the
// opaque ID; Name and SourcePath are display metadata only.
type TestDescription struct {
	ID         string
	Name       string
	SourcePath Path
	Framework  TestFramework
}

// Equal compares two descriptions by id only.
func (t TestDescription) Equal(other TestDescription) bool {
	return t.ID == other.ID
}

// TestOutcome is the observed result of one test execution.
type TestOutcome string

// Outcomes reported by the test platform.
const (
	OutcomePassed   TestOutcome = "passed"
	OutcomeFailed   TestOutcome = "failed"
	OutcomeTimedOut TestOutcome = "timed-out"
	OutcomeSkipped  TestOutcome = "skipped"
)

// TestResult is one test-case result streamed back from the test platform,
// including collector-emitted properties such as "Coverage" and "OutOfTests".
type TestResult struct {
	Test       TestDescription
	Outcome    TestOutcome
	Duration   time.Duration
	Properties map[string]string
}
