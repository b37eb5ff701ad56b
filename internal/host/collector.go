package host

import (
	"fmt"
	"sync"
)

// NoActiveMutant is the active-mutant id meaning "run the original code".
const NoActiveMutant = -1

// sessionState tracks the collector's lifecycle:
// Idle -> Session -> PerTest* -> Session -> Idle.
type sessionState int

const (
	stateIdle sessionState = iota
	stateSession
	stateTest
)

// Collector records mutant hits per test inside the test host. Hit methods
// are safe to call from arbitrary threads; lifecycle transitions happen on
// the host's reporting thread, which establishes the happens-before for
// draining buffers at test end.
//
// When an active mutant is set the collector routes mutation behavior only
// and captures no coverage.
type Collector struct {
	mu sync.Mutex

	state    sessionState
	settings Settings

	active       int
	activeByTest map[string]int

	currentTest   string
	currentNormal []int
	pendingStatic []int
	outOfTests    []int
	sawFirstTest  bool
}

// NewCollector builds a collector from its decoded settings payload.
func NewCollector(settings Settings) *Collector {
	c := &Collector{
		settings:     settings,
		active:       NoActiveMutant,
		activeByTest: invertMutantMap(settings.MutantMap),
	}

	return c
}

func invertMutantMap(mutantMap map[int][]string) map[string]int {
	inverted := make(map[string]int)

	for mutantID, tests := range mutantMap {
		for _, testID := range tests {
			inverted[testID] = mutantID
		}
	}

	return inverted
}

// SessionStart transitions Idle -> Session. When the mutant map holds
// exactly one entry the active mutant is pre-set for the whole session, the
// fast path for single-mutant runs.
func (c *Collector) SessionStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateIdle {
		return fmt.Errorf("session start in state %d", c.state)
	}

	c.state = stateSession
	c.sawFirstTest = false
	c.outOfTests = nil
	c.pendingStatic = nil

	if len(c.settings.MutantMap) == 1 {
		for mutantID := range c.settings.MutantMap {
			c.active = mutantID
		}
	}

	return nil
}

// TestCaseStart transitions Session -> PerTest. It sets the active mutant
// for the test from the mutant map, and in capture mode resets the per-test
// hit buffer. Static hits accumulated since the previous test are preserved:
// they belong to this test, unless no test has run yet, in which case they
// are global pre-test hits reported separately.
func (c *Collector) TestCaseStart(testID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateSession {
		return fmt.Errorf("test start in state %d", c.state)
	}

	c.state = stateTest
	c.currentTest = testID

	if len(c.settings.MutantMap) != 1 {
		if mutantID, ok := c.activeByTest[testID]; ok {
			c.active = mutantID
		} else if len(c.activeByTest) > 0 {
			c.active = NoActiveMutant
		}
	}

	if c.capturing() {
		c.currentNormal = nil

		if !c.sawFirstTest {
			c.outOfTests = c.pendingStatic
			c.pendingStatic = nil
		}
	}

	c.sawFirstTest = true

	return nil
}

// TestCaseEnd transitions PerTest -> Session and emits the coverage
// properties for the finished test. The static buffer is drained on read.
func (c *Collector) TestCaseEnd(testID string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateTest {
		return nil, fmt.Errorf("test end in state %d", c.state)
	}

	if testID != c.currentTest {
		return nil, fmt.Errorf("test end for %q while %q is running", testID, c.currentTest)
	}

	c.state = stateSession

	if !c.capturing() {
		return nil, nil
	}

	props := map[string]string{
		PropertyCoverage: FormatCoverage(c.currentNormal, c.pendingStatic),
	}

	if len(c.outOfTests) > 0 {
		props[PropertyOutOfTests] = FormatIDList(c.outOfTests)
		c.outOfTests = nil
	}

	c.currentNormal = nil
	c.pendingStatic = nil

	return props, nil
}

// SessionEnd transitions Session -> Idle.
func (c *Collector) SessionEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateSession {
		return fmt.Errorf("session end in state %d", c.state)
	}

	c.state = stateIdle
	c.active = NoActiveMutant

	return nil
}

// HitNormal appends a mutant id to the current test's normal-hit set.
func (c *Collector) HitNormal(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing() || c.state != stateTest {
		return
	}

	c.currentNormal = appendUnique(c.currentNormal, id)
}

// HitStatic appends a mutant id to the static-hit set. Static hits are
// shared across tests and drained when a test ends.
func (c *Collector) HitStatic(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing() {
		return
	}

	c.pendingStatic = appendUnique(c.pendingStatic, id)
}

// ActiveMutant returns the id the host should activate, NoActiveMutant when
// running original code.
func (c *Collector) ActiveMutant() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// capturing must be called with the mutex held.
func (c *Collector) capturing() bool {
	return c.settings.Capture && c.active == NoActiveMutant
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}

	return append(ids, id)
}
