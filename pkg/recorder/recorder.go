// Package recorder detects order-dependent tests at run time.
//
// A Recorder is armed for one test, attached to the queryset managers
// the test reads from, and evaluated when the test ends. It records
// every integer position the test itself reads from an unordered
// result; if two or more distinct positions were read, the test is
// failed with "Possible flaky test detected".
//
//	func TestWidgets(t *testing.T) {
//		recorder.Arm(t, recorder.Watch(Widget.Objects))
//		rows := Widget.Objects.All()
//		...
//	}
package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/unbound-force/orderflake/pkg/queryset"
)

// ErrFlakinessDetected is the sentinel wrapped by every FlakinessError.
var ErrFlakinessDetected = errors.New("Possible flaky test detected")

// ErrInvalidState is returned when a lifecycle hook is called out of
// order.
var ErrInvalidState = errors.New("recorder: invalid state")

// State is the lifecycle state of a Recorder.
type State int

const (
	// Idle is the state before setup and after a reset.
	Idle State = iota
	// Armed means setup ran and no qualifying read was seen yet.
	Armed
	// Recording means at least one qualifying read was recorded.
	Recording
	// Evaluated means teardown ran.
	Evaluated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	case Evaluated:
		return "evaluated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the verdict of a teardown.
type Outcome int

const (
	Clean Outcome = iota
	Flaky
)

func (o Outcome) String() string {
	if o == Flaky {
		return "flaky"
	}
	return "clean"
}

// FlakinessError reports a test that read several positions of an
// unordered result.
type FlakinessError struct {
	Test    string
	Indices []int
	Sources []string
}

func (e *FlakinessError) Error() string {
	var b strings.Builder
	b.WriteString(ErrFlakinessDetected.Error())
	if e.Test != "" {
		fmt.Fprintf(&b, " in %s", e.Test)
	}
	fmt.Fprintf(&b, ": positions %v of unordered %s were read",
		e.Indices, strings.Join(e.Sources, ", "))
	return b.String()
}

func (e *FlakinessError) Unwrap() error { return ErrFlakinessDetected }

// Instrumentable is a data source whose positional reads can be
// observed. *queryset.Manager implements it.
type Instrumentable interface {
	Instrument(hook queryset.IndexHook) (restore func(), err error)
}

// Oracle reports whether a data source has an explicit ordering. It
// must return false for sources it does not know.
type Oracle interface {
	HasOrdering(source string) bool
}

// OrderedSources is an Oracle that knows a fixed set of ordered
// sources by name.
type OrderedSources []string

// HasOrdering implements Oracle.
func (o OrderedSources) HasOrdering(source string) bool {
	return slices.Contains(o, source)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithOracle adds an ordering oracle. A read on a source the oracle
// reports as ordered is not recorded.
func WithOracle(o Oracle) Option {
	return func(r *Recorder) { r.oracle = o }
}

// WithTestFile sets the file whose reads are recorded. Without it,
// Arm uses the test file found on the call stack, and a Recorder made
// with New records reads from any _test.go file.
func WithTestFile(path string) Option {
	return func(r *Recorder) { r.testFile = filepath.Clean(path) }
}

// Watch attaches managers when the recorder is armed with Arm.
func Watch(ms ...Instrumentable) Option {
	return func(r *Recorder) { r.pending = append(r.pending, ms...) }
}

// Recorder holds the index set of one test execution. It is safe for
// concurrent use; separate tests must use separate Recorders.
type Recorder struct {
	oracle   Oracle
	testFile string
	pending  []Instrumentable

	mu       sync.Mutex
	state    State
	indices  map[int]struct{}
	sources  map[string]struct{}
	restores []func()
}

// New returns an idle Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Indices returns the distinct recorded positions, sorted.
func (r *Recorder) Indices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedIndices()
}

func (r *Recorder) sortedIndices() []int {
	out := make([]int, 0, len(r.indices))
	for i := range r.indices {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// OnTestSetup moves the recorder from Idle (or a previous Evaluated)
// to Armed with an empty index set.
func (r *Recorder) OnTestSetup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Armed || r.state == Recording {
		return fmt.Errorf("setup while %s: %w", r.state, ErrInvalidState)
	}
	r.state = Armed
	r.indices = make(map[int]struct{})
	r.sources = make(map[string]struct{})
	return nil
}

// Attach instruments m for the rest of the test. The recorder must be
// armed. On error, m is left as it was.
func (r *Recorder) Attach(m Instrumentable) error {
	r.mu.Lock()
	if r.state != Armed && r.state != Recording {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("attach while %s: %w", state, ErrInvalidState)
	}
	r.mu.Unlock()

	// Instrument outside the lock: the manager takes its own lock, and
	// hooks firing on other goroutines take ours.
	restore, err := m.Instrument(r.OnIndexAccess)
	if err != nil {
		return fmt.Errorf("attaching recorder: %w", err)
	}
	r.mu.Lock()
	r.restores = append(r.restores, restore)
	r.mu.Unlock()
	return nil
}

// OnIndexAccess records index when it is an int, the receiver is not
// ordered, and the read was made from the test's own file. It is the
// queryset.IndexHook installed by Attach.
func (r *Recorder) OnIndexAccess(index any, recv queryset.Receiver, callerFile string) {
	i, ok := index.(int)
	if !ok || recv == nil {
		return
	}
	if recv.Ordered() || (r.oracle != nil && r.oracle.HasOrdering(recv.Source())) {
		return
	}
	if !r.fromTestFile(callerFile) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Armed && r.state != Recording {
		return
	}
	r.indices[i] = struct{}{}
	r.sources[recv.Source()] = struct{}{}
	r.state = Recording
}

func (r *Recorder) fromTestFile(callerFile string) bool {
	if callerFile == "" {
		return false
	}
	if r.testFile == "" {
		return strings.HasSuffix(callerFile, "_test.go")
	}
	return filepath.Clean(callerFile) == r.testFile
}

// Restore removes every hook installed by Attach. It is safe to call
// more than once.
func (r *Recorder) Restore() {
	r.mu.Lock()
	restores := r.restores
	r.restores = nil
	r.mu.Unlock()

	for i := len(restores) - 1; i >= 0; i-- {
		restores[i]()
	}
}

// OnTestTeardown restores every attached manager and evaluates the
// index set. The error is a *FlakinessError when the outcome is Flaky.
func (r *Recorder) OnTestTeardown() (Outcome, error) {
	r.Restore()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Armed && r.state != Recording {
		return Clean, fmt.Errorf("teardown while %s: %w", r.state, ErrInvalidState)
	}
	r.state = Evaluated
	if len(r.indices) < 2 {
		return Clean, nil
	}

	sources := make([]string, 0, len(r.sources))
	for s := range r.sources {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return Flaky, &FlakinessError{Indices: r.sortedIndices(), Sources: sources}
}

// TB is the subset of testing.TB used by Arm.
type TB interface {
	Helper()
	Name() string
	Cleanup(func())
	Errorf(format string, args ...any)
}

// Arm creates a Recorder for tb, arms it, attaches the managers passed
// with Watch and registers a cleanup that restores them and fails tb
// when the test read two or more positions of an unordered result.
// The cleanup runs whether the test passed, failed or panicked.
func Arm(tb TB, opts ...Option) *Recorder {
	tb.Helper()
	r := New(opts...)
	if r.testFile == "" {
		r.testFile = callerTestFile()
	}
	if err := r.OnTestSetup(); err != nil {
		tb.Errorf("arming recorder: %v", err)
		return r
	}
	tb.Cleanup(func() {
		_, err := r.OnTestTeardown()
		var fe *FlakinessError
		if errors.As(err, &fe) {
			fe.Test = tb.Name()
		}
		if err != nil {
			tb.Errorf("%v", err)
		}
	})
	for _, m := range r.pending {
		if err := r.Attach(m); err != nil {
			tb.Errorf("%v", err)
		}
	}
	r.pending = nil
	return r
}

// callerTestFile returns the first _test.go file on the call stack.
func callerTestFile() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if strings.HasSuffix(f.File, "_test.go") {
			return filepath.Clean(f.File)
		}
		if !more {
			return ""
		}
	}
}
