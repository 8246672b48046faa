// Package queryset is a small in-memory data layer whose query results
// have no defined order unless one is requested.
//
// Rows are stored in a map and All() snapshots them in map iteration
// order, which Go randomizes between iterations. A test that asserts on
// rows.At(0) and rows.At(1) of an unordered result therefore passes or
// fails from run to run, exactly like a test against a database table
// without ORDER BY.
//
// A model declared with OrderBy returns sorted results:
//
//	var Widget = queryset.Register[Row]("Widget")
//	var Article = queryset.Register("Article", queryset.OrderBy(byTitle))
//
// Positional reads can be observed by installing an IndexHook with
// Manager.Instrument; package recorder uses this to detect
// order-dependent tests at run time.
package queryset

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
)

// ErrAlreadyInstrumented is returned by Manager.Instrument when a hook
// is already installed.
var ErrAlreadyInstrumented = errors.New("queryset: manager already instrumented")

// Receiver is the collection a positional read was made on.
type Receiver interface {
	// Source is the model name the collection was fetched from.
	Source() string
	// Ordered reports whether the collection has a defined order.
	Ordered() bool
}

// Span is the index passed to an IndexHook for a Slice call.
type Span struct {
	Lo, Hi int
}

// IndexHook observes a positional read. index is an int for At and
// First, and a Span for Slice. callerFile is the file of the code that
// made the read.
type IndexHook func(index any, recv Receiver, callerFile string)

// Option configures a model at registration.
type Option[T any] func(*Model[T])

// OrderBy gives a model a default ordering. Results of All() are sorted
// with cmp, which returns a negative number when a sorts before b.
func OrderBy[T any](cmp func(a, b T) int) Option[T] {
	return func(m *Model[T]) {
		m.order = cmp
	}
}

// Model is a registered row type.
type Model[T any] struct {
	name  string
	order func(a, b T) int

	// Objects is the model's default manager.
	Objects *Manager[T]
}

// Register declares a model. Registration has no global effect; the
// returned value is the model's only handle.
func Register[T any](name string, opts ...Option[T]) *Model[T] {
	m := &Model[T]{name: name}
	for _, opt := range opts {
		opt(m)
	}
	m.Objects = &Manager[T]{model: m, rows: make(map[int]T)}
	return m
}

// Name returns the model name.
func (m *Model[T]) Name() string { return m.name }

// Ordered reports whether the model was registered with OrderBy.
func (m *Model[T]) Ordered() bool { return m.order != nil }

// Manager stores a model's rows and runs queries against them. It is
// safe for concurrent use.
type Manager[T any] struct {
	model *Model[T]

	mu     sync.Mutex
	rows   map[int]T
	nextID int
	hook   IndexHook
}

// Create stores row and returns its id.
func (m *Manager[T]) Create(row T) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[m.nextID] = row
	return m.nextID
}

// Count returns the number of stored rows.
func (m *Manager[T]) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Delete removes every row.
func (m *Manager[T]) Delete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.rows)
}

// All returns every row. The order is unspecified unless the model
// declares an ordering.
func (m *Manager[T]) All() *QuerySet[T] {
	rows := m.snapshot()
	if m.model.order != nil {
		slices.SortStableFunc(rows, m.model.order)
	}
	return &QuerySet[T]{manager: m, rows: rows, ordered: m.model.order != nil}
}

// OrderBy returns every row sorted with cmp.
func (m *Manager[T]) OrderBy(cmp func(a, b T) int) *QuerySet[T] {
	rows := m.snapshot()
	slices.SortStableFunc(rows, cmp)
	return &QuerySet[T]{manager: m, rows: rows, ordered: true}
}

func (m *Manager[T]) snapshot() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]T, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, r)
	}
	return rows
}

// Instrument installs hook for every positional read on querysets of
// this manager, including querysets fetched before the call. The
// returned restore func removes the hook; it is idempotent.
func (m *Manager[T]) Instrument(hook IndexHook) (restore func(), err error) {
	if hook == nil {
		return nil, errors.New("queryset: nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hook != nil {
		return nil, fmt.Errorf("instrumenting %s: %w", m.model.name, ErrAlreadyInstrumented)
	}
	m.hook = hook

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.hook = nil
			m.mu.Unlock()
		})
	}, nil
}

// Instrumented reports whether a hook is installed.
func (m *Manager[T]) Instrumented() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hook != nil
}

func (m *Manager[T]) currentHook() IndexHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hook
}

// QuerySet is the immutable result of a query.
type QuerySet[T any] struct {
	manager *Manager[T]
	rows    []T
	ordered bool
}

// Source implements Receiver.
func (q *QuerySet[T]) Source() string { return q.manager.model.name }

// Ordered implements Receiver.
func (q *QuerySet[T]) Ordered() bool { return q.ordered }

// Len returns the number of rows.
func (q *QuerySet[T]) Len() int { return len(q.rows) }

// At returns the row at position i. Negative positions count from the
// end. It panics when i is out of range, like a slice index.
func (q *QuerySet[T]) At(i int) T {
	return q.at(i, 2)
}

// First returns the first row, or false when the result is empty.
func (q *QuerySet[T]) First() (T, bool) {
	if len(q.rows) == 0 {
		var zero T
		return zero, false
	}
	return q.at(0, 1), true
}

// at reads position i and reports it to the hook with the file of the
// frame skip levels above at.
func (q *QuerySet[T]) at(i, skip int) T {
	if hook := q.manager.currentHook(); hook != nil {
		_, file, _, _ := runtime.Caller(skip)
		hook(i, q, file)
	}
	n := i
	if n < 0 {
		n += len(q.rows)
	}
	if n < 0 || n >= len(q.rows) {
		panic(fmt.Sprintf("queryset: index %d out of range [%d rows of %s]", i, len(q.rows), q.Source()))
	}
	return q.rows[n]
}

// Slice returns rows [lo, hi) as a new queryset with the same ordering.
func (q *QuerySet[T]) Slice(lo, hi int) *QuerySet[T] {
	if hook := q.manager.currentHook(); hook != nil {
		_, file, _, _ := runtime.Caller(1)
		hook(Span{Lo: lo, Hi: hi}, q, file)
	}
	lo = max(0, min(lo, len(q.rows)))
	hi = max(lo, min(hi, len(q.rows)))
	return &QuerySet[T]{manager: q.manager, rows: slices.Clone(q.rows[lo:hi]), ordered: q.ordered}
}

// Values returns a copy of the rows without reporting positional reads.
func (q *QuerySet[T]) Values() []T {
	return slices.Clone(q.rows)
}
