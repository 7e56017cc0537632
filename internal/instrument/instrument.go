// Package instrument wraps callables so that each invocation is measured and
// attributed to its immediate caller.
//
// There is no call stack. A Tracker keeps a single "current caller" name that
// every wrapped invocation saves, overwrites with its own name and restores
// on return. Since restores happen in reverse order of the saves, the
// immediate caller is always exact. Anything beyond one hop is not tracked:
// A called directly and A called through several levels of B look the same.
package instrument

import (
	"fmt"

	"github.com/getsentry/tickprof/internal/billing"
	"github.com/getsentry/tickprof/internal/callgraph"
	"github.com/getsentry/tickprof/internal/clock"
	"github.com/getsentry/tickprof/internal/errorutil"
)

// Mode selects how the original callable is entered.
type Mode uint8

const (
	// ModeCall is a plain call with an optional receiver.
	ModeCall Mode = iota
	// ModeConstruct asks the callable to build a new value from the
	// arguments.
	ModeConstruct
)

func (m Mode) String() string {
	if m == ModeConstruct {
		return "construct"
	}
	return "call"
}

// Invocation is one call of a Callable: a plain call on Receiver or a
// construction, with its arguments.
type Invocation struct {
	Mode     Mode
	Receiver interface{}
	Args     []interface{}
}

// Callable is anything the profiler can measure.
type Callable interface {
	Invoke(inv Invocation) (interface{}, error)
}

// Func adapts a function to the Callable interface.
type Func func(inv Invocation) (interface{}, error)

func (f Func) Invoke(inv Invocation) (interface{}, error) {
	return f(inv)
}

// Sink receives the measurements. Recording reports whether the profiler is
// currently recording and which function name, if any, recording is scoped
// to.
type Sink interface {
	Recording() (filter string, ok bool)
	Record(name string, elapsed float64, successes, failures int64, caller string)
}

// Tracker is the state shared by every wrapped callable of a profiler: the
// filter nesting depth, the current caller and the running success and
// failure totals of the slice.
//
// It is not safe for concurrent use. Wrapped callables must run to
// completion one at a time, nested in call/return order.
type Tracker struct {
	clock    clock.Clock
	sink     Sink
	actions  *billing.Actions
	classify billing.Classifier

	depth     int
	caller    string
	successes int64
	failures  int64
}

// NewTracker returns a tracker reading costs from c and recording into sink.
// A nil classify falls back to billing.DefaultClassifier.
func NewTracker(c clock.Clock, sink Sink, actions *billing.Actions, classify billing.Classifier) *Tracker {
	if classify == nil {
		classify = billing.DefaultClassifier
	}
	return &Tracker{
		clock:    c,
		sink:     sink,
		actions:  actions,
		classify: classify,
		caller:   callgraph.SliceNode,
	}
}

// Reset prepares the tracker for a new slice.
func (t *Tracker) Reset() {
	t.depth = 0
	t.caller = callgraph.SliceNode
	t.successes = 0
	t.failures = 0
}

// Outcomes returns the billable action outcomes observed since the last
// Reset.
func (t *Tracker) Outcomes() (successes, failures int64) {
	return t.successes, t.failures
}

func (t *Tracker) Caller() string {
	return t.caller
}

func (t *Tracker) Depth() int {
	return t.depth
}

// Wrap returns a callable measuring fn under name. Wrapping a callable that
// is already wrapped is a configuration error.
func (t *Tracker) Wrap(name string, fn Callable) (*Wrapped, error) {
	if _, ok := fn.(*Wrapped); ok {
		return nil, fmt.Errorf("instrument: %s: %w", name, errorutil.ErrAlreadyWrapped)
	}
	return &Wrapped{name: name, original: fn, tracker: t}, nil
}

func (t *Tracker) measure(name, filter string, fn Callable, inv Invocation) (interface{}, error) {
	matches := filter != "" && name == filter
	if matches {
		t.depth++
	}
	caller := t.caller
	t.caller = name

	completed := false
	defer func() {
		// Only reached without completion when fn panics.
		if !completed {
			t.caller = caller
			if matches {
				t.depth--
			}
		}
	}()

	start := t.clock.Used()
	result, err := fn.Invoke(inv)
	end := t.clock.Used()

	var successes, failures int64
	if t.actions.Has(name) {
		if t.classify(result, err) {
			successes = 1
		} else {
			failures = 1
		}
		t.successes += successes
		t.failures += failures
	}

	t.caller = caller
	if filter == "" || t.depth > 0 {
		elapsed := end - start
		if elapsed < 0 {
			elapsed = 0
		}
		t.sink.Record(name, elapsed, successes, failures, caller)
	}
	if matches {
		t.depth--
	}
	completed = true
	return result, err
}

// Wrapped is a measured callable. Its presence is the marker that prevents
// double wrapping.
type Wrapped struct {
	name     string
	original Callable
	tracker  *Tracker
}

func (w *Wrapped) Name() string {
	return w.name
}

// Unwrap returns the original callable.
func (w *Wrapped) Unwrap() Callable {
	return w.original
}

// Invoke delegates to the original callable with the same invocation. When
// the profiler isn't recording nothing else happens.
func (w *Wrapped) Invoke(inv Invocation) (interface{}, error) {
	filter, ok := w.tracker.sink.Recording()
	if !ok {
		return w.original.Invoke(inv)
	}
	return w.tracker.measure(w.name, filter, w.original, inv)
}

// Call invokes the callable as a plain call on recv.
func (w *Wrapped) Call(recv interface{}, args ...interface{}) (interface{}, error) {
	return w.Invoke(Invocation{Mode: ModeCall, Receiver: recv, Args: args})
}

// New invokes the callable as a constructor.
func (w *Wrapped) New(args ...interface{}) (interface{}, error) {
	return w.Invoke(Invocation{Mode: ModeConstruct, Args: args})
}

func (w *Wrapped) String() string {
	return "tickprof wrapped function: " + w.name
}
