// Package billing describes the operations the host charges a flat price for
// when they succeed, independently of how long they took.
package billing

import (
	"reflect"
	"sort"
)

// ActionCost is the modeled CPU price of one successful action.
const ActionCost = 0.2

// OK is the result value the host returns for a successful action.
const OK = 0

// Classifier decides whether the outcome of an action counts as a success.
type Classifier func(result interface{}, err error) bool

// EqualsClassifier returns a classifier treating an action as successful when
// it returned no error and a result equal to ok. Integer and float results are
// compared numerically, so an int64(0) matches OK.
func EqualsClassifier(ok interface{}) Classifier {
	return func(result interface{}, err error) bool {
		if err != nil {
			return false
		}
		return equal(result, ok)
	}
}

// DefaultClassifier compares results to OK.
var DefaultClassifier = EqualsClassifier(OK)

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, xok := number(a)
	y, yok := number(b)
	if xok && yok {
		return x == y
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Type().Comparable() {
		return false
	}
	return a == b
}

func number(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Actions is the set of billable function identifiers. It is edited by the
// registration side at runtime and read on every wrapped invocation.
type Actions struct {
	names map[string]struct{}
}

// NewActions returns a set containing names.
func NewActions(names ...string) *Actions {
	a := &Actions{names: make(map[string]struct{}, len(names))}
	a.Add(names...)
	return a
}

// Default returns a set of the host's built-in billable actions.
func Default() *Actions {
	return NewActions(DefaultActions...)
}

func (a *Actions) Has(name string) bool {
	if a == nil {
		return false
	}
	_, ok := a.names[name]
	return ok
}

func (a *Actions) Add(names ...string) {
	for _, n := range names {
		a.names[n] = struct{}{}
	}
}

func (a *Actions) Remove(names ...string) {
	for _, n := range names {
		delete(a.names, n)
	}
}

// Replace swaps the whole set for names.
func (a *Actions) Replace(names ...string) {
	a.names = make(map[string]struct{}, len(names))
	a.Add(names...)
}

func (a *Actions) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

// Names returns the identifiers in lexical order.
func (a *Actions) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.names))
	for n := range a.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
