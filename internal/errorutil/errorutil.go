package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrAlreadyWrapped is returned when a callable that already carries the
// profiler instrumentation is passed to the wrapper again.
var ErrAlreadyWrapped = errors.New("attempted to double wrap a function")

// ErrNotFound indicates no persisted state exists for the requested key.
var ErrNotFound = errors.New("object not found")

// ErrNotActive is returned by report builders that cannot express the
// "not active" state as text.
var ErrNotActive = errors.New("profiler not active")

// NotActive is the text rendered when a report is requested while no session
// exists.
const NotActive = "Profiler not active."
