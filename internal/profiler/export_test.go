package profiler

import (
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/getsentry/tickprof/internal/session"
)

var ignoreGraph = cmpopts.IgnoreFields(session.Session{}, "Graph")
