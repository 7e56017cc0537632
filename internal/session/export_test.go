package session

import (
	"github.com/google/go-cmp/cmp/cmpopts"
)

var ignoreGraph = cmpopts.IgnoreFields(Session{}, "Graph")
