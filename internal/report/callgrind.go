package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/getsentry/tickprof/internal/billing"
	"github.com/getsentry/tickprof/internal/callgraph"
	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/session"
)

// Costs are written in micro CPU units.
const (
	costScale       = 1_000_000
	actionCostScale = billing.ActionCost * costScale
)

const callgrindHeader = "event: uCPU_wall : uCPU total\n" +
	"event: uCPU_action : uCPU [A]action cost\n" +
	"event: uCPU_wall_minus_action : uCPU without [A]action cost\n" +
	"event: failures : failed [A]actions\n" +
	"events: uCPU_wall uCPU_action uCPU_wall_minus_action failures\n"

type cost struct {
	wall     float64
	action   float64
	failures int64
}

func (c cost) String() string {
	return fmt.Sprintf("%d %d %d %d",
		int64(math.Round(c.wall)),
		int64(math.Round(c.action)),
		int64(math.Round(c.wall-c.action)),
		c.failures,
	)
}

// Callgrind renders the session in the callgrind format understood by call
// graph visualizers.
//
// Node records carry exclusive costs, obtained by subtracting the inclusive
// time of the node's edges from its own inclusive time. Call records carry the
// inclusive cost of the edge. A "(root)" node calling "(tick)" once per
// elapsed slice ties every invocation to a single root.
func Callgrind(s *session.Session, tick int64) string {
	if s == nil {
		return errorutil.NotActive
	}

	g := injectRoot(s, tick)

	var total cost
	var body strings.Builder
	for _, n := range g.Nodes() {
		self := cost{
			wall:     n.ExclusiveTime() * costScale,
			action:   float64(n.Successes) * actionCostScale,
			failures: n.Failures,
		}
		total.action += self.action
		total.failures += self.failures

		fmt.Fprintf(&body, "\nfn=%s\n1 %s\n", n.Name, self)
		for _, e := range n.Edges {
			inclusive := cost{
				wall:     e.Time * costScale,
				action:   float64(e.Successes) * actionCostScale,
				failures: e.Failures,
			}
			fmt.Fprintf(&body, "cfn=%s\ncalls=%d 1\n1 %s\n", e.Callee, e.Calls, inclusive)
		}
	}
	total.wall = s.TotalTime * costScale

	return callgrindHeader + "summary: " + total.String() + "\n" + body.String()
}

// injectRoot returns a copy of the session graph with the synthetic slice and
// root nodes filled in.
func injectRoot(s *session.Session, tick int64) *callgraph.Graph {
	g := s.Graph.Clone()
	elapsed := s.ElapsedTicks(tick)

	slice := g.Ensure(callgraph.SliceNode)
	slice.Calls = elapsed
	slice.Time = s.TotalTime

	root := g.Ensure(callgraph.RootNode)
	root.Calls = 1
	root.Time = s.TotalTime
	e := root.EnsureEdge(callgraph.SliceNode)
	e.Calls = elapsed
	e.Time = s.TotalTime
	return g
}
