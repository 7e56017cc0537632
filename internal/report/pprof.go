package report

import (
	"fmt"
	"math"

	"github.com/google/pprof/profile"

	"github.com/getsentry/tickprof/internal/callgraph"
	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/session"
)

type caller struct {
	name string
	edge *callgraph.Edge
}

// Pprof converts the session into a pprof profile with a call count and a
// CPU time per sample.
//
// The graph only knows immediate callers, so stacks are at most two frames
// deep. The exclusive time of a function is split across its callers in
// proportion to the time each caller spent in it, or to the call counts when
// no time was observed.
func Pprof(s *session.Session, tick int64) (*profile.Profile, error) {
	if s == nil {
		return nil, errorutil.ErrNotActive
	}

	cpu := &profile.ValueType{Type: "cpu", Unit: "nanoseconds"}
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "calls", Unit: "count"},
			cpu,
		},
		PeriodType:    cpu,
		Period:        1,
		DurationNanos: nanos(s.TotalTime),
		Comments: []string{
			fmt.Sprintf("mode=%s ticks=%d", s.Mode, s.ElapsedTicks(tick)),
		},
	}

	nodes := s.Graph.Nodes()
	callers := make(map[string][]caller, len(nodes))
	for _, n := range nodes {
		for _, e := range n.Edges {
			callers[e.Callee] = append(callers[e.Callee], caller{name: n.Name, edge: e})
		}
	}

	locations := make(map[string]*profile.Location, len(nodes))
	location := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}
		fn := &profile.Function{
			ID:         uint64(len(prof.Function) + 1),
			Name:       name,
			SystemName: name,
		}
		loc := &profile.Location{
			ID:   uint64(len(prof.Location) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		locations[name] = loc
		return loc
	}

	for _, n := range nodes {
		self := n.ExclusiveTime()
		in := callers[n.Name]
		if len(in) == 0 {
			if n.Calls == 0 && self == 0 {
				continue
			}
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: []*profile.Location{location(n.Name)},
				Value:    []int64{n.Calls, nanos(self)},
			})
			continue
		}

		var weight float64
		byTime := true
		for _, c := range in {
			weight += c.edge.Time
		}
		if weight <= 0 {
			byTime = false
			weight = 0
			for _, c := range in {
				weight += float64(c.edge.Calls)
			}
		}
		for _, c := range in {
			share := c.edge.Time
			if !byTime {
				share = float64(c.edge.Calls)
			}
			var cost float64
			if weight > 0 {
				cost = self * share / weight
			}
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: []*profile.Location{location(n.Name), location(c.name)},
				Value:    []int64{c.edge.Calls, nanos(cost)},
			})
		}
	}

	if err := prof.CheckValid(); err != nil {
		return nil, err
	}
	return prof, nil
}

// nanos converts CPU milliseconds to nanoseconds.
func nanos(ms float64) int64 {
	return int64(math.Round(ms * 1e6))
}
