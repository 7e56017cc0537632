package metrics

import (
	"sort"

	"github.com/getsentry/tickprof/internal/callgraph"
)

type FunctionMetrics struct {
	Name      string  `json:"name"`
	Calls     int64   `json:"calls"`
	Sum       float64 `json:"sum"`
	Avg       float64 `json:"avg"`
	Self      float64 `json:"self"`
	Successes int64   `json:"successes"`
	Failures  int64   `json:"failures"`
	Callers   int     `json:"callers"`
}

// Aggregator sums function statistics over one or more call graphs. Functions
// keep the order in which they were first seen, which is used to break ties
// when sorting.
type Aggregator struct {
	MaxUniqueFunctions uint

	order     []string
	functions map[string]*FunctionMetrics
}

// NewAggregator returns an aggregator keeping at most maxUniqueFunctions rows
// in its output, or all of them when the limit is 0.
func NewAggregator(maxUniqueFunctions uint) Aggregator {
	return Aggregator{
		MaxUniqueFunctions: maxUniqueFunctions,
		functions:          make(map[string]*FunctionMetrics),
	}
}

func (ma *Aggregator) AddGraph(g *callgraph.Graph) {
	if g == nil {
		return
	}
	for _, n := range g.Nodes() {
		fn, ok := ma.functions[n.Name]
		if !ok {
			fn = &FunctionMetrics{Name: n.Name}
			ma.functions[n.Name] = fn
			ma.order = append(ma.order, n.Name)
		}
		fn.Calls += n.Calls
		fn.Sum += n.Time
		if n.Calls > 0 {
			// nodes only seen as callers have no time of their own
			fn.Self += n.ExclusiveTime()
		}
		fn.Successes += n.Successes
		fn.Failures += n.Failures
	}
	for _, n := range g.Nodes() {
		for _, e := range n.Edges {
			if callee, ok := ma.functions[e.Callee]; ok {
				callee.Callers++
			}
		}
	}
}

// ToMetrics returns the aggregated functions sorted by descending total time.
func (ma *Aggregator) ToMetrics() []FunctionMetrics {
	metrics := make([]FunctionMetrics, 0, len(ma.order))
	for _, name := range ma.order {
		f := *ma.functions[name]
		if f.Calls > 0 {
			f.Avg = f.Sum / float64(f.Calls)
		}
		metrics = append(metrics, f)
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].Sum > metrics[j].Sum
	})
	if ma.MaxUniqueFunctions > 0 && len(metrics) > int(ma.MaxUniqueFunctions) {
		metrics = metrics[:ma.MaxUniqueFunctions]
	}
	return metrics
}

// FromGraph is a shortcut for aggregating a single graph without a limit.
func FromGraph(g *callgraph.Graph) []FunctionMetrics {
	ma := NewAggregator(0)
	ma.AddGraph(g)
	return ma.ToMetrics()
}
