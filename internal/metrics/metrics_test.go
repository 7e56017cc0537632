package metrics

import (
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/getsentry/tickprof/internal/callgraph"
	"github.com/getsentry/tickprof/internal/testutil"
)

func testGraph() *callgraph.Graph {
	g := callgraph.New()
	g.Record("B", 2, 0, 0, "A")
	g.Record("B", 2, 0, 0, "A")
	g.Record("A", 6, 0, 0, callgraph.SliceNode)
	g.Record("Creep.move", 1, 1, 0, callgraph.SliceNode)
	g.Record("Creep.move", 1, 0, 1, "A")
	return g
}

func TestAggregatorAddGraph(t *testing.T) {
	tests := []struct {
		name   string
		graphs int
		limit  uint
		want   []FunctionMetrics
	}{
		{
			name:   "single graph",
			graphs: 1,
			want: []FunctionMetrics{
				{Name: "A", Calls: 1, Sum: 6, Avg: 6, Self: 1, Callers: 1},
				{Name: "B", Calls: 2, Sum: 4, Avg: 2, Self: 4, Callers: 1},
				{Name: "Creep.move", Calls: 2, Sum: 2, Avg: 1, Self: 2, Successes: 1, Failures: 1, Callers: 2},
				{Name: callgraph.SliceNode},
			},
		},
		{
			name:   "merged graphs with a limit",
			graphs: 2,
			limit:  2,
			want: []FunctionMetrics{
				{Name: "A", Calls: 2, Sum: 12, Avg: 6, Self: 2, Callers: 2},
				{Name: "B", Calls: 4, Sum: 8, Avg: 2, Self: 8, Callers: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewAggregator(tt.limit)
			for i := 0; i < tt.graphs; i++ {
				ma.AddGraph(testGraph())
			}
			if diff := testutil.Diff(ma.ToMetrics(), tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestToMetricsKeepsDiscoveryOrderOnTies(t *testing.T) {
	g := callgraph.New()
	for _, name := range []string{"c", "a", "b"} {
		g.Record(name, 1, 0, 0, "")
	}
	var names []string
	for _, m := range FromGraph(g) {
		names = append(names, m.Name)
	}
	if diff := testutil.Diff(names, []string{"c", "a", "b"}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(func() Snapshot {
		return Snapshot{
			Active:    true,
			Ticks:     3,
			TotalTime: 12.5,
			Successes: 1,
			Failures:  1,
			Functions: FromGraph(testGraph()),
		}
	})

	// 5 session series and 4 series per function
	if n := promtestutil.CollectAndCount(c); n != 5+4*4 {
		t.Fatalf("unexpected number of series: %d", n)
	}

	expected := `
# HELP tickprof_session_cpu_total CPU used by all recorded slices.
# TYPE tickprof_session_cpu_total counter
tickprof_session_cpu_total 12.5
`
	if err := promtestutil.CollectAndCompare(c, strings.NewReader(expected), "tickprof_session_cpu_total"); err != nil {
		t.Fatal(err)
	}
}
