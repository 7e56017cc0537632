// Package callgraph aggregates invocation costs into per-function totals and
// per caller/callee edge totals.
//
// Every time recorded here is inclusive: it covers everything that happened
// while the invocation was running. Exclusive (self) time is derived by
// subtracting the inclusive time of a node's direct edges.
package callgraph

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/getsentry/tickprof/internal/errorutil"
)

const (
	// SliceNode is the caller attributed to invocations made directly by the
	// slice body.
	SliceNode = "(tick)"
	// RootNode is the synthetic root injected above SliceNode by reports.
	RootNode = "(root)"
)

var errDataIntegrityDuplicateNode = fmt.Errorf("callgraph: %w: duplicate node", errorutil.ErrDataIntegrity)

type Stats struct {
	Calls     int64   `json:"calls"`
	Time      float64 `json:"time"`
	Successes int64   `json:"successes,omitempty"`
	Failures  int64   `json:"failures,omitempty"`
}

func (s *Stats) observe(elapsed float64, successes, failures int64) {
	s.Calls++
	s.Time += elapsed
	s.Successes += successes
	s.Failures += failures
}

// Average returns the mean inclusive time per call, 0 for a node that was
// only ever seen as a caller.
func (s Stats) Average() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.Time / float64(s.Calls)
}

// Edge holds the statistics of invocations of Callee made while the owning
// node was the immediate caller.
type Edge struct {
	Callee string `json:"callee"`
	Stats
}

type Node struct {
	Name string `json:"name"`
	Stats
	Edges []*Edge `json:"edges,omitempty"`

	edges map[string]*Edge
}

// Edge returns the edge toward callee if one was recorded.
func (n *Node) Edge(callee string) (*Edge, bool) {
	if n.edges == nil {
		n.reindex()
	}
	e, ok := n.edges[callee]
	return e, ok
}

// EnsureEdge returns the edge toward callee, creating it with zero counters
// if it doesn't exist yet.
func (n *Node) EnsureEdge(callee string) *Edge {
	if e, ok := n.Edge(callee); ok {
		return e
	}
	e := &Edge{Callee: callee}
	n.Edges = append(n.Edges, e)
	n.edges[callee] = e
	return e
}

func (n *Node) reindex() {
	n.edges = make(map[string]*Edge, len(n.Edges))
	for _, e := range n.Edges {
		n.edges[e.Callee] = e
	}
}

// EdgeTime is the sum of the inclusive time of all direct edges.
func (n *Node) EdgeTime() float64 {
	var t float64
	for _, e := range n.Edges {
		t += e.Time
	}
	return t
}

// ExclusiveTime converts the node's inclusive time into self time, never
// below zero. A caller that sits outside a name filter only appears as the
// source of edges, with no time of its own, and has no self time.
func (n *Node) ExclusiveTime() float64 {
	return math.Max(n.Time-n.EdgeTime(), 0)
}

// Graph is the root mapping of nodes, kept in discovery order.
type Graph struct {
	nodes []*Node
	index map[string]*Node
}

func New() *Graph {
	return &Graph{index: make(map[string]*Node)}
}

// Record attributes one invocation of name. When caller is not empty the same
// increments are applied to the caller's edge toward name, and the caller is
// made queryable at the root level.
func (g *Graph) Record(name string, elapsed float64, successes, failures int64, caller string) {
	g.Ensure(name).observe(elapsed, successes, failures)
	if caller == "" {
		return
	}
	g.Ensure(caller).EnsureEdge(name).observe(elapsed, successes, failures)
}

// Ensure returns the node for name, creating it with zero counters if it
// doesn't exist yet. Existing counters are never reset.
func (g *Graph) Ensure(name string) *Node {
	if g.index == nil {
		g.index = make(map[string]*Node)
	}
	if n, ok := g.index[name]; ok {
		return n
	}
	n := &Node{Name: name, edges: make(map[string]*Edge)}
	g.nodes = append(g.nodes, n)
	g.index[name] = n
	return n
}

func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// Nodes returns the nodes in the order they were first observed.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// Clone returns a deep copy of the graph, so reports can inject synthetic
// nodes without touching the session's data.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		nodes: make([]*Node, 0, len(g.nodes)),
		index: make(map[string]*Node, len(g.nodes)),
	}
	for _, n := range g.nodes {
		c := &Node{
			Name:  n.Name,
			Stats: n.Stats,
			Edges: make([]*Edge, 0, len(n.Edges)),
		}
		for _, e := range n.Edges {
			copied := *e
			c.Edges = append(c.Edges, &copied)
		}
		c.reindex()
		clone.nodes = append(clone.nodes, c)
		clone.index[c.Name] = c
	}
	return clone
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	nodes := g.nodes
	if nodes == nil {
		nodes = []*Node{}
	}
	return json.Marshal(nodes)
}

func (g *Graph) UnmarshalJSON(b []byte) error {
	var nodes []*Node
	if err := json.Unmarshal(b, &nodes); err != nil {
		return err
	}
	g.nodes = make([]*Node, 0, len(nodes))
	g.index = make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if _, ok := g.index[n.Name]; ok {
			return fmt.Errorf("%w: %q", errDataIntegrityDuplicateNode, n.Name)
		}
		n.reindex()
		if len(n.edges) != len(n.Edges) {
			return fmt.Errorf("%w: duplicate edge under %q", errDataIntegrityDuplicateNode, n.Name)
		}
		g.nodes = append(g.nodes, n)
		g.index[n.Name] = n
	}
	return nil
}
