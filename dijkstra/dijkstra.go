// Package dijkstra implements Dijkstra's shortest path algorithm for a
// directed graph with non-negative edge penalties.  It is graph-agnostic:
// the structure of the graph is supplied through the EdgeDirectory interface
// and may be discovered lazily during traversal.
package dijkstra

import (
	"container/heap"
	"errors"
)

// Infinite is the penalty reported for unreachable vertices.
const Infinite = int(^uint32(0) >> 1) // max int32

// Vertex is a node in the graph.  Key must be unique, stable, and totally
// ordered; it provides both identity and the deterministic tie-break when
// two frontier vertices carry the same penalty.
type Vertex interface {
	Key() string
}

// EdgeDirectory supplies the graph structure.
type EdgeDirectory interface {
	// Penalty returns the edge penalty between two vertices, or 0 if no
	// single edge connects them.
	Penalty(start, end Vertex) int
	// Destinations returns all vertices directly reachable from origin.
	Destinations(origin Vertex) []Vertex
}

// ErrMissingVertex is returned by Execute when start or destination is nil.
var ErrMissingVertex = errors.New("dijkstra: start and destination must not be nil")

// Engine computes single-pair shortest paths.  An Engine is reusable: every
// Execute call clears all state from the prior run.  It is not safe for
// concurrent use.
type Engine struct {
	edges EdgeDirectory

	queue           frontier
	settled         map[string]bool
	lowestPenalties map[string]int
	predecessors    map[string]Vertex
}

// New creates an Engine over the given edge directory.
func New(edges EdgeDirectory) *Engine {
	return &Engine{edges: edges}
}

func (e *Engine) reset() {
	e.queue = e.queue[:0]
	e.settled = make(map[string]bool)
	e.lowestPenalties = make(map[string]int)
	e.predecessors = make(map[string]Vertex)
}

// Execute runs the shortest path search from start to destination.  After it
// returns, LowestPenalty and Predecessor describe the result; reconstruct the
// path by following predecessors backwards from the destination.  Absence of
// a path is not an error: the destination simply reports an Infinite penalty
// and no predecessor.
func (e *Engine) Execute(start, destination Vertex) error {
	if start == nil || destination == nil {
		return ErrMissingVertex
	}

	e.reset()
	e.lowestPenalties[start.Key()] = 0
	heap.Push(&e.queue, frontierEntry{vertex: start, penalty: 0})

	for e.queue.Len() > 0 {
		entry := heap.Pop(&e.queue).(frontierEntry)
		key := entry.vertex.Key()
		// Skip superseded queue entries and already-settled vertices.
		if e.settled[key] || entry.penalty != e.lowestPenalties[key] {
			continue
		}
		if key == destination.Key() {
			break
		}
		e.settled[key] = true
		e.relax(entry.vertex)
	}
	return nil
}

// relax computes new lowest penalties for the neighbors of u and updates the
// frontier and predecessor map where a better route is found.
func (e *Engine) relax(u Vertex) {
	base := e.LowestPenalty(u)
	for _, v := range e.edges.Destinations(u) {
		key := v.Key()
		if e.settled[key] {
			continue
		}
		penalty := saturatingAdd(base, e.edges.Penalty(u, v))
		if penalty < e.LowestPenalty(v) {
			e.lowestPenalties[key] = penalty
			e.predecessors[key] = u
			heap.Push(&e.queue, frontierEntry{vertex: v, penalty: penalty})
		}
	}
}

// LowestPenalty returns the lowest penalty found from the start to vertex,
// or Infinite if the vertex is unreachable.
func (e *Engine) LowestPenalty(vertex Vertex) int {
	if p, ok := e.lowestPenalties[vertex.Key()]; ok {
		return p
	}
	return Infinite
}

// Predecessor returns the vertex preceding vertex on the shortest path, or
// nil if the vertex is unreachable or is the start.
func (e *Engine) Predecessor(vertex Vertex) Vertex {
	return e.predecessors[vertex.Key()]
}

func saturatingAdd(a, b int) int {
	sum := int64(a) + int64(b)
	if sum >= int64(Infinite) {
		return Infinite
	}
	return int(sum)
}

// frontierEntry is one queued (vertex, penalty) pair.  Entries are never
// removed on decrease-key; superseded ones are skipped at pop time.
type frontierEntry struct {
	vertex  Vertex
	penalty int
}

// frontier is a priority queue ordered by (penalty, vertex key).  The key
// order makes the pop order, and therefore the chosen path among equals,
// deterministic.
type frontier []frontierEntry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].penalty != f[j].penalty {
		return f[i].penalty < f[j].penalty
	}
	return f[i].vertex.Key() < f[j].vertex.Key()
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierEntry)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	entry := old[n-1]
	*f = old[:n-1]
	return entry
}
