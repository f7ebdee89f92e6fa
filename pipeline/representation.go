package pipeline

import (
	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/dijkstra"
)

// Representation is the conversion-graph vertex: one in-memory image
// representation, identified by its flavor's canonical label.
type Representation struct {
	flavor core.Flavor
}

// NewRepresentation wraps a flavor as a graph vertex.
func NewRepresentation(flavor core.Flavor) Representation {
	return Representation{flavor: flavor}
}

// Flavor returns the wrapped flavor.
func (r Representation) Flavor() core.Flavor { return r.flavor }

// Key returns the canonical label providing vertex identity, ordering, and
// the deterministic tie-break during pathfinding.
func (r Representation) Key() string { return r.flavor.String() }

func (r Representation) String() string { return r.Key() }

var _ dijkstra.Vertex = Representation{}
