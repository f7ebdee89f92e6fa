package pipeline

import (
	"sort"
	"sync"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/dijkstra"
)

// Factory builds candidate pipelines by running a shortest-path search over
// the conversion graph declared by the registry's converters.  It caches the
// graph view and rebuilds it when the registry's converter set changes.
type Factory struct {
	registry *core.Registry
	logger   core.Logger

	mu        sync.Mutex
	edges     *converterEdgeDirectory
	edgesMods int
}

// NewFactory creates a Factory over the given registry.
func NewFactory(registry *core.Registry, logger core.Logger) *Factory {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Factory{registry: registry, logger: logger}
}

// SetLogger replaces the factory's logger.
func (f *Factory) SetLogger(l core.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l == nil {
		l = core.NopLogger{}
	}
	f.logger = l
}

// edgeDirectory returns the cached graph view, rebuilding it when the
// registry's converter modification counter moved since the last build.
func (f *Factory) edgeDirectory() *converterEdgeDirectory {
	f.mu.Lock()
	defer f.mu.Unlock()
	converters, mods := f.registry.Converters()
	if f.edges == nil || mods != f.edgesMods {
		f.edges = newConverterEdgeDirectory(converters, f.registry)
		f.edgesMods = mods
		f.logger.Debug("pipeline.graph.rebuilt", "converters", len(converters))
	}
	return f.edges
}

// NewImageConverterPipeline builds the cheapest pipeline producing target
// from the image described by info.  A direct loader is preferred when one
// exists; otherwise every flavor a registered loader can produce for info's
// MIME type is tried as a path start.  Returns nil when the target flavor is
// unreachable.
func (f *Factory) NewImageConverterPipeline(info *core.ImageInfo, target core.Flavor) *Pipeline {
	if lf := f.registry.ImageLoaderFactory(info, target); lf != nil {
		return New(lf.NewLoader(target))
	}

	dir := f.edgeDirectory()
	engine := dijkstra.New(dir)
	targetRep := NewRepresentation(target)

	var best *Pipeline
	bestPenalty := core.InfinitePenalty
	for _, sourceFlavor := range f.registry.SupportedFlavorsForMime(info.MimeType) {
		lf := f.registry.ImageLoaderFactory(info, sourceFlavor)
		if lf == nil {
			continue
		}
		candidate := f.findPipeline(engine, dir, lf.NewLoader(sourceFlavor), sourceFlavor, targetRep)
		if candidate == nil {
			continue
		}
		penalty := candidate.ConversionPenalty(f.registry)
		if best == nil || penalty < bestPenalty {
			best = candidate
			bestPenalty = penalty
		}
	}
	if best != nil {
		f.logger.Debug("pipeline.built", "target", target.String(),
			"pipeline", best.String(), "penalty", bestPenalty.String())
	}
	return best
}

// findPipeline runs the shortest-path search from one producible flavor to
// the target representation and materializes the converter chain, or nil
// when no finite path exists.
func (f *Factory) findPipeline(engine *dijkstra.Engine, dir *converterEdgeDirectory,
	loader core.Loader, from core.Flavor, targetRep Representation) *Pipeline {

	// A producible flavor that already satisfies the target needs no
	// conversion at all; this also covers refined flavors answering an
	// unrefined request, which share no graph vertex.
	if from.Satisfies(targetRep.Flavor()) {
		return New(loader)
	}

	startRep := NewRepresentation(from)
	if err := engine.Execute(startRep, targetRep); err != nil {
		return nil
	}
	if engine.LowestPenalty(targetRep) == dijkstra.Infinite {
		return nil
	}

	// Walk the predecessor chain backwards from the destination.
	var converters []core.Converter
	current := dijkstra.Vertex(targetRep)
	for current.Key() != startRep.Key() {
		prev := engine.Predecessor(current)
		if prev == nil {
			return nil
		}
		conv := dir.converterFor(prev.(Representation), current.(Representation))
		if conv == nil {
			return nil
		}
		converters = append(converters, conv)
		current = prev
	}
	// Reverse into execution order.
	for i, j := 0, len(converters)-1; i < j; i, j = i+1, j-1 {
		converters[i], converters[j] = converters[j], converters[i]
	}
	return New(loader, converters...)
}

// DetermineCandidatePipelines builds one candidate pipeline per requested
// flavor, index-aligned with flavors; unreachable flavors yield nil entries.
// Ranking across candidates is the caller's concern, because a later-priority
// flavor may be reachable more cheaply.
func (f *Factory) DetermineCandidatePipelines(info *core.ImageInfo, flavors []core.Flavor) []*Pipeline {
	candidates := make([]*Pipeline, len(flavors))
	for i, flavor := range flavors {
		candidates[i] = f.NewImageConverterPipeline(info, flavor)
	}
	return candidates
}

// DetermineCandidatePipelinesFromImage builds converter-only candidate
// pipelines starting from an already-loaded image's flavor.
func (f *Factory) DetermineCandidatePipelinesFromImage(img core.Image, flavors []core.Flavor) []*Pipeline {
	dir := f.edgeDirectory()
	engine := dijkstra.New(dir)
	startFlavor := img.Flavor()

	candidates := make([]*Pipeline, len(flavors))
	for i, flavor := range flavors {
		candidates[i] = f.findPipeline(engine, dir, nil, startFlavor, NewRepresentation(flavor))
	}
	return candidates
}

// converterEdgeDirectory exposes the registered converters as a directed
// graph.  Edges are discovered lazily: destinations are computed by scanning
// the converter snapshot for converters whose source flavor is satisfied by
// the origin vertex.
type converterEdgeDirectory struct {
	converters []core.Converter
	registry   *core.Registry
}

func newConverterEdgeDirectory(converters []core.Converter, registry *core.Registry) *converterEdgeDirectory {
	return &converterEdgeDirectory{converters: converters, registry: registry}
}

// effectivePenalty is the converter's base penalty raised by any registry
// override, saturating.
func (d *converterEdgeDirectory) effectivePenalty(c core.Converter) core.Penalty {
	return c.ConversionPenalty().Add(d.registry.AdditionalPenalty(core.ImplementationName(c)))
}

// converterFor returns the cheapest converter contributing the edge from
// start to end, first-registered winning ties, or nil.
func (d *converterEdgeDirectory) converterFor(start, end Representation) core.Converter {
	var best core.Converter
	bestPenalty := core.InfinitePenalty
	for _, c := range d.converters {
		if !start.Flavor().Satisfies(c.SourceFlavor()) {
			continue
		}
		if c.TargetFlavor().String() != end.Key() {
			continue
		}
		penalty := d.effectivePenalty(c)
		if best == nil || penalty < bestPenalty {
			best = c
			bestPenalty = penalty
		}
	}
	return best
}

// Penalty implements dijkstra.EdgeDirectory.
func (d *converterEdgeDirectory) Penalty(start, end dijkstra.Vertex) int {
	c := d.converterFor(start.(Representation), end.(Representation))
	if c == nil {
		return 0
	}
	return d.effectivePenalty(c).Value()
}

// Destinations implements dijkstra.EdgeDirectory.  The result is sorted by
// vertex key so traversal order is deterministic.
func (d *converterEdgeDirectory) Destinations(origin dijkstra.Vertex) []dijkstra.Vertex {
	rep := origin.(Representation)
	seen := make(map[string]bool)
	var out []dijkstra.Vertex
	for _, c := range d.converters {
		if !rep.Flavor().Satisfies(c.SourceFlavor()) {
			continue
		}
		target := c.TargetFlavor()
		if key := target.String(); !seen[key] {
			seen[key] = true
			out = append(out, NewRepresentation(target))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

var _ dijkstra.EdgeDirectory = (*converterEdgeDirectory)(nil)
