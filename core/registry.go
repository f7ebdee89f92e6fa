package core

import (
	"fmt"
	"sort"
	"sync"
)

// ImplementationName returns the identity under which penalty overrides are
// registered for an implementation: its dynamic type name.
func ImplementationName(impl any) string {
	return fmt.Sprintf("%T", impl)
}

// preloaderHolder pairs a registered preloader with its registration-order
// identifier, used as the stable tiebreak when priorities are equal.
type preloaderHolder struct {
	preloader Preloader
	id        int
}

func (h preloaderHolder) String() string {
	return fmt.Sprintf("%s %d", ImplementationName(h.preloader), h.id)
}

// Registry holds all registered preloaders, loader factories, and converters,
// and answers "what is the best implementation for this input" queries.
// It is safe for concurrent use; registration to one collection does not
// block reads of the others.
type Registry struct {
	pmu               sync.Mutex
	preloaders        []preloaderHolder
	lastPreloaderID   int
	lastPreloaderSort int

	lmu     sync.Mutex
	loaders map[string]map[string][]LoaderFactory // mime -> flavor label -> factories

	cmu           sync.Mutex
	converters    []Converter
	converterMods int

	apmu                sync.Mutex
	additionalPenalties map[string]Penalty

	logger Logger
}

// NewRegistry returns an empty Registry.  Implementations are registered
// explicitly by composition-root code; there is no automatic discovery.
func NewRegistry() *Registry {
	return &Registry{
		loaders:             make(map[string]map[string][]LoaderFactory),
		additionalPenalties: make(map[string]Penalty),
		logger:              NopLogger{},
	}
}

// SetLogger attaches a structured logger.
func (r *Registry) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// RegisterPreloader appends a preloader.  Duplicates are legal and compete.
func (r *Registry) RegisterPreloader(p Preloader) {
	r.pmu.Lock()
	r.lastPreloaderID++
	r.preloaders = append(r.preloaders, preloaderHolder{preloader: p, id: r.lastPreloaderID})
	r.pmu.Unlock()
	r.logger.Debug("registry.preloader.registered",
		"impl", ImplementationName(p), "priority", p.Priority())
}

// RegisterLoaderFactory appends a loader factory under every MIME type and
// flavor it supports.  Factories reporting themselves unavailable are
// silently skipped.
func (r *Registry) RegisterLoaderFactory(f LoaderFactory) {
	if !f.IsAvailable() {
		r.logger.Debug("registry.loaderfactory.unavailable", "impl", ImplementationName(f))
		return
	}
	r.lmu.Lock()
	for _, mime := range f.SupportedMimeTypes() {
		flavorMap := r.loaders[mime]
		if flavorMap == nil {
			flavorMap = make(map[string][]LoaderFactory)
			r.loaders[mime] = flavorMap
		}
		for _, flavor := range f.SupportedFlavors(mime) {
			key := flavor.String()
			flavorMap[key] = append(flavorMap[key], f)
		}
	}
	r.lmu.Unlock()
	r.logger.Debug("registry.loaderfactory.registered", "impl", ImplementationName(f))
}

// RegisterConverter appends a converter and bumps the modification counter
// so dependent graph caches can detect staleness.
func (r *Registry) RegisterConverter(c Converter) {
	r.cmu.Lock()
	r.converters = append(r.converters, c)
	r.converterMods++
	r.cmu.Unlock()
	r.logger.Debug("registry.converter.registered",
		"impl", ImplementationName(c),
		"source", c.SourceFlavor().String(),
		"target", c.TargetFlavor().String())
}

// Preloaders returns all registered preloaders sorted by effective priority
// (declared priority plus any additional penalty) ascending, stable by
// registration order on ties.  The sort is recomputed lazily, only when the
// registered set changed since the last call.
func (r *Registry) Preloaders() []Preloader {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	r.sortPreloadersLocked()
	out := make([]Preloader, len(r.preloaders))
	for i, h := range r.preloaders {
		out[i] = h.preloader
	}
	return out
}

func (r *Registry) sortPreloadersLocked() {
	if r.lastPreloaderID == r.lastPreloaderSort {
		return
	}
	sort.SliceStable(r.preloaders, func(i, j int) bool {
		hi, hj := r.preloaders[i], r.preloaders[j]
		pi := int64(hi.preloader.Priority()) + int64(r.AdditionalPenalty(ImplementationName(hi.preloader)))
		pj := int64(hj.preloader.Priority()) + int64(r.AdditionalPenalty(ImplementationName(hj.preloader)))
		if diff := Truncate(pi - pj); diff != 0 {
			return diff < 0
		}
		return hi.id < hj.id
	})
	r.lastPreloaderSort = r.lastPreloaderID
}

// ImageLoaderFactory returns the best factory supporting info's MIME type
// and producing exactly flavor: among the supported candidates, the one whose
// resulting loader reports the lowest usage penalty.  Returns nil when no
// candidate exists.  A factory with an infinite penalty is still returned;
// eligibility filtering is the consumer's concern.
func (r *Registry) ImageLoaderFactory(info *ImageInfo, flavor Flavor) LoaderFactory {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	flavorMap := r.loaders[info.MimeType]
	if flavorMap == nil {
		return nil
	}
	var best LoaderFactory
	bestPenalty := Penalty(Infinite)
	for _, f := range flavorMap[flavor.String()] {
		if !f.IsSupported(info) {
			continue
		}
		penalty := f.NewLoader(flavor).UsagePenalty()
		if best == nil || penalty < bestPenalty {
			best = f
			bestPenalty = penalty
		}
	}
	return best
}

// ImageLoaderFactories returns every factory supporting info's MIME type
// whose declared flavor can satisfy the target flavor, ordered by effective
// usage penalty ascending and stable by registration order on ties.  Returns
// nil when there is no candidate.
func (r *Registry) ImageLoaderFactories(info *ImageInfo, flavor Flavor) []LoaderFactory {
	type ranked struct {
		factory LoaderFactory
		penalty int64
	}
	var matches []ranked
	seen := make(map[LoaderFactory]bool)

	r.lmu.Lock()
	flavorMap := r.loaders[info.MimeType]
	keys := make([]string, 0, len(flavorMap))
	for key := range flavorMap {
		keys = append(keys, key)
	}
	sort.Strings(keys) // deterministic scan order across runs
	for _, key := range keys {
		declared := parseFlavorKey(key)
		if !declared.Satisfies(flavor) {
			continue
		}
		for _, f := range flavorMap[key] {
			if seen[f] || !f.IsSupported(info) {
				continue
			}
			seen[f] = true
			loader := f.NewLoader(flavor)
			penalty := int64(loader.UsagePenalty()) +
				int64(r.AdditionalPenalty(ImplementationName(loader)))
			matches = append(matches, ranked{factory: f, penalty: penalty})
		}
	}
	r.lmu.Unlock()

	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return Truncate(matches[i].penalty-matches[j].penalty) < 0
	})
	out := make([]LoaderFactory, len(matches))
	for i, m := range matches {
		out[i] = m.factory
	}
	return out
}

// LoaderFactoriesForMime returns all factories registered for a MIME type,
// in no particular order, or nil.
func (r *Registry) LoaderFactoriesForMime(mime string) []LoaderFactory {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	flavorMap := r.loaders[mime]
	if flavorMap == nil {
		return nil
	}
	seen := make(map[LoaderFactory]bool)
	var out []LoaderFactory
	for _, factories := range flavorMap {
		for _, f := range factories {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// SupportedFlavorsForMime returns the distinct flavors any registered factory
// can produce for a MIME type, sorted by canonical label for determinism.
func (r *Registry) SupportedFlavorsForMime(mime string) []Flavor {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	flavorMap := r.loaders[mime]
	if flavorMap == nil {
		return nil
	}
	keys := make([]string, 0, len(flavorMap))
	for key := range flavorMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Flavor, len(keys))
	for i, key := range keys {
		out[i] = parseFlavorKey(key)
	}
	return out
}

// Converters returns a snapshot of all registered converters together with
// the current modification counter.
func (r *Registry) Converters() ([]Converter, int) {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	out := make([]Converter, len(r.converters))
	copy(out, r.converters)
	return out, r.converterMods
}

// ConverterModifications returns the number of converter registrations so
// far, letting dependent graph caches detect staleness.
func (r *Registry) ConverterModifications() int {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	return r.converterMods
}

// SetAdditionalPenalty fine-tunes the registry by adding a penalty to one
// implementation, identified by name (see ImplementationName).  Pass nil to
// clear.  Forces the preloader order to be recomputed on next access.
func (r *Registry) SetAdditionalPenalty(name string, penalty *Penalty) {
	r.apmu.Lock()
	if penalty != nil {
		r.additionalPenalties[name] = *penalty
	} else {
		delete(r.additionalPenalties, name)
	}
	r.apmu.Unlock()

	// Force a resort in case the implementation was a preloader.
	r.pmu.Lock()
	r.lastPreloaderSort = -1
	r.pmu.Unlock()
}

// AdditionalPenalty returns the penalty override for an implementation name,
// or ZeroPenalty.
func (r *Registry) AdditionalPenalty(name string) Penalty {
	r.apmu.Lock()
	defer r.apmu.Unlock()
	return r.additionalPenalties[name]
}

// parseFlavorKey reverses Flavor.String.  Flavor names never contain ';'.
func parseFlavorKey(key string) Flavor {
	for i := 0; i < len(key); i++ {
		if key[i] == ';' {
			return Flavor{Mime: key[:i], Name: key[i+1:]}
		}
	}
	return Flavor{Name: key}
}
