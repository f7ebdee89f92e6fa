// Package pipeline builds and runs loader/converter chains that materialize
// an image in a requested flavor.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// Pipeline is an ordered chain of one optional loader followed by zero or
// more converters.  It is constructed fresh per request by the Factory and
// is not itself cached; it is valid only within a single invocation.
type Pipeline struct {
	loader     core.Loader
	converters []core.Converter
}

// New creates a pipeline starting with loader (which may be nil for
// converter-only pipelines operating on an already-loaded image).
func New(loader core.Loader, converters ...core.Converter) *Pipeline {
	return &Pipeline{loader: loader, converters: converters}
}

// AddConverter appends a conversion step.
func (p *Pipeline) AddConverter(c core.Converter) {
	p.converters = append(p.converters, c)
}

// Loader returns the initial loader, or nil.
func (p *Pipeline) Loader() core.Loader { return p.loader }

// Converters returns the conversion steps in execution order.
func (p *Pipeline) Converters() []core.Converter { return p.converters }

// TargetFlavor returns the flavor this pipeline terminates in.
func (p *Pipeline) TargetFlavor() core.Flavor {
	if n := len(p.converters); n > 0 {
		return p.converters[n-1].TargetFlavor()
	}
	if p.loader != nil {
		return p.loader.TargetFlavor()
	}
	return core.Flavor{}
}

// ConversionPenalty returns the total penalty of the pipeline: the loader's
// usage penalty plus every converter's conversion penalty, each raised by
// the registry's per-implementation overrides, summed with saturation.
func (p *Pipeline) ConversionPenalty(registry *core.Registry) core.Penalty {
	penalty := core.ZeroPenalty
	if p.loader != nil {
		penalty = penalty.Add(p.loader.UsagePenalty())
		penalty = penalty.Add(registry.AdditionalPenalty(core.ImplementationName(p.loader)))
	}
	for _, c := range p.converters {
		penalty = penalty.Add(c.ConversionPenalty())
		penalty = penalty.Add(registry.AdditionalPenalty(core.ImplementationName(c)))
	}
	return penalty
}

// Execute runs the pipeline from scratch: the loader decodes the stream for
// info, then each converter transforms the result in order.  The source
// stream is released exactly once on every exit path after a loader has
// taken ownership of it.
func (p *Pipeline) Execute(ctx context.Context, info *core.ImageInfo, hints core.Hints, session core.SessionContext) (core.Image, error) {
	if p.loader == nil {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "pipeline.execute", info.URI,
			fmt.Errorf("pipeline has no loader"))
	}
	defer releaseConsumedSource(session, info.URI)

	img, err := p.loader.LoadImage(ctx, info, hints, session)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "pipeline.load", info.URI,
			fmt.Errorf("loader returned no image"))
	}
	return p.convert(ctx, img, hints)
}

// ExecuteFromImage runs the converter chain on an already-loaded image.
func (p *Pipeline) ExecuteFromImage(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryBadInput, "pipeline.execute", apperrors.ErrEmptyInput)
	}
	return p.convert(ctx, img, hints)
}

func (p *Pipeline) convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	current := img
	for _, c := range p.converters {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, "pipeline.convert", err)
		}
		if !current.Flavor().Satisfies(c.SourceFlavor()) {
			return nil, apperrors.NewURI(apperrors.CategoryBadInput, "pipeline.convert", current.Info().URI,
				fmt.Errorf("%w: converter %s needs %s, image is %s",
					apperrors.ErrBadFlavor, core.ImplementationName(c),
					c.SourceFlavor(), current.Flavor()))
		}
		next, err := c.Convert(ctx, current, hints)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, apperrors.NewURI(apperrors.CategoryPipeline, "pipeline.convert", current.Info().URI,
				fmt.Errorf("converter %s returned no image", core.ImplementationName(c)))
		}
		current = next
	}
	return current, nil
}

// releaseConsumedSource closes the session's stream for uri once a loader has
// taken ownership of it.  Close errors are logged by the session, never
// escalated over the pipeline result.
func releaseConsumedSource(session core.SessionContext, uri string) {
	if session == nil {
		return
	}
	if src := session.GetSource(uri); src != nil && src.Consumed() {
		utils.CloseQuietly(src)
	}
}

func (p *Pipeline) String() string {
	var sb strings.Builder
	sb.WriteString("pipeline[")
	if p.loader != nil {
		sb.WriteString("loader:")
		sb.WriteString(p.loader.TargetFlavor().String())
	} else {
		sb.WriteString("no-loader")
	}
	for _, c := range p.converters {
		sb.WriteString(" -> ")
		sb.WriteString(c.TargetFlavor().String())
	}
	sb.WriteString("]")
	return sb.String()
}
