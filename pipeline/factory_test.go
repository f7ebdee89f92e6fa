package pipeline_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/pipeline"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

// fakeImage is a minimal core.Image carrying only a flavor.
type fakeImage struct {
	info   *core.ImageInfo
	flavor core.Flavor
}

func (f *fakeImage) Info() *core.ImageInfo { return f.info }
func (f *fakeImage) Flavor() core.Flavor   { return f.flavor }
func (f *fakeImage) Cacheable() bool       { return true }

type fakeLoader struct {
	flavor  core.Flavor
	penalty core.Penalty
}

func (l *fakeLoader) TargetFlavor() core.Flavor  { return l.flavor }
func (l *fakeLoader) UsagePenalty() core.Penalty { return l.penalty }
func (l *fakeLoader) LoadImage(_ context.Context, info *core.ImageInfo, _ core.Hints, _ core.SessionContext) (core.Image, error) {
	return &fakeImage{info: info, flavor: l.flavor}, nil
}

type fakeFactory struct {
	mime    string
	flavor  core.Flavor
	penalty core.Penalty
}

func (f *fakeFactory) SupportedMimeTypes() []string { return []string{f.mime} }
func (f *fakeFactory) SupportedFlavors(mime string) []core.Flavor {
	if mime != f.mime {
		return nil
	}
	return []core.Flavor{f.flavor}
}
func (f *fakeFactory) IsAvailable() bool                     { return true }
func (f *fakeFactory) IsSupported(info *core.ImageInfo) bool { return info.MimeType == f.mime }
func (f *fakeFactory) NewLoader(flavor core.Flavor) core.Loader {
	return &fakeLoader{flavor: flavor, penalty: f.penalty}
}

type fakeConverter struct {
	source  core.Flavor
	target  core.Flavor
	penalty core.Penalty
	applied *int
	err     error
}

func (c *fakeConverter) SourceFlavor() core.Flavor       { return c.source }
func (c *fakeConverter) TargetFlavor() core.Flavor       { return c.target }
func (c *fakeConverter) ConversionPenalty() core.Penalty { return c.penalty }
func (c *fakeConverter) Convert(_ context.Context, img core.Image, _ core.Hints) (core.Image, error) {
	if c.applied != nil {
		*c.applied++
	}
	if c.err != nil {
		return nil, c.err
	}
	return &fakeImage{info: img.Info(), flavor: c.target}, nil
}

// countingCloser records how often the pipeline closed the stream.
type countingCloser struct {
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

// trackingSession serves a single pre-resolved source.
type trackingSession struct {
	sources map[string]*core.Source
}

func (s *trackingSession) SourceResolution() float64 { return 72 }
func (s *trackingSession) TargetResolution() float64 { return 72 }
func (s *trackingSession) NeedSource(uri string) (*core.Source, error) {
	return s.sources[uri], nil
}
func (s *trackingSession) ReturnSource(uri string, src *core.Source) {}
func (s *trackingSession) GetSource(uri string) *core.Source         { return s.sources[uri] }

// consumingLoader takes ownership of the source stream like a real decoder.
type consumingLoader struct {
	flavor core.Flavor
}

func (l *consumingLoader) TargetFlavor() core.Flavor  { return l.flavor }
func (l *consumingLoader) UsagePenalty() core.Penalty { return core.ZeroPenalty }
func (l *consumingLoader) LoadImage(_ context.Context, info *core.ImageInfo, _ core.Hints, session core.SessionContext) (core.Image, error) {
	src, err := session.NeedSource(info.URI)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, src.Reader()); err != nil {
		return nil, err
	}
	return &fakeImage{info: info, flavor: l.flavor}, nil
}

var (
	flavorA = core.Flavor{Name: "a"}
	flavorB = core.Flavor{Name: "b"}
	flavorC = core.Flavor{Name: "c"}
)

func newTestRegistry(t *testing.T) *core.Registry {
	t.Helper()
	reg := core.NewRegistry()
	reg.RegisterLoaderFactory(&fakeFactory{mime: "image/test", flavor: flavorA, penalty: 10})
	return reg
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestFactory_PrefersCheaperMultiStepPath(t *testing.T) {
	reg := newTestRegistry(t)
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorC, penalty: 9})
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 5})
	reg.RegisterConverter(&fakeConverter{source: flavorB, target: flavorC, penalty: 3})

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")
	p := f.NewImageConverterPipeline(info, flavorC)
	if p == nil {
		t.Fatal("no pipeline found")
	}
	if got := len(p.Converters()); got != 2 {
		t.Fatalf("converter count: got %d, want 2 (via %s)", got, p)
	}
	// 10 (loader) + 5 + 3
	if got := p.ConversionPenalty(reg); got != core.NewPenalty(18) {
		t.Errorf("total penalty: got %v, want 18", got)
	}
}

func TestFactory_DirectLoaderShortCircuits(t *testing.T) {
	reg := newTestRegistry(t)
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 1})

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")
	p := f.NewImageConverterPipeline(info, flavorA)
	if p == nil {
		t.Fatal("no pipeline found")
	}
	if len(p.Converters()) != 0 {
		t.Error("a directly loadable flavor needs no converters")
	}
	if p.Loader() == nil || !p.Loader().TargetFlavor().Satisfies(flavorA) {
		t.Error("pipeline must start with a loader for the requested flavor")
	}
}

func TestFactory_UnreachableFlavorYieldsNil(t *testing.T) {
	reg := newTestRegistry(t)

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")
	if p := f.NewImageConverterPipeline(info, flavorC); p != nil {
		t.Errorf("got %s, want nil", p)
	}
}

func TestFactory_GraphRebuildsOnNewConverter(t *testing.T) {
	reg := newTestRegistry(t)
	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")

	if p := f.NewImageConverterPipeline(info, flavorB); p != nil {
		t.Fatal("flavor b must be unreachable before registration")
	}
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 2})
	if p := f.NewImageConverterPipeline(info, flavorB); p == nil {
		t.Error("newly registered converter must open the route")
	}
}

func TestFactory_AdditionalPenaltyRedirectsRoute(t *testing.T) {
	reg := newTestRegistry(t)
	direct := &fakeConverter{source: flavorA, target: flavorC, penalty: 4}
	reg.RegisterConverter(direct)
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 5})
	reg.RegisterConverter(&fakeConverter{source: flavorB, target: flavorC, penalty: 3})

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")

	p := f.NewImageConverterPipeline(info, flavorC)
	if len(p.Converters()) != 1 {
		t.Fatalf("precondition: direct route should win at penalty 4, got %s", p)
	}

	// Penalizing the direct converter makes the two-step route cheaper.
	override := core.NewPenalty(100)
	reg.SetAdditionalPenalty(core.ImplementationName(direct), &override)
	p = f.NewImageConverterPipeline(info, flavorC)
	if len(p.Converters()) != 2 {
		t.Errorf("after override: got %s, want the two-step route", p)
	}
}

func TestFactory_InfiniteOverrideForbidsRoute(t *testing.T) {
	reg := newTestRegistry(t)
	only := &fakeConverter{source: flavorA, target: flavorB, penalty: 1}
	reg.RegisterConverter(only)

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")
	if p := f.NewImageConverterPipeline(info, flavorB); p == nil {
		t.Fatal("precondition: route exists")
	}

	override := core.InfinitePenalty
	reg.SetAdditionalPenalty(core.ImplementationName(only), &override)
	// The graph edge saturates to infinite, so the path search must not
	// produce a finite route anymore.
	p := f.NewImageConverterPipeline(info, flavorB)
	if p != nil && !p.ConversionPenalty(reg).IsInfinite() {
		t.Errorf("forbidden route came back finite: %s", p)
	}
}

func TestPipeline_ExecuteRunsChainInOrder(t *testing.T) {
	reg := newTestRegistry(t)
	applied := 0
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 5, applied: &applied})
	reg.RegisterConverter(&fakeConverter{source: flavorB, target: flavorC, penalty: 3, applied: &applied})

	f := pipeline.NewFactory(reg, nil)
	info := core.NewImageInfo("x", "image/test")
	p := f.NewImageConverterPipeline(info, flavorC)
	if p == nil {
		t.Fatal("no pipeline found")
	}
	img, err := p.Execute(context.Background(), info, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !img.Flavor().Satisfies(flavorC) {
		t.Errorf("result flavor: got %s, want %s", img.Flavor(), flavorC)
	}
	if applied != 2 {
		t.Errorf("converter applications: got %d, want 2", applied)
	}
}

func TestPipeline_ConvertRejectsWrongFlavor(t *testing.T) {
	conv := &fakeConverter{source: flavorB, target: flavorC, penalty: 1}
	p := pipeline.New(nil, conv)

	img := &fakeImage{info: core.NewImageInfo("x", "image/test"), flavor: flavorA}
	if _, err := p.ExecuteFromImage(context.Background(), img, nil); err == nil {
		t.Error("converting an image of the wrong flavor must fail")
	}
}

func TestPipeline_ClosesConsumedSourceOnce(t *testing.T) {
	run := func(t *testing.T, conv core.Converter) (*countingCloser, error) {
		t.Helper()
		closer := &countingCloser{}
		src := core.NewSource("x", strings.NewReader("payload"), closer)
		session := &trackingSession{sources: map[string]*core.Source{"x": src}}

		p := pipeline.New(&consumingLoader{flavor: flavorA}, conv)
		info := core.NewImageInfo("x", "image/test")
		_, err := p.Execute(context.Background(), info, nil, session)
		return closer, err
	}

	t.Run("success", func(t *testing.T) {
		closer, err := run(t, &fakeConverter{source: flavorA, target: flavorB})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if closer.closes != 1 {
			t.Errorf("stream closes: got %d, want 1", closer.closes)
		}
	})

	t.Run("converter failure", func(t *testing.T) {
		closer, err := run(t, &fakeConverter{source: flavorA, target: flavorB, err: errors.New("conversion exploded")})
		if err == nil {
			t.Fatal("the converter error must surface")
		}
		if closer.closes != 1 {
			t.Errorf("stream closes: got %d, want 1", closer.closes)
		}
	})
}

func TestFactory_ConverterOnlyPipelinesFromImage(t *testing.T) {
	reg := newTestRegistry(t)
	reg.RegisterConverter(&fakeConverter{source: flavorA, target: flavorB, penalty: 2})

	f := pipeline.NewFactory(reg, nil)
	img := &fakeImage{info: core.NewImageInfo("x", "image/test"), flavor: flavorA}

	candidates := f.DetermineCandidatePipelinesFromImage(img, []core.Flavor{flavorB, flavorC})
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates", len(candidates))
	}
	if candidates[0] == nil || candidates[0].Loader() != nil {
		t.Error("reachable flavor must yield a loaderless pipeline")
	}
	if candidates[1] != nil {
		t.Error("unreachable flavor must yield a nil entry")
	}

	out, err := candidates[0].ExecuteFromImage(context.Background(), img, nil)
	if err != nil {
		t.Fatalf("ExecuteFromImage: %v", err)
	}
	if !out.Flavor().Satisfies(flavorB) {
		t.Errorf("got %s, want %s", out.Flavor(), flavorB)
	}
}
