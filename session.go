package imageloader

import (
	"bytes"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// DefaultSessionContext resolves file and in-memory URIs and keeps sources
// alive across the preload/load handoff.  Safe for concurrent use.
//
// Library integrators with their own URI resolution implement
// core.SessionContext instead.
type DefaultSessionContext struct {
	sourceResolution float64
	targetResolution float64

	mu      sync.Mutex
	sources map[string]*core.Source
	memory  map[string][]byte
}

var _ core.SessionContext = (*DefaultSessionContext)(nil)

// NewSessionContext creates a session resolving file URIs and resources
// registered with RegisterResource.
func NewSessionContext(sourceResolution, targetResolution float64) *DefaultSessionContext {
	if sourceResolution <= 0 {
		sourceResolution = 72
	}
	if targetResolution <= 0 {
		targetResolution = sourceResolution
	}
	return &DefaultSessionContext{
		sourceResolution: sourceResolution,
		targetResolution: targetResolution,
		sources:          make(map[string]*core.Source),
		memory:           make(map[string][]byte),
	}
}

func (s *DefaultSessionContext) SourceResolution() float64 { return s.sourceResolution }
func (s *DefaultSessionContext) TargetResolution() float64 { return s.targetResolution }

// RegisterResource makes an in-memory byte slice resolvable under uri.
func (s *DefaultSessionContext) RegisterResource(uri string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[uri] = data
}

// NeedSource returns the live source for uri, resolving it if none is held.
// A source left over from preloading is reused as long as its stream has not
// been consumed.
func (s *DefaultSessionContext) NeedSource(uri string) (*core.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[uri]; ok {
		if !src.Consumed() {
			return src, nil
		}
		delete(s.sources, uri)
	}
	src, err := s.resolveLocked(uri)
	if err != nil {
		return nil, err
	}
	s.sources[uri] = src
	return src, nil
}

// ReturnSource hands a source back after preloading so a later full load can
// pick it up without reopening the stream.
func (s *DefaultSessionContext) ReturnSource(uri string, src *core.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src == nil || src.Consumed() {
		delete(s.sources, uri)
		return
	}
	s.sources[uri] = src
}

// GetSource returns the source currently held for uri, or nil.
func (s *DefaultSessionContext) GetSource(uri string) *core.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[uri]
}

// Close releases every source still held by the session.
func (s *DefaultSessionContext) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, src := range s.sources {
		utils.CloseQuietly(src)
		delete(s.sources, uri)
	}
	return nil
}

func (s *DefaultSessionContext) resolveLocked(uri string) (*core.Source, error) {
	if data, ok := s.memory[uri]; ok {
		return core.NewSource(uri, bytes.NewReader(data), nil), nil
	}
	path := trimFragment(uri)
	if u, err := url.Parse(path); err == nil && u.Scheme == "file" {
		path = u.Path
	} else if err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		// Single letters pass through as Windows drive prefixes.
		return nil, apperrors.NewURI(apperrors.CategoryNotFound, "session.resolve", uri, apperrors.ErrNotFound)
	}
	f, err := os.Open(path)
	if err != nil {
		cat := apperrors.CategoryIO
		if os.IsNotExist(err) {
			cat = apperrors.CategoryNotFound
		}
		return nil, apperrors.NewURI(cat, "session.resolve", uri, err)
	}
	return core.NewSource(uri, f, f), nil
}

// trimFragment strips a fragment from a URI before resolution.
func trimFragment(uri string) string {
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		return uri[:i]
	}
	return uri
}
