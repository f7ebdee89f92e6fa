package core

import (
	"bufio"
	"io"

	apperrors "github.com/Skryldev/image-loader/errors"
)

// DefaultPeekBuffer is the size of the look-ahead buffer on a Source and
// bounds how far a preloader may peek into the stream.
const DefaultPeekBuffer = 128 * 1024

// Source is a resolved image stream handle.  Preloaders peek into it without
// consuming bytes; the loader that finally decodes the stream takes ownership
// through Reader, after which the stream may not be peeked or re-read.  The
// handle must be closed exactly once regardless of which pipeline step fails.
type Source struct {
	uri      string
	br       *bufio.Reader
	closer   io.Closer
	consumed bool
	closed   bool
}

// NewSource wraps a resolved stream.  rc may also implement only io.Reader;
// pass nil for the closer in that case.
func NewSource(uri string, r io.Reader, closer io.Closer) *Source {
	return &Source{
		uri:    uri,
		br:     bufio.NewReaderSize(r, DefaultPeekBuffer),
		closer: closer,
	}
}

// URI returns the URI the source was resolved from.
func (s *Source) URI() string { return s.uri }

// Peek returns up to n bytes of look-ahead without consuming them.  A short
// result with no error means the stream ended inside the requested window.
// Peeking a consumed source is a programmer error.
func (s *Source) Peek(n int) ([]byte, error) {
	if s.consumed {
		return nil, apperrors.New(apperrors.CategoryBadInput, "source.peek", apperrors.ErrStreamConsumed)
	}
	if n > s.br.Size() {
		n = s.br.Size()
	}
	data, err := s.br.Peek(n)
	if err == io.EOF || err == bufio.ErrBufferFull {
		err = nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "source.peek", err)
	}
	return data, nil
}

// Reader hands the stream over for full consumption and marks the source as
// consumed so nothing downstream re-reads or double-closes it.
func (s *Source) Reader() io.Reader {
	s.consumed = true
	return s.br
}

// Consumed reports whether a loader has taken ownership of the stream.
func (s *Source) Consumed() bool { return s.consumed }

// Close releases the underlying stream.  It is safe to call more than once;
// only the first call reaches the underlying closer.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
