package utils

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Buffers above this size are not returned to the pool.
const maxPooledBuffer = 8 * 1024 * 1024

var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads r to EOF into a pooled buffer, checking ctx between
// chunks so a cancelled load does not keep pulling bytes.  Pass the buffer
// back with ReleaseBuffer once its contents have been copied out.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
	}
}

// LimitedReader wraps r and fails with io.ErrUnexpectedEOF once more than
// Max bytes have been read.  Max <= 0 disables the limit.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max > 0 {
		if l.n >= l.Max {
			return 0, io.ErrUnexpectedEOF
		}
		if remain := l.Max - l.n; int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}

// Flusher is the optional flush capability of buffered writers.
type Flusher interface {
	Flush() error
}

// NoFlushWriter forwards writes and swallows intermediate Flush calls, so
// consumers that flush between fragments cannot defeat the caller's output
// buffering.  The caller flushes the underlying writer itself when done.
type NoFlushWriter struct {
	W io.Writer
}

func (w *NoFlushWriter) Write(p []byte) (int, error) { return w.W.Write(p) }

// Flush implements Flusher as a no-op.
func (w *NoFlushWriter) Flush() error { return nil }

var _ Flusher = (*NoFlushWriter)(nil)
