package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tanq16/hreq/internal/ledger"
)

type Kind int

const (
	KindMemory Kind = iota
	KindFile
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindStream:
		return "stream"
	default:
		return "memory"
	}
}

// Destination describes where response bytes go. The zero value buffers the body
// in memory.
type Destination struct {
	kind Kind
	path string
	w    io.Writer
}

func Memory() Destination {
	return Destination{kind: KindMemory}
}

func File(path string) Destination {
	return Destination{kind: KindFile, path: path}
}

// Stream writes into a caller-owned writer, starting wherever it is positioned.
// The writer is never closed by the sink.
func Stream(w io.Writer) Destination {
	return Destination{kind: KindStream, w: w}
}

func (d Destination) Kind() Kind        { return d.kind }
func (d Destination) Path() string      { return d.path }
func (d Destination) Writer() io.Writer { return d.w }

// Resumable reports whether partial data can survive an interruption.
func (d Destination) Resumable() bool {
	return d.kind == KindFile
}

func (d Destination) String() string {
	switch d.kind {
	case KindFile:
		return d.path
	case KindStream:
		return "stream"
	default:
		return "memory"
	}
}

// Sink receives the body of one execution.
type Sink interface {
	io.Writer
	// Written is the number of bytes accepted since Open.
	Written() int64
	// Commit finalizes a complete transfer and releases the sink.
	Commit() error
	// Close releases the sink and leaves any partial data in place.
	Close() error
}

// Open prepares dest for writing at offset. Only file destinations accept a
// non-zero offset.
func Open(dest Destination, offset int64) (Sink, error) {
	switch dest.kind {
	case KindFile:
		if dest.path == "" {
			return nil, errors.New("file destination without a path")
		}
		f, err := ledger.OpenForWrite(dest.path, offset)
		if err != nil {
			return nil, err
		}
		return &fileSink{final: dest.path, f: f}, nil
	case KindStream:
		if dest.w == nil {
			return nil, errors.New("stream destination without a writer")
		}
		if offset != 0 {
			return nil, fmt.Errorf("stream destination cannot start at offset %d", offset)
		}
		return &streamSink{w: dest.w}, nil
	default:
		if offset != 0 {
			return nil, fmt.Errorf("memory destination cannot start at offset %d", offset)
		}
		return &MemorySink{}, nil
	}
}

type fileSink struct {
	final   string
	f       *os.File
	written int64
	closed  bool
}

func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, &ledger.IOError{Op: "write", Path: ledger.PartialPath(s.final), Err: err}
	}
	return n, nil
}

func (s *fileSink) Written() int64 { return s.written }

func (s *fileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	syncErr := s.f.Sync()
	if err := s.f.Close(); err != nil {
		return &ledger.IOError{Op: "close", Path: ledger.PartialPath(s.final), Err: err}
	}
	if syncErr != nil {
		return &ledger.IOError{Op: "sync", Path: ledger.PartialPath(s.final), Err: syncErr}
	}
	return nil
}

func (s *fileSink) Commit() error {
	if err := s.Close(); err != nil {
		return err
	}
	return ledger.Promote(s.final)
}

type streamSink struct {
	w       io.Writer
	written int64
}

func (s *streamSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.written += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, &ledger.IOError{Op: "write", Path: "stream", Err: err}
	}
	return n, nil
}

func (s *streamSink) Written() int64 { return s.written }
func (s *streamSink) Close() error   { return nil }
func (s *streamSink) Commit() error  { return nil }

// MemorySink buffers the whole body.
type MemorySink struct {
	buf bytes.Buffer
}

func (s *MemorySink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *MemorySink) Written() int64              { return int64(s.buf.Len()) }
func (s *MemorySink) Close() error                { return nil }
func (s *MemorySink) Commit() error               { return nil }
func (s *MemorySink) Bytes() []byte               { return s.buf.Bytes() }
