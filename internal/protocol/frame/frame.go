package frame

import (
	"bytes"
	"errors"
	"io"
)

var (
	ErrLineTooLong = errors.New("frame: line too long")
	ErrLineBreak   = errors.New("frame: embedded line break")
)

// Line is one CR/LF-free protocol line. Truncated marks a line that exceeded
// the limit; Data then holds its leading bytes and the rest was discarded.
type Line struct {
	Data      []byte
	Truncated bool
}

// Limits bounds line length excluding the CRLF terminator.
type Limits struct {
	MaxLineBytes       int
	MaxTaggedLineBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxLineBytes:       510,
		MaxTaggedLineBytes: 8191 + 510,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxLineBytes <= 0 {
		l.MaxLineBytes = d.MaxLineBytes
	}
	if l.MaxTaggedLineBytes < l.MaxLineBytes {
		l.MaxTaggedLineBytes = l.MaxLineBytes
	}
	return l
}

// Framer reassembles lines from arbitrarily chunked input. It is not safe for
// concurrent use.
type Framer struct {
	limits     Limits
	buf        []byte
	off        int
	discarding bool
}

func NewFramer(limits Limits) *Framer {
	return &Framer{limits: limits.withDefaults()}
}

// Feed appends one chunk of transport bytes.
func (f *Framer) Feed(p []byte) {
	if f.off > 0 {
		n := copy(f.buf, f.buf[f.off:])
		f.buf = f.buf[:n]
		f.off = 0
	}
	f.buf = append(f.buf, p...)
}

// Buffered reports bytes held for an incomplete line.
func (f *Framer) Buffered() int {
	return len(f.buf) - f.off
}

// Next returns the next complete line, or false when more input is needed.
// Empty lines are skipped; CR, LF and CRLF all terminate a line.
func (f *Framer) Next() (Line, bool) {
	for {
		pending := f.buf[f.off:]
		if f.discarding {
			idx := indexTerminator(pending)
			if idx < 0 {
				f.buf, f.off = f.buf[:0], 0
				return Line{}, false
			}
			f.off += idx + 1
			f.discarding = false
			continue
		}

		skip := 0
		for skip < len(pending) && isTerminator(pending[skip]) {
			skip++
		}
		f.off += skip
		pending = pending[skip:]
		if len(pending) == 0 {
			f.buf, f.off = f.buf[:0], 0
			return Line{}, false
		}

		limit := f.limits.MaxLineBytes
		if pending[0] == '@' {
			limit = f.limits.MaxTaggedLineBytes
		}

		idx := indexTerminator(pending)
		switch {
		case idx >= 0 && idx <= limit:
			f.off += idx + 1
			return Line{Data: clone(pending[:idx])}, true
		case idx > limit:
			f.off += idx + 1
			return Line{Data: clone(pending[:limit]), Truncated: true}, true
		case idx < 0 && len(pending) > limit:
			line := Line{Data: clone(pending[:limit]), Truncated: true}
			f.buf, f.off = f.buf[:0], 0
			f.discarding = true
			return line, true
		default:
			return Line{}, false
		}
	}
}

// Reader pulls lines from a byte stream through a Framer.
type Reader struct {
	r     io.Reader
	f     *Framer
	chunk []byte
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{
		r:     r,
		f:     NewFramer(limits),
		chunk: make([]byte, 4096),
	}
}

// ReadLine blocks until a full line is available. A trailing partial line at
// end of stream is dropped and the read error returned.
func (r *Reader) ReadLine() (Line, error) {
	for {
		if line, ok := r.f.Next(); ok {
			return line, nil
		}
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			r.f.Feed(r.chunk[:n])
			continue
		}
		if err != nil {
			return Line{}, err
		}
	}
}

// WriteLine writes one line followed by CRLF.
func WriteLine(w io.Writer, line []byte, limits Limits) error {
	limits = limits.withDefaults()
	if bytes.ContainsAny(line, "\r\n") {
		return ErrLineBreak
	}
	limit := limits.MaxLineBytes
	if len(line) > 0 && line[0] == '@' {
		limit = limits.MaxTaggedLineBytes
	}
	if len(line) > limit {
		return ErrLineTooLong
	}
	out := make([]byte, 0, len(line)+2)
	out = append(out, line...)
	out = append(out, '\r', '\n')
	_, err := w.Write(out)
	return err
}

func indexTerminator(b []byte) int {
	return bytes.IndexAny(b, "\r\n")
}

func isTerminator(c byte) bool {
	return c == '\r' || c == '\n'
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
