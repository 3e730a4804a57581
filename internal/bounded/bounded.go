// Package bounded provides fixed-capacity string copy and append primitives
// that never write past the destination and always leave it NUL-terminated.
//
// [Copy] and [Append] follow the strlcpy/strlcat contract: they return the
// length the result would have had without truncation, so a return value
// >= len(dst) means the output was cut short. [Buffer] wraps the same
// discipline in an [io.Writer] that reports truncation as [ErrTruncated].
package bounded

import (
	"bytes"
	"errors"
)

// ErrTruncated is returned by [Buffer] writes that did not fit.
var ErrTruncated = errors.New("bounded: output truncated")

// ///////////////////////////////////////////////
// Copy / Append
// ///////////////////////////////////////////////

// Copy copies as much of src as fits into dst, leaving room for a trailing
// NUL, and returns len(src). A zero-length dst is left untouched.
func Copy(dst []byte, src string) int {
	if len(dst) == 0 {
		return len(src)
	}
	n := min(len(src), len(dst)-1)
	copy(dst, src[:n])
	dst[n] = 0
	return len(src)
}

// Append appends src after the NUL-terminated content already in dst and
// returns the combined untruncated length. If the existing content fills dst
// nothing is appended.
func Append(dst []byte, src string) int {
	cur := Length(dst)
	if cur >= len(dst)-1 {
		// Full, or no terminator at all: nothing can be added safely.
		return cur + len(src)
	}
	n := min(len(src), len(dst)-cur-1)
	copy(dst[cur:], src[:n])
	dst[cur+n] = 0
	return cur + len(src)
}

// Length returns the number of bytes before the first NUL in b, or len(b)
// when b has no terminator.
func Length(b []byte) int {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return i
	}
	return len(b)
}

// Truncated reports whether a [Copy] or [Append] result n overflowed dst.
func Truncated(n int, dst []byte) bool {
	return n >= len(dst)
}

// ///////////////////////////////////////////////
// Buffer
// ///////////////////////////////////////////////

// Buffer is a byte buffer with a fixed capacity. Writes beyond the capacity
// are cut short and return [ErrTruncated]; the stored bytes are always
// followed by a NUL in the backing array.
type Buffer struct {
	// buf holds data in buf[:n] and a terminator at buf[n].
	buf []byte
	// n is the number of data bytes held.
	n int
	// truncated is set once any write has been cut short.
	truncated bool
}

// New returns a Buffer that holds at most capacity data bytes.
func New(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, max(capacity, 0)+1)}
}

// Write appends p, truncating at capacity. When p does not fit, the bytes
// that did fit are kept and ErrTruncated is returned.
func (b *Buffer) Write(p []byte) (int, error) {
	room := b.Cap() - b.n
	n := min(len(p), room)
	copy(b.buf[b.n:], p[:n])
	b.n += n
	b.buf[b.n] = 0
	if n < len(p) {
		b.truncated = true
		return n, ErrTruncated
	}
	return n, nil
}

// WriteString is like [Buffer.Write] for strings.
func (b *Buffer) WriteString(s string) (int, error) {
	room := b.Cap() - b.n
	n := min(len(s), room)
	copy(b.buf[b.n:], s[:n])
	b.n += n
	b.buf[b.n] = 0
	if n < len(s) {
		b.truncated = true
		return n, ErrTruncated
	}
	return n, nil
}

// Bytes returns the stored data without the terminator. The slice aliases
// the buffer until the next write or [Buffer.Reset].
func (b *Buffer) Bytes() []byte { return b.buf[:b.n] }

// String returns a copy of the stored data.
func (b *Buffer) String() string { return string(b.buf[:b.n]) }

// Len returns the number of data bytes stored.
func (b *Buffer) Len() int { return b.n }

// Cap returns the maximum number of data bytes the buffer holds.
func (b *Buffer) Cap() int { return len(b.buf) - 1 }

// Truncated reports whether any write since the last reset was cut short.
func (b *Buffer) Truncated() bool { return b.truncated }

// Reset empties the buffer and clears the truncation flag.
func (b *Buffer) Reset() {
	b.n = 0
	b.buf[0] = 0
	b.truncated = false
}
