package core

// streaming.go normalizes raw file bytes before they reach the delimited parser.
//
//   - BOM skipping: Windows tools often prefix files with the UTF-8 BOM
//     (0xEF 0xBB 0xBF), which would otherwise become part of the first field.
//   - UTF-8 sanitizing: invalid byte sequences are replaced with '?' so a stray
//     Latin-1 byte never corrupts field boundaries.
//
// Use WrapSource to apply both in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sanitizeChunk is the read size used by UTF8Sanitizer.
const sanitizeChunk = 32 * 1024

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM, if present.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes with '?'.
// Multi-byte runes split across reads are carried over to the next read.
type UTF8Sanitizer struct {
	reader  io.Reader
	buf     []byte
	pending []byte // incomplete rune from the previous chunk
	out     []byte // sanitized bytes not yet handed to the caller
	err     error
}

// NewUTF8Sanitizer creates a sanitizer over r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		buf:     make([]byte, sanitizeChunk+utf8.UTFMax),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 && s.err == nil {
		s.fill()
	}
	if len(s.out) == 0 {
		return 0, s.err
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	offset := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(s.buf[offset : offset+sanitizeChunk])
	data := s.buf[:offset+n]
	s.err = err
	atEOF := err != nil

	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		if data[0] < utf8.RuneSelf {
			out = append(out, data[0])
			data = data[1:]
			continue
		}
		if !atEOF && !utf8.FullRune(data) {
			s.pending = append(s.pending, data...)
			break
		}
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	s.out = out
}

// WrapSource strips the BOM first, then sanitizes what remains.
func WrapSource(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
