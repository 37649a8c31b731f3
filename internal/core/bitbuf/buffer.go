// Package bitbuf implements a growable byte buffer with bit-addressable
// reads and writes in network (most-significant-bit-first) order.
package bitbuf

// Buffer is an exclusively owned byte sequence addressed by bit offset.
//
// Reads beyond the current length return zero bits. Writes beyond the
// current length zero-extend the buffer to the minimal byte length
// covering the written bits. The zero value is an empty buffer ready to use.
type Buffer struct {
	b []byte
}

// New returns a zero-filled buffer of n bytes.
func New(n int) Buffer {
	return Buffer{b: make([]byte, n)}
}

// FromBytes returns a buffer holding a copy of p.
func FromBytes(p []byte) Buffer {
	var buf Buffer
	buf.Reset(p)
	return buf
}

// Len returns the buffer length in bytes.
func (buf *Buffer) Len() int { return len(buf.b) }

// Bytes returns a copy of the buffer contents.
func (buf *Buffer) Bytes() []byte {
	out := make([]byte, len(buf.b))
	copy(out, buf.b)
	return out
}

// Clone returns an independent copy of buf.
func (buf *Buffer) Clone() Buffer {
	return Buffer{b: buf.Bytes()}
}

// Reset replaces the contents of buf with a copy of p.
func (buf *Buffer) Reset(p []byte) {
	b := make([]byte, len(p))
	copy(b, p)
	buf.b = b
}

// Resize zero-extends or truncates the buffer to n bytes.
func (buf *Buffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(buf.b) {
		buf.b = buf.b[:n:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, buf.b)
	buf.b = grown
}

// grow makes sure the buffer covers bits up to (not including) end.
func (buf *Buffer) grow(endBit uint) {
	need := int((endBit + 7) / 8)
	if need > len(buf.b) {
		buf.Resize(need)
	}
}

// Get reads width bits starting at bit offset off, most significant bit first.
// Bits beyond the current length read as zero. Width must not exceed 64.
func (buf *Buffer) Get(off, width uint) uint64 {
	if width > 64 {
		panic("bitbuf: field width exceeds 64 bits")
	}
	// Byte-aligned fields are by far the most common.
	if off%8 == 0 && width%8 == 0 {
		var v uint64
		start := int(off / 8)
		for i := 0; i < int(width/8); i++ {
			v <<= 8
			if idx := start + i; idx < len(buf.b) {
				v |= uint64(buf.b[idx])
			}
		}
		return v
	}
	var v uint64
	for i := uint(0); i < width; i++ {
		bit := off + i
		v <<= 1
		if idx := int(bit / 8); idx < len(buf.b) {
			v |= uint64(buf.b[idx]>>(7-bit%8)) & 1
		}
	}
	return v
}

// Set writes the low width bits of v starting at bit offset off, most
// significant bit first. Higher bits of v are discarded: the field width
// governs the value range. Width must not exceed 64.
func (buf *Buffer) Set(off, width uint, v uint64) {
	if width > 64 {
		panic("bitbuf: field width exceeds 64 bits")
	}
	if width == 0 {
		return
	}
	buf.grow(off + width)
	if off%8 == 0 && width%8 == 0 {
		start := int(off / 8)
		n := int(width / 8)
		for i := n - 1; i >= 0; i-- {
			buf.b[start+i] = byte(v)
			v >>= 8
		}
		return
	}
	for i := uint(0); i < width; i++ {
		bit := off + i
		mask := byte(1) << (7 - bit%8)
		idx := bit / 8
		if (v>>(width-1-i))&1 == 1 {
			buf.b[idx] |= mask
		} else {
			buf.b[idx] &^= mask
		}
	}
}

// GetBytes returns a copy of n bytes starting at byte offset off.
// Bytes beyond the current length read as zero.
func (buf *Buffer) GetBytes(off, n int) []byte {
	out := make([]byte, n)
	if off < len(buf.b) {
		copy(out, buf.b[off:])
	}
	return out
}

// SetBytes copies p into the buffer at byte offset off, zero-extending as needed.
func (buf *Buffer) SetBytes(off int, p []byte) {
	if end := off + len(p); end > len(buf.b) {
		buf.Resize(end)
	}
	copy(buf.b[off:], p)
}
