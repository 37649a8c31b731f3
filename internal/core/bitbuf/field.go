package bitbuf

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Field is a typed view over width bits of a Buffer starting at bit offset.
// Fields of one header must not overlap; nothing checks this at runtime.
type Field[T constraints.Unsigned] struct {
	offset uint
	width  uint
}

// NewField returns a Field descriptor. It panics if width is zero, wider
// than 64 bits or wider than T, since descriptors are fixed at package init.
func NewField[T constraints.Unsigned](offset, width uint) Field[T] {
	if width == 0 || width > 64 {
		panic(fmt.Sprintf("bitbuf: invalid field width %d", width))
	}
	if tbits := uint(bits.Len64(uint64(^T(0)))); width > tbits {
		panic(fmt.Sprintf("bitbuf: field width %d exceeds %d-bit type", width, tbits))
	}
	return Field[T]{offset: offset, width: width}
}

// Get reads the field value.
func (f Field[T]) Get(b *Buffer) T { return T(b.Get(f.offset, f.width)) }

// Set writes v, silently keeping only the low Width() bits.
func (f Field[T]) Set(b *Buffer, v T) { b.Set(f.offset, f.width, uint64(v)) }

// Offset returns the first bit of the field.
func (f Field[T]) Offset() uint { return f.offset }

// Width returns the field width in bits.
func (f Field[T]) Width() uint { return f.width }

// End returns the bit offset just past the field.
func (f Field[T]) End() uint { return f.offset + f.width }

// Max returns the largest value the field can hold.
func (f Field[T]) Max() T {
	if f.width == 64 {
		all := ^uint64(0)
		return T(all)
	}
	return T(uint64(1)<<f.width - 1)
}

// Flag is a single-bit boolean view.
type Flag struct {
	f Field[uint8]
}

// NewFlag returns a Flag at bit offset.
func NewFlag(offset uint) Flag {
	return Flag{f: NewField[uint8](offset, 1)}
}

// Get reports whether the bit is set.
func (fl Flag) Get(b *Buffer) bool { return fl.f.Get(b) == 1 }

// Set sets or clears the bit, leaving its neighbours untouched.
func (fl Flag) Set(b *Buffer, on bool) {
	var v uint8
	if on {
		v = 1
	}
	fl.f.Set(b, v)
}

// Offset returns the bit offset of the flag.
func (fl Flag) Offset() uint { return fl.f.Offset() }

// Enum is a Field whose values belong to a named enumeration type.
// Values outside the declared set are still representable on the wire;
// Known reports whether the stored value is one of them.
type Enum[E constraints.Unsigned] struct {
	Field[E]
	known []E
}

// NewEnum returns an Enum descriptor with the given set of known values.
func NewEnum[E constraints.Unsigned](offset, width uint, known ...E) Enum[E] {
	return Enum[E]{Field: NewField[E](offset, width), known: known}
}

// Known returns the stored value and whether it belongs to the known set.
func (e Enum[E]) Known(b *Buffer) (E, bool) {
	v := e.Get(b)
	for _, k := range e.known {
		if k == v {
			return v, true
		}
	}
	return v, false
}
