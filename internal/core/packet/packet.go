// Package packet concatenates serialized headers and a payload into one
// frame. Build never checks that adjacent headers agree on lengths,
// protocol numbers or checksums; Finalize is the opt-in helper that
// makes them agree.
package packet

import (
	"fmt"

	"firestige.xyz/pktforge/internal/core/header"
)

// Serializer is anything that can render itself to wire bytes.
type Serializer interface {
	Bytes() []byte
}

// Build returns the headers' bytes in order followed by payload.
func Build[S Serializer](headers []S, payload []byte) []byte {
	parts := make([][]byte, len(headers))
	n := len(payload)
	for i, h := range headers {
		parts[i] = h.Bytes()
		n += len(parts[i])
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return append(out, payload...)
}

// Finalize calls UpdateComputedFields on every header, innermost first,
// so that an outer length or checksum covers the already-final inner
// bytes. Each header sees everything after it as its payload and the
// addresses of the nearest enclosing IPv4 or IPv6 header.
func Finalize(headers []header.Header, payload []byte) error {
	tail := append([]byte(nil), payload...)
	for i := len(headers) - 1; i >= 0; i-- {
		h := headers[i]
		ctx := header.ComputeContext{Payload: tail}
		if a := enclosingAddresser(headers[:i]); a != nil {
			ctx.Src, ctx.Dst = a.SrcAddr(), a.DstAddr()
		}
		if err := h.UpdateComputedFields(ctx); err != nil {
			return fmt.Errorf("layer %d (%v): %w", i, h.Kind(), err)
		}
		tail = append(h.Bytes(), tail...)
	}
	return nil
}

func enclosingAddresser(outer []header.Header) header.Addresser {
	for i := len(outer) - 1; i >= 0; i-- {
		if a, ok := outer[i].(header.Addresser); ok {
			return a
		}
	}
	return nil
}

// Builder collects headers and a payload for Finalize and Build.
type Builder struct {
	headers []header.Header
	payload []byte
}

// NewBuilder returns a Builder holding the given headers, outermost first.
func NewBuilder(headers ...header.Header) *Builder {
	return &Builder{headers: headers}
}

// Add appends headers below the ones already added.
func (b *Builder) Add(headers ...header.Header) *Builder {
	b.headers = append(b.headers, headers...)
	return b
}

// Payload sets the bytes following the innermost header.
func (b *Builder) Payload(p []byte) *Builder {
	b.payload = p
	return b
}

// Headers returns the headers in wire order.
func (b *Builder) Headers() []header.Header { return b.headers }

// Finalize recomputes derived fields of every header; see Finalize.
func (b *Builder) Finalize() error { return Finalize(b.headers, b.payload) }

// Build concatenates the headers as they are now.
func (b *Builder) Build() []byte { return Build(b.headers, b.payload) }

// Assemble finalizes then builds.
func (b *Builder) Assemble() ([]byte, error) {
	if err := b.Finalize(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
