// Package checksum implements the Internet one's-complement checksum
// (RFC 1071) and its IPv4, UDP, TCP and ICMP applications.
//
// Every function is a pure computation over caller-supplied bytes; inputs
// are never modified.
package checksum

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/pktforge/internal/core"
)

const (
	ipv4MinHeaderLen  = 20
	ipv4ChecksumStart = 10
)

// Accumulator is a running one's-complement sum. Bytes written across
// several calls are summed as if they had been written in one call,
// so an odd-length write is completed by the first byte of the next one.
//
// The zero value is ready to use.
type Accumulator struct {
	sum     uint64
	odd     bool
	pending byte
}

// Write adds p to the running sum.
func (a *Accumulator) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	if a.odd {
		a.sum += uint64(a.pending)<<8 | uint64(p[0])
		a.odd = false
		p = p[1:]
	}
	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		a.sum += uint64(binary.BigEndian.Uint16(p[i:]))
	}
	if len(p)&1 == 1 {
		a.odd = true
		a.pending = p[len(p)-1]
	}
}

// AddUint16 adds a 16-bit word. It must not be used while an odd byte is pending.
func (a *Accumulator) AddUint16(v uint16) { a.sum += uint64(v) }

// AddUint32 adds a 32-bit value as two big-endian words.
func (a *Accumulator) AddUint32(v uint32) {
	a.AddUint16(uint16(v >> 16))
	a.AddUint16(uint16(v))
}

// Fold returns the 16-bit one's-complement sum without complementing it.
// A pending odd byte is treated as the high byte of a zero-padded word.
func (a *Accumulator) Fold() uint16 {
	sum := a.sum
	if a.odd {
		sum += uint64(a.pending) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	return uint16(sum)
}

// Sum16 returns the checksum: the complement of Fold.
func (a *Accumulator) Sum16() uint16 { return ^a.Fold() }

// Reset clears the accumulator.
func (a *Accumulator) Reset() { *a = Accumulator{} }

// Sum computes the Internet checksum of b with no field clearing. The
// caller must zero any checksum field covered by b first; a live checksum
// field silently produces a different result.
func Sum(b []byte) uint16 {
	var a Accumulator
	a.Write(b)
	return a.Sum16()
}

// ipv4HeaderLen validates hdr as an IPv4 header and returns IHL*4.
func ipv4HeaderLen(hdr []byte) (int, error) {
	if len(hdr) < ipv4MinHeaderLen {
		return 0, fmt.Errorf("ipv4 header %d bytes: %w", len(hdr), core.ErrPacketTooShort)
	}
	ihl := int(hdr[0]&0x0F) * 4
	if ihl < ipv4MinHeaderLen {
		return 0, fmt.Errorf("ipv4 IHL %d: %w", ihl/4, core.ErrInvalidHeader)
	}
	if len(hdr) < ihl {
		return 0, fmt.Errorf("ipv4 header %d bytes, IHL says %d: %w", len(hdr), ihl, core.ErrPacketTooShort)
	}
	return ihl, nil
}

// IPv4Header computes the IPv4 header checksum. The checksum field at
// bytes 10:12 is treated as zero and only the IHL*4 declared header bytes
// are summed, so callers may pass a header with a live checksum followed
// by payload.
func IPv4Header(hdr []byte) (uint16, error) {
	n, err := ipv4HeaderLen(hdr)
	if err != nil {
		return 0, err
	}
	var a Accumulator
	a.Write(hdr[:ipv4ChecksumStart])
	a.Write(hdr[ipv4ChecksumStart+2 : n])
	return a.Sum16(), nil
}

// VerifyIPv4 reports whether the checksum stored in an IPv4 header
// matches its contents. It returns false for empty input, input shorter
// than 20 bytes or shorter than the declared IHL*4.
//
// The check is not collision-proof: distinct corruptions can cancel out.
func VerifyIPv4(hdr []byte) bool {
	want, err := IPv4Header(hdr)
	if err != nil {
		return false
	}
	return binary.BigEndian.Uint16(hdr[ipv4ChecksumStart:]) == want
}
