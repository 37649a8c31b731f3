package checksum

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/pktforge/internal/core"
)

const (
	PseudoHeaderIPv4Len = 12
	PseudoHeaderIPv6Len = 40
)

// PseudoHeaderIPv4 builds the 12-byte IPv4 pseudo-header (RFC 768/793).
// length is the transport header plus payload length.
func PseudoHeaderIPv4(src, dst [4]byte, proto core.IPProto, length uint16) [PseudoHeaderIPv4Len]byte {
	var ph [PseudoHeaderIPv4Len]byte
	copy(ph[0:4], src[:])
	copy(ph[4:8], dst[:])
	ph[8] = 0
	ph[9] = uint8(proto)
	binary.BigEndian.PutUint16(ph[10:12], length)
	return ph
}

// PseudoHeaderIPv6 builds the 40-byte IPv6 pseudo-header (RFC 8200 §8.1).
func PseudoHeaderIPv6(src, dst [16]byte, next core.IPProto, length uint32) [PseudoHeaderIPv6Len]byte {
	var ph [PseudoHeaderIPv6Len]byte
	copy(ph[0:16], src[:])
	copy(ph[16:32], dst[:])
	binary.BigEndian.PutUint32(ph[32:36], length)
	// ph[36:39] stay zero
	ph[39] = uint8(next)
	return ph
}

// PseudoHeader builds the pseudo-header matching the address family of
// src and dst. Both addresses must be IPv4 or both IPv6.
func PseudoHeader(src, dst netip.Addr, proto core.IPProto, length int) ([]byte, error) {
	switch {
	case src.Is4() && dst.Is4():
		if length > 0xFFFF {
			return nil, fmt.Errorf("transport length %d exceeds 16 bits: %w", length, core.ErrInvalidHeader)
		}
		ph := PseudoHeaderIPv4(src.As4(), dst.As4(), proto, uint16(length))
		return ph[:], nil
	case src.Is6() && dst.Is6():
		ph := PseudoHeaderIPv6(src.As16(), dst.As16(), proto, uint32(length))
		return ph[:], nil
	default:
		return nil, fmt.Errorf("src %v, dst %v: %w", src, dst, core.ErrAddrFamily)
	}
}
