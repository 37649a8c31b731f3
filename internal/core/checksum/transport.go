package checksum

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/pktforge/internal/core"
)

const (
	udpHeaderLen  = 8
	tcpHeaderLen  = 20
	icmpHeaderLen = 8

	udpChecksumOffset  = 6
	tcpChecksumOffset  = 16
	icmpChecksumOffset = 2
)

// transportSum sums pseudo-header, hdr with its checksum word skipped and payload.
func transportSum(src, dst netip.Addr, proto core.IPProto, hdr []byte, csumOff int, payload []byte) (uint16, error) {
	ph, err := PseudoHeader(src, dst, proto, len(hdr)+len(payload))
	if err != nil {
		return 0, err
	}
	var a Accumulator
	a.Write(ph)
	a.Write(hdr[:csumOff])
	a.Write(hdr[csumOff+2:])
	a.Write(payload)
	return a.Sum16(), nil
}

// UDP computes the UDP checksum over the pseudo-header for src/dst, the
// first 8 bytes of hdr (checksum field treated as zero) and payload.
// The pseudo-header length is always 8+len(payload), but the length word
// in hdr is summed as stored. A forged length therefore yields the value a
// receiver verifying the wire bytes expects, not the value for a header
// carrying the true length.
// A computed value of 0 is returned as 0xFFFF: zero means "no checksum"
// for UDP over IPv4 and is forbidden over IPv6.
func UDP(src, dst netip.Addr, hdr, payload []byte) (uint16, error) {
	if len(hdr) < udpHeaderLen {
		return 0, fmt.Errorf("udp header %d bytes: %w", len(hdr), core.ErrPacketTooShort)
	}
	sum, err := transportSum(src, dst, core.IPProtoUDP, hdr[:udpHeaderLen], udpChecksumOffset, payload)
	if err != nil {
		return 0, err
	}
	if sum == 0 {
		return 0xFFFF, nil
	}
	return sum, nil
}

// TCP computes the TCP checksum over the pseudo-header for src/dst, hdr
// including options (checksum field treated as zero) and payload.
// Unlike UDP a result of 0 is returned as is.
func TCP(src, dst netip.Addr, hdr, payload []byte) (uint16, error) {
	if len(hdr) < tcpHeaderLen {
		return 0, fmt.Errorf("tcp header %d bytes: %w", len(hdr), core.ErrPacketTooShort)
	}
	return transportSum(src, dst, core.IPProtoTCP, hdr, tcpChecksumOffset, payload)
}

// ICMPv6 computes the ICMPv6 checksum, which covers the IPv6 pseudo-header.
func ICMPv6(src, dst netip.Addr, hdr, payload []byte) (uint16, error) {
	if len(hdr) < icmpHeaderLen {
		return 0, fmt.Errorf("icmpv6 header %d bytes: %w", len(hdr), core.ErrPacketTooShort)
	}
	if !src.Is6() || !dst.Is6() {
		return 0, fmt.Errorf("icmpv6 over %v -> %v: %w", src, dst, core.ErrAddrFamily)
	}
	return transportSum(src, dst, core.IPProtoICMPv6, hdr, icmpChecksumOffset, payload)
}

// ICMP computes the ICMPv4 checksum over hdr and payload. No pseudo-header is used.
func ICMP(hdr, payload []byte) (uint16, error) {
	if len(hdr) < icmpHeaderLen {
		return 0, fmt.Errorf("icmp header %d bytes: %w", len(hdr), core.ErrPacketTooShort)
	}
	var a Accumulator
	a.Write(hdr[:icmpChecksumOffset])
	a.Write(hdr[icmpChecksumOffset+2:])
	a.Write(payload)
	return a.Sum16(), nil
}

// VerifyUDP reports whether the checksum stored in hdr is correct. A
// stored zero over IPv4 means the sender did not compute one and is accepted.
func VerifyUDP(src, dst netip.Addr, hdr, payload []byte) bool {
	if len(hdr) < udpHeaderLen {
		return false
	}
	stored := binary.BigEndian.Uint16(hdr[udpChecksumOffset:])
	if stored == 0 {
		return src.Is4() && dst.Is4()
	}
	want, err := UDP(src, dst, hdr, payload)
	return err == nil && want == stored
}

// VerifyTCP reports whether the checksum stored in hdr is correct.
func VerifyTCP(src, dst netip.Addr, hdr, payload []byte) bool {
	want, err := TCP(src, dst, hdr, payload)
	return err == nil && want == binary.BigEndian.Uint16(hdr[tcpChecksumOffset:])
}

// VerifyICMP reports whether the checksum stored in an ICMPv4 header is correct.
func VerifyICMP(hdr, payload []byte) bool {
	want, err := ICMP(hdr, payload)
	return err == nil && want == binary.BigEndian.Uint16(hdr[icmpChecksumOffset:])
}

// VerifyICMPv6 reports whether the checksum stored in an ICMPv6 header is correct.
func VerifyICMPv6(src, dst netip.Addr, hdr, payload []byte) bool {
	want, err := ICMPv6(src, dst, hdr, payload)
	return err == nil && want == binary.BigEndian.Uint16(hdr[icmpChecksumOffset:])
}
