// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// EthernetHeader summarises the L2 part of a decoded frame.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType EtherType // Innermost EtherType after VLAN tags
	VLANs     []uint16  // 0~2 VLAN IDs (QinQ scenarios have 2)
	MPLS      []uint32  // MPLS label stack, outermost first
}

// IPHeader summarises the L3 part of a decoded frame (IPv4/IPv6).
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol IPProto // IPv4 protocol or IPv6 next header
	TTL      uint8   // TTL or hop limit
	TotalLen uint32  // IPv6 adds its 40-byte header to a 16-bit payload length
	// Inner IP addresses after tunnel decapsulation (zero value if not tunneled)
	InnerSrcIP netip.Addr
	InnerDstIP netip.Addr
}

// TransportHeader summarises the L4 part of a decoded frame (TCP/UDP/ICMP).
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol IPProto // Redundant storage for convenience
	// TCP-specific fields (only populated for TCP)
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32
	// ICMP-specific fields (only populated for ICMP/ICMPv6)
	ICMPType uint8
	ICMPCode uint8
}
