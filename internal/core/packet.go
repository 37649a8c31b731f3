// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is one frame read from a capture file or built by a template.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length
	LinkType   LinkType  // Kind of the first header in Data
}

// LinkType names the outermost header of a RawPacket.
type LinkType uint8

const (
	LinkTypeEthernet LinkType = iota
	LinkTypeRaw               // Data starts with an IPv4 or IPv6 header
)

func (l LinkType) String() string {
	switch l {
	case LinkTypeEthernet:
		return "ethernet"
	case LinkTypeRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// DecodedPacket is the L2-L4 summary of a decoded frame.
type DecodedPacket struct {
	Timestamp  time.Time
	Ethernet   EthernetHeader
	IP         IPHeader
	Transport  TransportHeader
	Payload    []byte // Bytes following the innermost decoded header
	CaptureLen uint32
	OrigLen    uint32
	Tunneled   bool // Whether the frame went through tunnel decapsulation
}
