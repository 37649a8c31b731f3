package core

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"
)

// Test zero values of core structs
func TestStructZeroValues(t *testing.T) {
	t.Run("EthernetHeader", func(t *testing.T) {
		var eth EthernetHeader
		if eth.EtherType != 0 {
			t.Errorf("expected EtherType=0, got %d", eth.EtherType)
		}
		if eth.VLANs != nil {
			t.Errorf("expected VLANs=nil, got %v", eth.VLANs)
		}
		if eth.MPLS != nil {
			t.Errorf("expected MPLS=nil, got %v", eth.MPLS)
		}
	})

	t.Run("IPHeader", func(t *testing.T) {
		var ip IPHeader
		if ip.Version != 0 {
			t.Errorf("expected Version=0, got %d", ip.Version)
		}
		if ip.SrcIP.IsValid() {
			t.Errorf("expected invalid SrcIP, got %v", ip.SrcIP)
		}
		if ip.InnerDstIP.IsValid() {
			t.Errorf("expected invalid InnerDstIP, got %v", ip.InnerDstIP)
		}
	})

	t.Run("RawPacket", func(t *testing.T) {
		var raw RawPacket
		if raw.Data != nil {
			t.Errorf("expected Data=nil, got %v", raw.Data)
		}
		if raw.LinkType != LinkTypeEthernet {
			t.Errorf("expected LinkTypeEthernet, got %v", raw.LinkType)
		}
	})

	t.Run("DecodedPacket", func(t *testing.T) {
		var decoded DecodedPacket
		if decoded.Tunneled {
			t.Errorf("expected Tunneled=false, got true")
		}
		if decoded.Payload != nil {
			t.Errorf("expected Payload=nil, got %v", decoded.Payload)
		}
	})
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		v    fmt.Stringer
		want string
	}{
		{EtherTypeIPv4, "IPv4"},
		{EtherTypeQinQ, "QinQ"},
		{EtherType(0x88CC), "EtherType(0x88cc)"},
		{IPProtoTCP, "TCP"},
		{IPProtoICMPv6, "ICMPv6"},
		{IPProto(253), "IPProto(253)"},
		{ARPReply, "reply"},
		{ARPOp(9), "ARPOp(9)"},
		{LinkTypeRaw, "raw"},
		{LinkType(7), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestKnownValues(t *testing.T) {
	seen := make(map[EtherType]bool)
	for _, et := range KnownEtherTypes {
		if seen[et] {
			t.Errorf("duplicate EtherType %v", et)
		}
		seen[et] = true
	}
	if !seen[EtherTypeTransparentEB] {
		t.Error("expected TEB among known EtherTypes")
	}

	protos := make(map[IPProto]bool)
	for _, p := range KnownIPProtos {
		protos[p] = true
	}
	for _, p := range []IPProto{IPProtoICMP, IPProtoTCP, IPProtoUDP, IPProtoGRE, IPProtoICMPv6} {
		if !protos[p] {
			t.Errorf("expected %v among known protocols", p)
		}
	}
}

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorIdentity", func(t *testing.T) {
		err := ErrPacketTooShort
		if !errors.Is(err, ErrPacketTooShort) {
			t.Error("errors.Is failed for ErrPacketTooShort")
		}
		if errors.Is(ErrInvalidField, ErrInvalidHeader) {
			t.Error("distinct sentinels must not match")
		}
	})

	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrPacketTooShort, "pktforge: packet too short"},
			{ErrUnsupportedProto, "pktforge: unsupported protocol"},
			{ErrInvalidHeader, "pktforge: invalid header"},
			{ErrAddrFamily, "pktforge: address family mismatch"},
			{ErrUnknownLayer, "pktforge: unknown layer type"},
			{ErrInvalidField, "pktforge: invalid field value"},
			{ErrEmptyTemplate, "pktforge: template has no layers"},
			{ErrConfigInvalid, "pktforge: invalid configuration"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("ethernet header needs 14 bytes, have 10: %w", ErrPacketTooShort)
		if !errors.Is(wrapped, ErrPacketTooShort) {
			t.Error("errors.Is failed for wrapped error")
		}
	})
}

// Test packet structures with real data
func TestPacketStructures(t *testing.T) {
	t.Run("RawPacket", func(t *testing.T) {
		now := time.Now()
		raw := RawPacket{
			Data:       []byte{0x01, 0x02, 0x03},
			Timestamp:  now,
			CaptureLen: 3,
			OrigLen:    100,
			LinkType:   LinkTypeRaw,
		}

		if len(raw.Data) != 3 {
			t.Errorf("expected Data length 3, got %d", len(raw.Data))
		}
		if raw.Timestamp != now {
			t.Errorf("timestamp mismatch")
		}
		if raw.OrigLen != 100 {
			t.Errorf("expected OrigLen=100, got %d", raw.OrigLen)
		}
	})

	t.Run("DecodedPacket", func(t *testing.T) {
		srcIP := netip.MustParseAddr("192.168.1.1")
		dstIP := netip.MustParseAddr("192.168.1.2")

		decoded := DecodedPacket{
			Timestamp: time.Now(),
			Ethernet: EthernetHeader{
				EtherType: EtherTypeIPv4,
			},
			IP: IPHeader{
				Version:  4,
				SrcIP:    srcIP,
				DstIP:    dstIP,
				Protocol: IPProtoTCP,
			},
			Transport: TransportHeader{
				SrcPort:  5060,
				DstPort:  5060,
				Protocol: IPProtoTCP,
				TCPFlags: 0x02,
			},
			Payload: []byte("test payload"),
		}

		if decoded.IP.SrcIP != srcIP {
			t.Errorf("SrcIP mismatch")
		}
		if decoded.IP.DstIP != dstIP {
			t.Errorf("DstIP mismatch")
		}
		if decoded.Transport.SrcPort != 5060 {
			t.Errorf("expected SrcPort=5060, got %d", decoded.Transport.SrcPort)
		}
	})
}
