package decoder

import (
	"net/netip"
	"testing"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
	"firestige.xyz/pktforge/internal/core/packet"
)

var (
	testSrcMAC = [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	testDstMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	outerSrc   = netip.MustParseAddr("192.168.1.1")
	outerDst   = netip.MustParseAddr("192.168.1.2")
	innerSrc   = netip.MustParseAddr("10.0.0.1")
	innerDst   = netip.MustParseAddr("10.0.0.2")
)

func newEth(t core.EtherType) *header.Ethernet {
	eth := header.NewEthernet()
	eth.SetDstMAC(testDstMAC)
	eth.SetSrcMAC(testSrcMAC)
	eth.SetEtherType(t)
	return eth
}

func newIPv4(tb testing.TB, proto core.IPProto, src, dst netip.Addr) *header.IPv4 {
	tb.Helper()
	ip := header.NewIPv4()
	ip.SetProtocol(proto)
	if err := ip.SetSrcAddr(src); err != nil {
		tb.Fatal(err)
	}
	if err := ip.SetDstAddr(dst); err != nil {
		tb.Fatal(err)
	}
	return ip
}

func newUDP(src, dst uint16) *header.UDP {
	udp := header.NewUDP()
	udp.SetSrcPort(src)
	udp.SetDstPort(dst)
	return udp
}

// assemble finalizes and concatenates headers and payload.
func assemble(tb testing.TB, payload []byte, headers ...header.Header) []byte {
	tb.Helper()
	out, err := packet.NewBuilder(headers...).Payload(payload).Assemble()
	if err != nil {
		tb.Fatalf("assemble failed: %v", err)
	}
	return out
}

func ethernetRaw(data []byte) core.RawPacket {
	return core.RawPacket{
		Data:       data,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
		LinkType:   core.LinkTypeEthernet,
	}
}

func kindsEqual(got []header.Kind, want ...header.Kind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
