package decoder

import (
	"bytes"
	"net/netip"
	"testing"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

func newVLAN(id uint16, next core.EtherType) *header.VLAN {
	v := header.NewVLAN()
	v.SetID(id)
	v.SetEtherType(next)
	return v
}

func newMPLS(label uint32, bottom bool) *header.MPLS {
	m := header.NewMPLS()
	m.SetLabel(label)
	m.SetBottomOfStack(bottom)
	return m
}

func TestDecodeEthernet(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	data := makeSimpleUDPPacket()

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	eth, ok := decoded.Layers[0].Header.(*header.Ethernet)
	if !ok {
		t.Fatalf("Expected *header.Ethernet, got %T", decoded.Layers[0].Header)
	}
	if eth.DstMAC().String() != "00:11:22:33:44:55" {
		t.Errorf("Expected DstMAC 00:11:22:33:44:55, got %v", eth.DstMAC())
	}
	if decoded.Ethernet.DstMAC != testDstMAC {
		t.Errorf("Expected summary DstMAC %v, got %v", testDstMAC, decoded.Ethernet.DstMAC)
	}
}

func TestDecodeVLAN(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	data := assemble(t, []byte("vlan"),
		newEth(core.EtherTypeVLAN),
		newVLAN(100, core.EtherTypeIPv4),
		newIPv4(t, core.IPProtoUDP, outerSrc, outerDst),
		newUDP(5000, 5001))

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Ethernet.VLANs) != 1 || decoded.Ethernet.VLANs[0] != 100 {
		t.Errorf("Expected VLANs [100], got %v", decoded.Ethernet.VLANs)
	}
	if decoded.Ethernet.EtherType != core.EtherTypeIPv4 {
		t.Errorf("Expected inner EtherType IPv4, got %v", decoded.Ethernet.EtherType)
	}
	if decoded.Transport.DstPort != 5001 {
		t.Errorf("Expected DstPort 5001, got %d", decoded.Transport.DstPort)
	}
}

func TestDecodeQinQ(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	data := assemble(t, nil,
		newEth(core.EtherTypeQinQ),
		newVLAN(10, core.EtherTypeVLAN),
		newVLAN(20, core.EtherTypeIPv6),
		header.NewIPv6())

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []uint16{10, 20}
	if len(decoded.Ethernet.VLANs) != len(want) {
		t.Fatalf("Expected VLANs %v, got %v", want, decoded.Ethernet.VLANs)
	}
	for i := range want {
		if decoded.Ethernet.VLANs[i] != want[i] {
			t.Errorf("VLAN %d: expected %d, got %d", i, want[i], decoded.Ethernet.VLANs[i])
		}
	}
	if decoded.IP.Version != 6 {
		t.Errorf("Expected IP version 6, got %d", decoded.IP.Version)
	}
}

func TestDecodeMPLS(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	data := assemble(t, []byte("mpls payload"),
		newEth(core.EtherTypeMPLS),
		newMPLS(100, false),
		newMPLS(200, true),
		newIPv4(t, core.IPProtoUDP, outerSrc, outerDst),
		newUDP(5000, 5001))

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !kindsEqual(decoded.Kinds(), header.KindEthernet, header.KindMPLS, header.KindMPLS, header.KindIPv4, header.KindUDP) {
		t.Fatalf("Unexpected layers %v", decoded.Kinds())
	}
	if len(decoded.Ethernet.MPLS) != 2 || decoded.Ethernet.MPLS[0] != 100 || decoded.Ethernet.MPLS[1] != 200 {
		t.Errorf("Expected MPLS labels [100 200], got %v", decoded.Ethernet.MPLS)
	}
	if decoded.IP.SrcIP != outerSrc {
		t.Errorf("Expected SrcIP %v, got %v", outerSrc, decoded.IP.SrcIP)
	}
	if decoded.ChecksumErrors() != 0 {
		t.Errorf("Expected no checksum errors, got %d", decoded.ChecksumErrors())
	}
}

func TestDecodeMPLSUnknownPayload(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	payload := []byte{0x00, 0x00, 0x00, 0x00} // pseudowire control word
	data := assemble(t, payload, newEth(core.EtherTypeMPLS), newMPLS(16, true))

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Layers) != 2 {
		t.Errorf("Expected 2 layers, got %d", len(decoded.Layers))
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("Expected payload %x, got %x", payload, decoded.Payload)
	}
}

func TestDecodeARP(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	arp := header.NewARP()
	arp.SetSenderMAC(testSrcMAC)
	if err := arp.SetSenderIP(netip.MustParseAddr("192.168.1.1")); err != nil {
		t.Fatal(err)
	}
	data := assemble(t, nil, newEth(core.EtherTypeARP), arp)

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !kindsEqual(decoded.Kinds(), header.KindEthernet, header.KindARP) {
		t.Fatalf("Unexpected layers %v", decoded.Kinds())
	}
	got := decoded.Layers[1].Header.(*header.ARP)
	if got.Op() != core.ARPRequest {
		t.Errorf("Expected ARP request, got %v", got.Op())
	}
	if got.SenderIP() != netip.MustParseAddr("192.168.1.1") {
		t.Errorf("Expected sender 192.168.1.1, got %v", got.SenderIP())
	}
	if decoded.IP.Version != 0 {
		t.Errorf("Expected no IP summary, got version %d", decoded.IP.Version)
	}
}

func TestDecodeUnknownEtherType(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	payload := []byte{0x02, 0x07, 0x04} // LLDP chassis ID TLV
	data := assemble(t, payload, newEth(core.EtherType(0x88CC)))

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Layers) != 1 {
		t.Errorf("Expected only the Ethernet layer, got %v", decoded.Kinds())
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("Expected payload %x, got %x", payload, decoded.Payload)
	}
	if decoded.Truncated {
		t.Error("Unknown EtherType should not mark the frame truncated")
	}
}
