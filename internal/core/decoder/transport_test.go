package decoder

import (
	"net/netip"
	"testing"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

func TestDecodeTCP(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	tcp := header.NewTCP()
	tcp.SetSrcPort(80)
	tcp.SetDstPort(12345)
	tcp.SetSeq(1000)
	tcp.SetAck(2000)
	tcp.SetFlags(header.TCPFlagSYN | header.TCPFlagACK)
	data := assemble(t, nil,
		newEth(core.EtherTypeIPv4),
		newIPv4(t, core.IPProtoTCP, outerSrc, outerDst),
		tcp)

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tr := decoded.Transport
	if tr.Protocol != core.IPProtoTCP {
		t.Errorf("Expected protocol TCP, got %v", tr.Protocol)
	}
	if tr.SrcPort != 80 {
		t.Errorf("Expected SrcPort 80, got %d", tr.SrcPort)
	}
	if tr.DstPort != 12345 {
		t.Errorf("Expected DstPort 12345, got %d", tr.DstPort)
	}
	if tr.SeqNum != 1000 {
		t.Errorf("Expected SeqNum 1000, got %d", tr.SeqNum)
	}
	if tr.AckNum != 2000 {
		t.Errorf("Expected AckNum 2000, got %d", tr.AckNum)
	}
	if tr.TCPFlags != 0x12 {
		t.Errorf("Expected TCPFlags 0x12 (SYN+ACK), got 0x%02x", tr.TCPFlags)
	}
	if decoded.Layers[2].Checksum != ChecksumValid {
		t.Errorf("Expected valid TCP checksum, got %v", decoded.Layers[2].Checksum)
	}
}

func TestDecodeTCPBadChecksum(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	tcp := header.NewTCP()
	tcp.SetFlags(header.TCPFlagPSH | header.TCPFlagACK)
	data := assemble(t, []byte("GET / HTTP/1.1\r\n"),
		newEth(core.EtherTypeIPv4),
		newIPv4(t, core.IPProtoTCP, outerSrc, outerDst),
		tcp)
	data[34+16] ^= 0xFF // TCP checksum high byte

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Layers[2].Checksum != ChecksumInvalid {
		t.Errorf("Expected invalid TCP checksum, got %v", decoded.Layers[2].Checksum)
	}
	if decoded.Transport.TCPFlags != header.TCPFlagPSH|header.TCPFlagACK {
		t.Errorf("Expected PSH+ACK, got 0x%02x", decoded.Transport.TCPFlags)
	}
}

func TestDecodeUDPZeroChecksum(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	data := assemble(t, []byte("dns"),
		newEth(core.EtherTypeIPv4),
		newIPv4(t, core.IPProtoUDP, outerSrc, outerDst),
		newUDP(53, 53))
	data[40], data[41] = 0x00, 0x00 // UDP checksum not used

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Layers[2].Checksum != ChecksumAbsent {
		t.Errorf("Expected absent UDP checksum, got %v", decoded.Layers[2].Checksum)
	}
	if decoded.ChecksumErrors() != 0 {
		t.Errorf("Expected no checksum errors, got %d", decoded.ChecksumErrors())
	}
}

func TestDecodeUDPZeroChecksumIPv6(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	ip6 := header.NewIPv6()
	ip6.SetNextHeader(core.IPProtoUDP)
	if err := ip6.SetSrcAddr(netip.MustParseAddr("fe80::1")); err != nil {
		t.Fatal(err)
	}
	if err := ip6.SetDstAddr(netip.MustParseAddr("fe80::2")); err != nil {
		t.Fatal(err)
	}
	data := assemble(t, []byte("dns"), newEth(core.EtherTypeIPv6), ip6, newUDP(53, 53))
	data[14+40+6], data[14+40+7] = 0x00, 0x00

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	// Zero is never a valid UDP checksum over IPv6
	if decoded.Layers[2].Checksum != ChecksumInvalid {
		t.Errorf("Expected invalid UDP checksum, got %v", decoded.Layers[2].Checksum)
	}
}

func TestDecodeICMPv4(t *testing.T) {
	decoder := NewStandardDecoder(DefaultConfig())

	icmp := header.NewICMPv4()
	icmp.SetType(header.ICMPv4DestUnreachable)
	icmp.SetCode(3)
	data := assemble(t, make([]byte, 28),
		newEth(core.EtherTypeIPv4),
		newIPv4(t, core.IPProtoICMP, outerSrc, outerDst),
		icmp)

	decoded, err := decoder.Decode(ethernetRaw(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tr := decoded.Transport
	if tr.Protocol != core.IPProtoICMP {
		t.Errorf("Expected protocol ICMP, got %v", tr.Protocol)
	}
	if tr.ICMPType != 3 || tr.ICMPCode != 3 {
		t.Errorf("Expected type 3 code 3, got type %d code %d", tr.ICMPType, tr.ICMPCode)
	}
	if tr.SrcPort != 0 || tr.DstPort != 0 {
		t.Errorf("Expected no ports for ICMP, got %d/%d", tr.SrcPort, tr.DstPort)
	}
	if decoded.Layers[2].Checksum != ChecksumValid {
		t.Errorf("Expected valid ICMP checksum, got %v", decoded.Layers[2].Checksum)
	}
}

func TestChecksumStatusString(t *testing.T) {
	tests := []struct {
		s    ChecksumStatus
		want string
	}{
		{ChecksumNotChecked, "unchecked"},
		{ChecksumValid, "valid"},
		{ChecksumInvalid, "invalid"},
		{ChecksumAbsent, "absent"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
