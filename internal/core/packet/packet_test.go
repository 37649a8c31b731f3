package packet

import (
	"encoding/binary"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/checksum"
	"firestige.xyz/pktforge/internal/core/header"
)

var (
	srcMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = [6]byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	src4   = netip.MustParseAddr("192.168.1.100")
	dst4   = netip.MustParseAddr("10.0.0.1")
	src6   = netip.MustParseAddr("fe80::1")
	dst6   = netip.MustParseAddr("fe80::2")
)

func ethernet(t header.Kind) *header.Ethernet {
	eth := header.NewEthernet()
	eth.SetSrcMAC(srcMAC)
	eth.SetDstMAC(dstMAC)
	if t == header.KindIPv6 {
		eth.SetEtherType(core.EtherTypeIPv6)
	} else {
		eth.SetEtherType(core.EtherTypeIPv4)
	}
	return eth
}

func ipv4(t *testing.T, proto core.IPProto, src, dst netip.Addr) *header.IPv4 {
	t.Helper()
	ip := header.NewIPv4()
	ip.SetProtocol(proto)
	require.NoError(t, ip.SetSrcAddr(src))
	require.NoError(t, ip.SetDstAddr(dst))
	return ip
}

func TestBuildConcatenatesWithoutValidation(t *testing.T) {
	ip := ipv4(t, core.IPProtoUDP, src4, dst4)
	ip.SetTotalLength(9999) // deliberately wrong
	udp := header.NewUDP()

	payload := []byte{0xca, 0xfe}
	out := Build([]header.Header{ip, udp}, payload)

	assert.Len(t, out, 20+8+2)
	assert.Equal(t, ip.Bytes(), out[:20])
	assert.Equal(t, udp.Bytes(), out[20:28])
	assert.Equal(t, payload, out[28:])
	assert.Equal(t, uint16(9999), binary.BigEndian.Uint16(out[2:4]))
	assert.Zero(t, udp.Length(), "Build must not compute fields")
}

func TestBuildTypedSlice(t *testing.T) {
	a, b := header.NewMPLS(), header.NewMPLS()
	a.SetBottomOfStack(false)
	a.SetLabel(100)
	b.SetLabel(200)

	out := Build([]*header.MPLS{a, b}, nil)
	assert.Equal(t, append(a.Bytes(), b.Bytes()...), out)

	assert.Equal(t, []byte("x"), Build([]header.Header(nil), []byte("x")))
	assert.Empty(t, Build([]header.Header(nil), nil))
}

func TestFinalizeMatchesGopacket(t *testing.T) {
	// Long enough that gopacket adds no Ethernet padding.
	payload := []byte("pktforge over udp, longer than the ethernet minimum")

	eth := ethernet(header.KindIPv4)
	ip := ipv4(t, core.IPProtoUDP, src4, dst4)
	udp := header.NewUDP()
	udp.SetSrcPort(5000)
	udp.SetDstPort(6000)

	out, err := NewBuilder(eth, ip).Add(udp).Payload(payload).Assemble()
	require.NoError(t, err)

	refIP := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(src4.AsSlice()),
		DstIP:    net.IP(dst4.AsSlice()),
	}
	refUDP := &layers.UDP{SrcPort: 5000, DstPort: 6000}
	require.NoError(t, refUDP.SetNetworkLayerForChecksum(refIP))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts,
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr(srcMAC[:]),
			DstMAC:       net.HardwareAddr(dstMAC[:]),
			EthernetType: layers.EthernetTypeIPv4,
		},
		refIP, refUDP, gopacket.Payload(payload)))

	assert.Equal(t, buf.Bytes(), out)
}

func TestFinalizeIPv6TCP(t *testing.T) {
	payload := []byte("hello")

	ip := header.NewIPv6()
	ip.SetNextHeader(core.IPProtoTCP)
	require.NoError(t, ip.SetSrcAddr(src6))
	require.NoError(t, ip.SetDstAddr(dst6))
	tcp := header.NewTCP()
	tcp.SetSrcPort(1234)
	tcp.SetDstPort(80)
	tcp.SetSYN(true)

	headers := []header.Header{ethernet(header.KindIPv6), ip, tcp}
	require.NoError(t, Finalize(headers, payload))

	assert.Equal(t, uint16(20+len(payload)), ip.PayloadLength())
	assert.True(t, checksum.VerifyTCP(src6, dst6, tcp.Bytes(), payload))

	out := Build(headers, payload)
	assert.Len(t, out, 14+40+20+len(payload))
}

func TestFinalizeVXLANNearestAddresses(t *testing.T) {
	payload := []byte("inner ping")
	innerSrc := netip.MustParseAddr("172.16.0.1")
	innerDst := netip.MustParseAddr("172.16.0.2")

	outerIP := ipv4(t, core.IPProtoUDP, src4, dst4)
	outerUDP := header.NewUDP()
	outerUDP.SetSrcPort(49152)
	outerUDP.SetDstPort(header.VXLANPort)
	vx := header.NewVXLAN()
	vx.SetVNI(42)
	innerIP := ipv4(t, core.IPProtoICMP, innerSrc, innerDst)
	icmp := header.NewICMPv4()

	headers := []header.Header{
		ethernet(header.KindIPv4), outerIP, outerUDP, vx,
		ethernet(header.KindIPv4), innerIP, icmp,
	}
	require.NoError(t, Finalize(headers, payload))
	out := Build(headers, payload)

	innerLen := 14 + 20 + 8 + len(payload)
	assert.Equal(t, uint16(20+8+8+innerLen), outerIP.TotalLength())
	assert.Equal(t, uint16(8+8+innerLen), outerUDP.Length())
	assert.Equal(t, uint16(20+8+len(payload)), innerIP.TotalLength())

	assert.True(t, outerIP.VerifyChecksum())
	assert.True(t, innerIP.VerifyChecksum())
	assert.True(t, checksum.VerifyUDP(src4, dst4, out[34:42], out[42:]))
	assert.True(t, checksum.VerifyICMP(icmp.Bytes(), payload))
}

func TestFinalizeReportsLayer(t *testing.T) {
	ip := ipv4(t, core.IPProtoICMPv6, src4, dst4)
	icmp := header.NewICMPv6()

	err := Finalize([]header.Header{ip, icmp}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAddrFamily)
	assert.Contains(t, err.Error(), "layer 1 (icmpv6)")
}

func TestBuilderHeaders(t *testing.T) {
	b := NewBuilder()
	assert.Empty(t, b.Headers())
	b.Add(header.NewUDP()).Payload([]byte{1})
	require.Len(t, b.Headers(), 1)

	out, err := b.Assemble()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 9, 0, 0, 1}, out)
}
