package forge

import (
	"bytes"
	"fmt"
	"net/netip"
	"reflect"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktforge/internal/config"
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/checksum"
	"firestige.xyz/pktforge/internal/core/decoder"
	"firestige.xyz/pktforge/internal/core/header"
	"firestige.xyz/pktforge/internal/payload"
)

func parse(t *testing.T, doc string) *config.Template {
	t.Helper()
	tmpl, err := config.ParseTemplateYAML([]byte(doc))
	require.NoError(t, err)
	return tmpl
}

func build(t *testing.T, doc string) []byte {
	t.Helper()
	bp, err := Compile(parse(t, doc))
	require.NoError(t, err)
	pkt, err := bp.Build(payload.NewSeeded(1))
	require.NoError(t, err)
	return pkt
}

func decode(t *testing.T, data []byte) decoder.Frame {
	t.Helper()
	frame, err := decoder.NewStandardDecoder(decoder.DefaultConfig()).Decode(core.RawPacket{
		Data:       data,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
		LinkType:   core.LinkTypeEthernet,
	})
	require.NoError(t, err)
	return frame
}

const tcpTemplate = `
name: syn-ack
layers:
  - type: eth
    fields:
      src: "aa:bb:cc:dd:ee:ff"
      dst: "00:11:22:33:44:55"
  - type: ipv4
    fields:
      src: 192.168.1.1
      dst: 192.168.1.2
      ttl: 32
      df: true
  - type: tcp
    fields:
      sport: 443
      dport: 51000
      seq: 1000
      ack: 2000
      flags: SYN|ACK
payload:
  text: hello
`

func TestCompileLinksNextProtocol(t *testing.T) {
	bp, err := Compile(parse(t, tcpTemplate))
	require.NoError(t, err)
	assert.Equal(t, "syn-ack", bp.Name())

	hs := bp.Headers()
	require.Len(t, hs, 3)
	assert.Equal(t, core.EtherTypeIPv4, hs[0].(*header.Ethernet).EtherType())
	assert.Equal(t, core.IPProtoTCP, hs[1].(*header.IPv4).Protocol())
}

func TestBuildTCP(t *testing.T) {
	pkt := build(t, tcpTemplate)
	require.Len(t, pkt, 14+20+20+5)
	assert.Equal(t, []byte("hello"), pkt[len(pkt)-5:])

	frame := decode(t, pkt)
	assert.Equal(t, []header.Kind{header.KindEthernet, header.KindIPv4, header.KindTCP}, frame.Kinds())
	assert.Zero(t, frame.ChecksumErrors())

	ip := frame.Layers[1].Header.(*header.IPv4)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), ip.SrcAddr())
	assert.Equal(t, uint8(32), ip.TTL())
	assert.True(t, ip.DontFragment())
	tcp := frame.Layers[2].Header.(*header.TCP)
	assert.Equal(t, uint8(0x12), tcp.Flags())

	// Cross-check against an independent decoder.
	gp := gopacket.NewPacket(pkt, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, gp.ErrorLayer())
	gtcp, ok := gp.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.True(t, gtcp.SYN)
	assert.True(t, gtcp.ACK)
	assert.Equal(t, layers.TCPPort(443), gtcp.SrcPort)
	assert.Equal(t, uint32(1000), gtcp.Seq)
	gip, ok := gp.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, uint16(len(pkt)-14), gip.Length)
}

func TestBuildVXLAN(t *testing.T) {
	pkt := build(t, `
layers:
  - type: ethernet
  - type: ipv4
    fields: {src: 192.168.1.1, dst: 192.168.1.2}
  - type: udp
    fields: {sport: 50000}
  - type: vxlan
    fields: {vni: 42}
  - type: ethernet
  - type: ipv4
    fields: {src: 10.0.0.1, dst: 10.0.0.2}
  - type: udp
    fields: {sport: 1000, dport: 2000}
payload:
  kind: incremental
  size: 32
`)
	frame := decode(t, pkt)
	assert.True(t, frame.Tunneled)
	require.Len(t, frame.Layers, 7)
	assert.Zero(t, frame.ChecksumErrors())
	assert.Equal(t, uint16(header.VXLANPort), frame.Layers[2].Header.(*header.UDP).DstPort())
	assert.Equal(t, uint32(42), frame.Layers[3].Header.(*header.VXLAN).VNI())
	assert.Equal(t, core.EtherTypeIPv4, frame.Layers[4].Header.(*header.Ethernet).EtherType())
	assert.Len(t, frame.Payload, 32)
	assert.Equal(t, byte(31), frame.Payload[31])
}

func TestBuildMPLSStack(t *testing.T) {
	bp, err := Compile(parse(t, `
layers:
  - type: eth
  - type: mpls
    fields: {label: 100}
  - type: mpls
    fields: {label: 200, ttl: 9}
  - type: ipv4
  - type: icmp
`))
	require.NoError(t, err)
	hs := bp.Headers()
	assert.Equal(t, core.EtherTypeMPLS, hs[0].(*header.Ethernet).EtherType())
	assert.False(t, hs[1].(*header.MPLS).BottomOfStack())
	assert.True(t, hs[2].(*header.MPLS).BottomOfStack())
	assert.Equal(t, uint32(200), hs[2].(*header.MPLS).Label())
	assert.Equal(t, core.IPProtoICMP, hs[3].(*header.IPv4).Protocol())

	pkt, err := bp.Build(nil)
	require.NoError(t, err)
	frame := decode(t, pkt)
	assert.Equal(t, []header.Kind{
		header.KindEthernet, header.KindMPLS, header.KindMPLS, header.KindIPv4, header.KindICMPv4,
	}, frame.Kinds())
	assert.Zero(t, frame.ChecksumErrors())
}

func TestBuildGRETransparentBridging(t *testing.T) {
	bp, err := Compile(parse(t, `
layers:
  - type: eth
  - type: ipv4
  - type: gre
    fields: {key: 7, checksum: true}
  - type: eth
  - type: arp
    fields:
      op: 2
      sender_mac: "aa:bb:cc:dd:ee:ff"
      sender_ip: 10.0.0.1
      target_ip: 10.0.0.2
`))
	require.NoError(t, err)
	hs := bp.Headers()
	assert.Equal(t, core.IPProtoGRE, hs[1].(*header.IPv4).Protocol())
	gre := hs[2].(*header.GRE)
	assert.Equal(t, core.EtherTypeTransparentEB, gre.Protocol())
	key, ok := gre.Key()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), key)
	assert.Equal(t, core.EtherTypeARP, hs[3].(*header.Ethernet).EtherType())

	pkt, err := bp.Build(nil)
	require.NoError(t, err)
	frame := decode(t, pkt)
	assert.True(t, frame.Tunneled)
	assert.Zero(t, frame.ChecksumErrors())
	assert.Equal(t, header.KindARP, frame.Kinds()[len(frame.Layers)-1])
}

func TestBuildExplicitOverrides(t *testing.T) {
	pkt := build(t, `
layers:
  - type: eth
  - type: ipv4
    fields: {src: 1.1.1.1, dst: 2.2.2.2, checksum: "0xdead"}
  - type: udp
    fields: {sport: 53, dport: 53, checksum: 0}
payload:
  hex: "de ad be ef"
`)
	assert.Equal(t, []byte{0xde, 0xad}, pkt[24:26])

	frame := decode(t, pkt)
	assert.Equal(t, decoder.ChecksumInvalid, frame.Layers[1].Checksum)
	assert.Equal(t, decoder.ChecksumAbsent, frame.Layers[2].Checksum)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, frame.Payload)
}

func TestBuildIHLOverrideKeepsChecksumValid(t *testing.T) {
	pkt := build(t, `
layers:
  - type: ipv4
    fields: {total_length: 100}
`)
	require.Len(t, pkt, 20)
	assert.Equal(t, []byte{0x00, 0x64}, pkt[2:4])

	ip := header.NewIPv4()
	require.NoError(t, ip.FromBytes(pkt))
	assert.True(t, ip.VerifyChecksum())
}

func TestBuildForgedIHL(t *testing.T) {
	for _, tt := range []struct {
		ihl  uint8
		want byte
	}{
		{ihl: 6, want: 0x46},
		{ihl: 4, want: 0x44},
		{ihl: 15, want: 0x4f},
	} {
		t.Run(fmt.Sprint(tt.ihl), func(t *testing.T) {
			pkt := build(t, fmt.Sprintf(`
layers:
  - type: eth
  - type: ipv4
    fields: {src: 10.0.0.1, dst: 10.0.0.2, ihl: %d}
  - type: udp
    fields: {sport: 1, dport: 2}
`, tt.ihl))
			ip := pkt[14 : 14+20]
			assert.Equal(t, tt.want, ip[0])
			// The checksum covers the 20 bytes on the wire whatever IHL says.
			assert.Equal(t, uint16(0), checksum.Sum(ip))
		})
	}
}

func TestBuildRaw(t *testing.T) {
	pkt := build(t, `
raw: true
layers:
  - type: ipv4
    fields: {total_length: 9999, protocol: 17}
  - type: udp
payload:
  text: abc
`)
	require.Len(t, pkt, 20+8+3)
	assert.Equal(t, []byte{0x27, 0x0f}, pkt[2:4])
	assert.Equal(t, byte(17), pkt[9])
	assert.Equal(t, []byte{0, 0}, pkt[10:12], "raw templates leave the checksum alone")
}

func TestTCPFlagsNumeric(t *testing.T) {
	bp, err := Compile(parse(t, `
layers:
  - type: tcp
    fields: {flags: 0x111}
`))
	require.NoError(t, err)
	tcp := bp.Headers()[0].(*header.TCP)
	assert.Equal(t, uint8(0x11), tcp.Flags())
	assert.True(t, tcp.NS())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown field", "layers: [{type: udp, fields: {sprot: 1}}]", core.ErrInvalidField},
		{"bad mac", "layers: [{type: eth, fields: {src: zz}}]", core.ErrInvalidField},
		{"bad address", "layers: [{type: ipv4, fields: {src: 300.1.1.1}}]", core.ErrInvalidField},
		{"wrong family", "layers: [{type: ipv4, fields: {src: \"::1\"}}]", core.ErrAddrFamily},
		{"bad flags", "layers: [{type: tcp, fields: {flags: SYN|BOGUS}}]", core.ErrInvalidField},
		{"overflow", "layers: [{type: udp, fields: {sport: 70000}}]", core.ErrInvalidField},
		{"negative", "layers: [{type: udp, fields: {sport: -1}}]", core.ErrInvalidField},
		{"uint8 overflow", "layers: [{type: ipv4, fields: {ttl: 256}}]", core.ErrInvalidField},
		{"pointer overflow", "layers: [{type: udp, fields: {dport: 65536}}]", core.ErrInvalidField},
		{"hex string overflow", "layers: [{type: eth, fields: {type: \"0x10000\"}}]", core.ErrInvalidField},
		{"flags overflow", "layers: [{type: tcp, fields: {flags: 65554}}]", core.ErrInvalidField},
		{"bad options", "layers: [{type: ipv4, fields: {options: xyz}}]", core.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(parse(t, tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Compile(&config.Template{})
	assert.ErrorIs(t, err, core.ErrEmptyTemplate)
	_, err = Compile(&config.Template{Layers: []config.LayerConfig{{Type: "sctp"}}})
	assert.ErrorIs(t, err, core.ErrUnknownLayer)
}

func TestCompileFieldBounds(t *testing.T) {
	bp, err := Compile(parse(t, `
layers:
  - type: eth
    fields: {type: "0x86dd"}
  - type: ipv4
    fields: {ttl: 255, id: 0xffff}
  - type: udp
    fields: {sport: 65535, dport: "0xffff"}
`))
	require.NoError(t, err)
	hs := bp.Headers()
	assert.Equal(t, core.EtherTypeIPv6, hs[0].(*header.Ethernet).EtherType())
	assert.Equal(t, uint8(255), hs[1].(*header.IPv4).TTL())
	assert.Equal(t, uint16(0xffff), hs[2].(*header.UDP).SrcPort())
	assert.Equal(t, uint16(0xffff), hs[2].(*header.UDP).DstPort())
}

func TestCheckIntRange(t *testing.T) {
	u8 := reflect.TypeOf(uint8(0))
	i8 := reflect.TypeOf(int8(0))
	str := reflect.TypeOf("")
	tests := []struct {
		to   reflect.Type
		data any
		ok   bool
	}{
		{u8, 255, true},
		{u8, 256, false},
		{u8, -1, false},
		{u8, 0, true},
		{u8, uint64(1 << 40), false},
		{u8, 255.0, true},
		{u8, 256.0, false},
		{u8, "0xff", true},
		{u8, "0x100", false},
		{u8, "not a number", true}, // left for the decoder to reject
		{i8, -128, true},
		{i8, -129, false},
		{i8, 127, true},
		{i8, 128, false},
		{str, 1 << 40, true},
	}
	for _, tt := range tests {
		_, err := checkIntRange(reflect.TypeOf(tt.data), tt.to, tt.data)
		if tt.ok {
			assert.NoError(t, err, "%v into %s", tt.data, tt.to)
		} else {
			assert.Error(t, err, "%v into %s", tt.data, tt.to)
		}
	}
}

func TestBuildMessagePayloads(t *testing.T) {
	pkt := build(t, `
layers:
  - type: eth
  - type: ipv4
    fields: {src: 10.0.0.1, dst: 10.0.0.53}
  - type: udp
    fields: {sport: 5353, dport: 53}
payload:
  kind: dns_query
  domain: example.com
  id: 0xbeef
`)
	want, err := payload.DNSQuery(0xbeef, "example.com")
	require.NoError(t, err)
	frame := decode(t, pkt)
	assert.Zero(t, frame.ChecksumErrors())
	assert.Equal(t, want, frame.Payload)

	pkt = build(t, `
layers:
  - type: eth
  - type: ipv4
  - type: tcp
    fields: {dport: 80, flags: PSH|ACK}
payload:
  kind: http_get
  host: example.com
  path: /index.html
`)
	assert.Equal(t, payload.HTTPGet("example.com", "/index.html"), decode(t, pkt).Payload)

	pkt = build(t, `
layers:
  - type: eth
  - type: ipv4
  - type: udp
payload: {kind: repeating, size: 8, period: 2}
`)
	data := decode(t, pkt).Payload
	require.Len(t, data, 8)
	assert.Equal(t, bytes.Repeat(data[:2], 4), data)
}

func TestBuildGeneratedPayloadNeedsGenerator(t *testing.T) {
	bp, err := Compile(parse(t, `
layers: [{type: udp}]
payload: {kind: random, size: 4}
`))
	require.NoError(t, err)
	_, err = bp.Build(nil)
	assert.Error(t, err)
}

func TestForge(t *testing.T) {
	tmpl := parse(t, `
name: burst
count: 3
layers:
  - type: ipv6
    fields: {src: "fe80::1", dst: "fe80::2"}
  - type: udp
    fields: {sport: 1, dport: 2}
payload: {kind: random, size: 16}
`)
	f := New(payload.NewSeeded(7), nil)
	pkts, err := f.Forge(tmpl)
	require.NoError(t, err)
	require.Len(t, pkts, 3)
	for _, p := range pkts {
		assert.Len(t, p, 40+8+16)
		assert.Equal(t, byte(core.IPProtoUDP), p[6])
	}
	assert.False(t, bytes.Equal(pkts[0][48:], pkts[1][48:]))

	// Same seed, same packets.
	again, err := New(payload.NewSeeded(7), nil).Forge(tmpl)
	require.NoError(t, err)
	assert.Equal(t, pkts, again)
}
