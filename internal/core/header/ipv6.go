package header

import (
	"fmt"
	"net/netip"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
)

// IPv6Len is the size of the fixed IPv6 header. Extension headers are not modelled.
const IPv6Len = 40

const (
	ipv6DefaultHopLimit = 64
	ipv6SrcOffset       = 8
	ipv6DstOffset       = 24
)

var (
	ipv6Version    = bitbuf.NewField[uint8](0, 4)
	ipv6TClass     = bitbuf.NewField[uint8](4, 8)
	ipv6FlowLabel  = bitbuf.NewField[uint32](12, 20)
	ipv6PayloadLen = bitbuf.NewField[uint16](32, 16)
	ipv6Next       = bitbuf.NewEnum[core.IPProto](48, 8, core.KnownIPProtos...)
	ipv6HopLimit   = bitbuf.NewField[uint8](56, 8)
)

// IPv6 is the fixed IPv6 header (RFC 8200).
type IPv6 struct {
	base
}

// NewIPv6 returns a header with version 6 and hop limit 64.
func NewIPv6() *IPv6 {
	h := &IPv6{base: newBase(IPv6Len)}
	ipv6Version.Set(&h.buf, 6)
	h.SetHopLimit(ipv6DefaultHopLimit)
	return h
}

func (h *IPv6) Kind() Kind { return KindIPv6 }

func (h *IPv6) Version() uint8           { return ipv6Version.Get(&h.buf) }
func (h *IPv6) TrafficClass() uint8      { return ipv6TClass.Get(&h.buf) }
func (h *IPv6) SetTrafficClass(tc uint8) { ipv6TClass.Set(&h.buf, tc) }

// FlowLabel returns the 20-bit flow label.
func (h *IPv6) FlowLabel() uint32            { return ipv6FlowLabel.Get(&h.buf) }
func (h *IPv6) SetFlowLabel(l uint32)        { ipv6FlowLabel.Set(&h.buf, l) }
func (h *IPv6) PayloadLength() uint16        { return ipv6PayloadLen.Get(&h.buf) }
func (h *IPv6) SetPayloadLength(n uint16)    { ipv6PayloadLen.Set(&h.buf, n) }
func (h *IPv6) NextHeader() core.IPProto     { return ipv6Next.Get(&h.buf) }
func (h *IPv6) SetNextHeader(p core.IPProto) { ipv6Next.Set(&h.buf, p) }
func (h *IPv6) HopLimit() uint8              { return ipv6HopLimit.Get(&h.buf) }
func (h *IPv6) SetHopLimit(n uint8)          { ipv6HopLimit.Set(&h.buf, n) }

func (h *IPv6) SrcAddr() netip.Addr { return h.addrAt(ipv6SrcOffset) }
func (h *IPv6) DstAddr() netip.Addr { return h.addrAt(ipv6DstOffset) }

func (h *IPv6) SetSrcAddr(ip netip.Addr) error { return h.setAddrAt(ipv6SrcOffset, ip) }
func (h *IPv6) SetDstAddr(ip netip.Addr) error { return h.setAddrAt(ipv6DstOffset, ip) }

func (h *IPv6) addrAt(off int) netip.Addr {
	var a [16]byte
	copy(a[:], h.buf.GetBytes(off, 16))
	return netip.AddrFrom16(a)
}

// setAddrAt stores a 16-byte address. IPv4 addresses are refused rather
// than silently mapped, so a family mix-up surfaces here.
func (h *IPv6) setAddrAt(off int, ip netip.Addr) error {
	if !ip.Is6() {
		return fmt.Errorf("%v is not an IPv6 address: %w", ip, core.ErrAddrFamily)
	}
	a := ip.As16()
	h.buf.SetBytes(off, a[:])
	return nil
}

func (h *IPv6) FromBytes(data []byte) error {
	if err := need(KindIPv6, data, IPv6Len); err != nil {
		return err
	}
	h.load(data, IPv6Len)
	return nil
}

func (h *IPv6) SizeBits() int  { return IPv6Len * 8 }
func (h *IPv6) SizeBytes() int { return IPv6Len }
func (h *IPv6) IsValid() bool  { return h.buf.Len() == IPv6Len && h.Version() == 6 }

// UpdateComputedFields sets the payload length to len(ctx.Payload).
func (h *IPv6) UpdateComputedFields(ctx ComputeContext) error {
	if err := checkLen16(KindIPv6, len(ctx.Payload)); err != nil {
		return err
	}
	h.SetPayloadLength(uint16(len(ctx.Payload)))
	return nil
}

func (h *IPv6) Attrs() []Attr {
	return []Attr{
		attr("version", h.Version()),
		attr("traffic_class", h.TrafficClass()),
		hexAttr("flow_label", uint64(h.FlowLabel()), 5),
		attr("payload_length", h.PayloadLength()),
		attr("next_header", h.NextHeader()),
		attr("hop_limit", h.HopLimit()),
		attr("src", h.SrcAddr()),
		attr("dst", h.DstAddr()),
	}
}
