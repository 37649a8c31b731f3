package header

import (
	"firestige.xyz/pktforge/internal/core/bitbuf"
	"firestige.xyz/pktforge/internal/core/checksum"
)

// ICMPLen is the size of an ICMP or ICMPv6 header including the
// identifier and sequence words (the "rest of header").
const ICMPLen = 8

// ICMPv4 message types.
const (
	ICMPv4EchoReply       uint8 = 0
	ICMPv4DestUnreachable uint8 = 3
	ICMPv4Redirect        uint8 = 5
	ICMPv4EchoRequest     uint8 = 8
	ICMPv4TimeExceeded    uint8 = 11
)

// ICMPv6 message types.
const (
	ICMPv6DestUnreachable       uint8 = 1
	ICMPv6PacketTooBig          uint8 = 2
	ICMPv6TimeExceeded          uint8 = 3
	ICMPv6EchoRequest           uint8 = 128
	ICMPv6EchoReply             uint8 = 129
	ICMPv6RouterSolicitation    uint8 = 133
	ICMPv6RouterAdvertisement   uint8 = 134
	ICMPv6NeighborSolicitation  uint8 = 135
	ICMPv6NeighborAdvertisement uint8 = 136
)

var (
	icmpType     = bitbuf.NewField[uint8](0, 8)
	icmpCode     = bitbuf.NewField[uint8](8, 8)
	icmpChecksum = bitbuf.NewField[uint16](16, 16)
	icmpID       = bitbuf.NewField[uint16](32, 16)
	icmpSeq      = bitbuf.NewField[uint16](48, 16)
)

// ICMP is an ICMPv4 or ICMPv6 header. Both share the layout; they differ
// in whether the checksum covers a pseudo-header.
type ICMP struct {
	base
	v6 bool
}

// NewICMPv4 returns an ICMPv4 echo request header.
func NewICMPv4() *ICMP {
	h := &ICMP{base: newBase(ICMPLen)}
	h.SetType(ICMPv4EchoRequest)
	return h
}

// NewICMPv6 returns an ICMPv6 echo request header.
func NewICMPv6() *ICMP {
	h := &ICMP{base: newBase(ICMPLen), v6: true}
	h.SetType(ICMPv6EchoRequest)
	return h
}

func (h *ICMP) Kind() Kind {
	if h.v6 {
		return KindICMPv6
	}
	return KindICMPv4
}

func (h *ICMP) Type() uint8          { return icmpType.Get(&h.buf) }
func (h *ICMP) SetType(t uint8)      { icmpType.Set(&h.buf, t) }
func (h *ICMP) Code() uint8          { return icmpCode.Get(&h.buf) }
func (h *ICMP) SetCode(c uint8)      { icmpCode.Set(&h.buf, c) }
func (h *ICMP) Checksum() uint16     { return icmpChecksum.Get(&h.buf) }
func (h *ICMP) SetChecksum(c uint16) { icmpChecksum.Set(&h.buf, c) }

// ID and Seq are meaningful for echo messages only.
func (h *ICMP) ID() uint16      { return icmpID.Get(&h.buf) }
func (h *ICMP) SetID(id uint16) { icmpID.Set(&h.buf, id) }
func (h *ICMP) Seq() uint16     { return icmpSeq.Get(&h.buf) }
func (h *ICMP) SetSeq(n uint16) { icmpSeq.Set(&h.buf, n) }

func (h *ICMP) FromBytes(data []byte) error {
	if err := need(h.Kind(), data, ICMPLen); err != nil {
		return err
	}
	h.load(data, ICMPLen)
	return nil
}

func (h *ICMP) SizeBits() int  { return ICMPLen * 8 }
func (h *ICMP) SizeBytes() int { return ICMPLen }
func (h *ICMP) IsValid() bool  { return h.buf.Len() == ICMPLen }

// UpdateChecksum recomputes the checksum. ICMPv6 needs ctx addresses.
func (h *ICMP) UpdateChecksum(ctx ComputeContext) error {
	var (
		sum uint16
		err error
	)
	if h.v6 {
		sum, err = checksum.ICMPv6(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
	} else {
		sum, err = checksum.ICMP(h.buf.Bytes(), ctx.Payload)
	}
	if err != nil {
		return err
	}
	h.SetChecksum(sum)
	return nil
}

// VerifyChecksum reports whether the stored checksum is correct for ctx.
func (h *ICMP) VerifyChecksum(ctx ComputeContext) bool {
	if h.v6 {
		return checksum.VerifyICMPv6(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
	}
	return checksum.VerifyICMP(h.buf.Bytes(), ctx.Payload)
}

// UpdateComputedFields refreshes the checksum. An ICMPv6 header without
// addresses in ctx is left untouched.
func (h *ICMP) UpdateComputedFields(ctx ComputeContext) error {
	if h.v6 && !ctx.HasAddrs() {
		return nil
	}
	return h.UpdateChecksum(ctx)
}

func (h *ICMP) Attrs() []Attr {
	return []Attr{
		attr("type", h.Type()),
		attr("code", h.Code()),
		hexAttr("checksum", uint64(h.Checksum()), 4),
		attr("id", h.ID()),
		attr("seq", h.Seq()),
	}
}
