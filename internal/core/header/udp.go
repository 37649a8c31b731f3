package header

import (
	"firestige.xyz/pktforge/internal/core/bitbuf"
	"firestige.xyz/pktforge/internal/core/checksum"
)

// UDPLen is the size of a UDP header.
const UDPLen = 8

// VXLANPort is the IANA-assigned VXLAN destination port.
const VXLANPort = 4789

var (
	udpSrcPort  = bitbuf.NewField[uint16](0, 16)
	udpDstPort  = bitbuf.NewField[uint16](16, 16)
	udpLength   = bitbuf.NewField[uint16](32, 16)
	udpChecksum = bitbuf.NewField[uint16](48, 16)
)

// UDP is a UDP header.
type UDP struct {
	base
}

// NewUDP returns a zeroed UDP header.
func NewUDP() *UDP {
	return &UDP{base: newBase(UDPLen)}
}

func (h *UDP) Kind() Kind { return KindUDP }

func (h *UDP) SrcPort() uint16     { return udpSrcPort.Get(&h.buf) }
func (h *UDP) SetSrcPort(p uint16) { udpSrcPort.Set(&h.buf, p) }
func (h *UDP) DstPort() uint16     { return udpDstPort.Get(&h.buf) }
func (h *UDP) SetDstPort(p uint16) { udpDstPort.Set(&h.buf, p) }

// Length is header plus payload length in bytes.
func (h *UDP) Length() uint16       { return udpLength.Get(&h.buf) }
func (h *UDP) SetLength(n uint16)   { udpLength.Set(&h.buf, n) }
func (h *UDP) Checksum() uint16     { return udpChecksum.Get(&h.buf) }
func (h *UDP) SetChecksum(c uint16) { udpChecksum.Set(&h.buf, c) }

func (h *UDP) FromBytes(data []byte) error {
	if err := need(KindUDP, data, UDPLen); err != nil {
		return err
	}
	h.load(data, UDPLen)
	return nil
}

func (h *UDP) SizeBits() int  { return UDPLen * 8 }
func (h *UDP) SizeBytes() int { return UDPLen }

// IsValid accepts a zero length, meaning not yet computed.
func (h *UDP) IsValid() bool {
	n := h.Length()
	return h.buf.Len() == UDPLen && (n == 0 || n >= UDPLen)
}

// UpdateChecksum computes the checksum over the pseudo-header for src/dst.
// A zero result is stored as 0xFFFF.
func (h *UDP) UpdateChecksum(ctx ComputeContext) error {
	sum, err := checksum.UDP(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
	if err != nil {
		return err
	}
	h.SetChecksum(sum)
	return nil
}

// VerifyChecksum reports whether the stored checksum is correct for ctx.
func (h *UDP) VerifyChecksum(ctx ComputeContext) bool {
	return checksum.VerifyUDP(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
}

// UpdateComputedFields sets the length to 8+len(ctx.Payload) and, when
// ctx carries addresses, the checksum.
func (h *UDP) UpdateComputedFields(ctx ComputeContext) error {
	n := UDPLen + len(ctx.Payload)
	if err := checkLen16(KindUDP, n); err != nil {
		return err
	}
	h.SetLength(uint16(n))
	if !ctx.HasAddrs() {
		return nil
	}
	return h.UpdateChecksum(ctx)
}

func (h *UDP) Attrs() []Attr {
	return []Attr{
		attr("src_port", h.SrcPort()),
		attr("dst_port", h.DstPort()),
		attr("length", h.Length()),
		hexAttr("checksum", uint64(h.Checksum()), 4),
	}
}
