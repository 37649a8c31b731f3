package header

import "firestige.xyz/pktforge/internal/core/bitbuf"

// VXLANLen is the size of a VXLAN header (RFC 7348).
const VXLANLen = 8

var (
	vxlanI   = bitbuf.NewFlag(4)
	vxlanVNI = bitbuf.NewField[uint32](32, 24)
)

// VXLAN is a VXLAN header, carried over UDP port 4789 in front of an
// inner Ethernet frame.
type VXLAN struct {
	base
}

// NewVXLAN returns a header with the I flag set and VNI 0.
func NewVXLAN() *VXLAN {
	h := &VXLAN{base: newBase(VXLANLen)}
	vxlanI.Set(&h.buf, true)
	return h
}

func (h *VXLAN) Kind() Kind { return KindVXLAN }

// ValidVNI reports the I flag.
func (h *VXLAN) ValidVNI() bool      { return vxlanI.Get(&h.buf) }
func (h *VXLAN) SetValidVNI(on bool) { vxlanI.Set(&h.buf, on) }

// VNI returns the 24-bit network identifier.
func (h *VXLAN) VNI() uint32       { return vxlanVNI.Get(&h.buf) }
func (h *VXLAN) SetVNI(vni uint32) { vxlanVNI.Set(&h.buf, vni) }

func (h *VXLAN) FromBytes(data []byte) error {
	if err := need(KindVXLAN, data, VXLANLen); err != nil {
		return err
	}
	h.load(data, VXLANLen)
	return nil
}

func (h *VXLAN) SizeBits() int  { return VXLANLen * 8 }
func (h *VXLAN) SizeBytes() int { return VXLANLen }
func (h *VXLAN) IsValid() bool  { return h.buf.Len() == VXLANLen && h.ValidVNI() }

func (h *VXLAN) UpdateComputedFields(ComputeContext) error { return nil }

func (h *VXLAN) Attrs() []Attr {
	return []Attr{
		attr("i", h.ValidVNI()),
		attr("vni", h.VNI()),
	}
}
