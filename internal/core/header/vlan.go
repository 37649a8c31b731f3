package header

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
)

// VLANLen is the size of an 802.1Q tag as it follows the outer EtherType.
const VLANLen = 4

var (
	vlanPCP  = bitbuf.NewField[uint8](0, 3)
	vlanDEI  = bitbuf.NewFlag(3)
	vlanVID  = bitbuf.NewField[uint16](4, 12)
	vlanType = bitbuf.NewEnum[core.EtherType](16, 16, core.KnownEtherTypes...)
)

// VLAN is an 802.1Q / 802.1ad tag: the TCI followed by the inner EtherType.
type VLAN struct {
	base
}

// NewVLAN returns a zeroed VLAN tag.
func NewVLAN() *VLAN {
	return &VLAN{base: newBase(VLANLen)}
}

func (h *VLAN) Kind() Kind { return KindVLAN }

// Priority returns the 3-bit priority code point.
func (h *VLAN) Priority() uint8     { return vlanPCP.Get(&h.buf) }
func (h *VLAN) SetPriority(p uint8) { vlanPCP.Set(&h.buf, p) }
func (h *VLAN) DropEligible() bool  { return vlanDEI.Get(&h.buf) }
func (h *VLAN) SetDropEligible(on bool) {
	vlanDEI.Set(&h.buf, on)
}

// ID returns the 12-bit VLAN identifier.
func (h *VLAN) ID() uint16                    { return vlanVID.Get(&h.buf) }
func (h *VLAN) SetID(id uint16)               { vlanVID.Set(&h.buf, id) }
func (h *VLAN) EtherType() core.EtherType     { return vlanType.Get(&h.buf) }
func (h *VLAN) SetEtherType(t core.EtherType) { vlanType.Set(&h.buf, t) }

func (h *VLAN) FromBytes(data []byte) error {
	if err := need(KindVLAN, data, VLANLen); err != nil {
		return err
	}
	h.load(data, VLANLen)
	return nil
}

func (h *VLAN) SizeBits() int  { return VLANLen * 8 }
func (h *VLAN) SizeBytes() int { return VLANLen }

// IsValid rejects the reserved VID 0xFFF.
func (h *VLAN) IsValid() bool { return h.buf.Len() == VLANLen && h.ID() != 0xFFF }

func (h *VLAN) UpdateComputedFields(ComputeContext) error { return nil }

func (h *VLAN) Attrs() []Attr {
	return []Attr{
		attr("pcp", h.Priority()),
		attr("dei", h.DropEligible()),
		attr("vid", h.ID()),
		attr("ethertype", h.EtherType()),
	}
}
