package header

import "firestige.xyz/pktforge/internal/core/bitbuf"

// MPLSLen is the size of one MPLS label stack entry.
const MPLSLen = 4

// Reserved MPLS label values (RFC 3032).
const (
	MPLSLabelIPv4ExplicitNull uint32 = 0
	MPLSLabelRouterAlert      uint32 = 1
	MPLSLabelIPv6ExplicitNull uint32 = 2
	MPLSLabelImplicitNull     uint32 = 3
)

var (
	mplsLabel = bitbuf.NewField[uint32](0, 20)
	mplsTC    = bitbuf.NewField[uint8](20, 3)
	mplsBoS   = bitbuf.NewFlag(23)
	mplsTTL   = bitbuf.NewField[uint8](24, 8)
)

// MPLS is one label stack entry.
type MPLS struct {
	base
}

// NewMPLS returns a bottom-of-stack entry with TTL 64.
func NewMPLS() *MPLS {
	h := &MPLS{base: newBase(MPLSLen)}
	h.SetBottomOfStack(true)
	h.SetTTL(64)
	return h
}

func (h *MPLS) Kind() Kind { return KindMPLS }

// Label returns the 20-bit label. SetLabel keeps only the low 20 bits.
func (h *MPLS) Label() uint32     { return mplsLabel.Get(&h.buf) }
func (h *MPLS) SetLabel(l uint32) { mplsLabel.Set(&h.buf, l) }

// TrafficClass returns the 3-bit traffic class. SetTrafficClass keeps only the low 3 bits.
func (h *MPLS) TrafficClass() uint8      { return mplsTC.Get(&h.buf) }
func (h *MPLS) SetTrafficClass(tc uint8) { mplsTC.Set(&h.buf, tc) }
func (h *MPLS) BottomOfStack() bool      { return mplsBoS.Get(&h.buf) }
func (h *MPLS) SetBottomOfStack(on bool) { mplsBoS.Set(&h.buf, on) }
func (h *MPLS) TTL() uint8               { return mplsTTL.Get(&h.buf) }
func (h *MPLS) SetTTL(ttl uint8)         { mplsTTL.Set(&h.buf, ttl) }

func (h *MPLS) FromBytes(data []byte) error {
	if err := need(KindMPLS, data, MPLSLen); err != nil {
		return err
	}
	h.load(data, MPLSLen)
	return nil
}

func (h *MPLS) SizeBits() int  { return MPLSLen * 8 }
func (h *MPLS) SizeBytes() int { return MPLSLen }
func (h *MPLS) IsValid() bool  { return h.buf.Len() == MPLSLen }

func (h *MPLS) UpdateComputedFields(ComputeContext) error { return nil }

func (h *MPLS) Attrs() []Attr {
	return []Attr{
		attr("label", h.Label()),
		attr("tc", h.TrafficClass()),
		attr("bos", h.BottomOfStack()),
		attr("ttl", h.TTL()),
	}
}
