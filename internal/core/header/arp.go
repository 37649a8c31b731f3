package header

import (
	"net"
	"net/netip"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
)

// ARPLen is the size of an ARP packet for IPv4 over Ethernet.
const ARPLen = 28

const arpHTypeEthernet = 1

var (
	arpHType = bitbuf.NewField[uint16](0, 16)
	arpPType = bitbuf.NewField[core.EtherType](16, 16)
	arpHLen  = bitbuf.NewField[uint8](32, 8)
	arpPLen  = bitbuf.NewField[uint8](40, 8)
	arpOp    = bitbuf.NewEnum[core.ARPOp](48, 16, core.ARPRequest, core.ARPReply)
	arpSHA   = bitbuf.NewField[uint64](64, 48)
	arpSPA   = bitbuf.NewField[uint32](112, 32)
	arpTHA   = bitbuf.NewField[uint64](144, 48)
	arpTPA   = bitbuf.NewField[uint32](192, 32)
)

// ARP is an ARP packet (RFC 826) mapping IPv4 onto Ethernet addresses.
type ARP struct {
	base
}

// NewARP returns an Ethernet/IPv4 ARP request with zero addresses.
func NewARP() *ARP {
	h := &ARP{base: newBase(ARPLen)}
	arpHType.Set(&h.buf, arpHTypeEthernet)
	arpPType.Set(&h.buf, core.EtherTypeIPv4)
	arpHLen.Set(&h.buf, 6)
	arpPLen.Set(&h.buf, 4)
	h.SetOp(core.ARPRequest)
	return h
}

func (h *ARP) Kind() Kind { return KindARP }

func (h *ARP) HardwareType() uint16         { return arpHType.Get(&h.buf) }
func (h *ARP) ProtocolType() core.EtherType { return arpPType.Get(&h.buf) }
func (h *ARP) Op() core.ARPOp               { return arpOp.Get(&h.buf) }
func (h *ARP) SetOp(op core.ARPOp)          { arpOp.Set(&h.buf, op) }
func (h *ARP) SenderMAC() net.HardwareAddr  { return uintToMAC(arpSHA.Get(&h.buf)) }
func (h *ARP) SetSenderMAC(mac [6]byte)     { arpSHA.Set(&h.buf, macToUint(mac)) }
func (h *ARP) TargetMAC() net.HardwareAddr  { return uintToMAC(arpTHA.Get(&h.buf)) }
func (h *ARP) SetTargetMAC(mac [6]byte)     { arpTHA.Set(&h.buf, macToUint(mac)) }
func (h *ARP) SenderIP() netip.Addr         { return uint32ToAddr(arpSPA.Get(&h.buf)) }
func (h *ARP) TargetIP() netip.Addr         { return uint32ToAddr(arpTPA.Get(&h.buf)) }

// SetSenderIP stores an IPv4 address. Other families are rejected.
func (h *ARP) SetSenderIP(ip netip.Addr) error {
	v, err := addrToUint32(ip)
	if err != nil {
		return err
	}
	arpSPA.Set(&h.buf, v)
	return nil
}

// SetTargetIP stores an IPv4 address. Other families are rejected.
func (h *ARP) SetTargetIP(ip netip.Addr) error {
	v, err := addrToUint32(ip)
	if err != nil {
		return err
	}
	arpTPA.Set(&h.buf, v)
	return nil
}

func (h *ARP) FromBytes(data []byte) error {
	if err := need(KindARP, data, ARPLen); err != nil {
		return err
	}
	h.load(data, ARPLen)
	return nil
}

func (h *ARP) SizeBits() int  { return ARPLen * 8 }
func (h *ARP) SizeBytes() int { return ARPLen }

// IsValid accepts only the Ethernet/IPv4 address sizes this layout models.
func (h *ARP) IsValid() bool {
	return h.buf.Len() == ARPLen &&
		arpHLen.Get(&h.buf) == 6 &&
		arpPLen.Get(&h.buf) == 4
}

func (h *ARP) UpdateComputedFields(ComputeContext) error { return nil }

func (h *ARP) Attrs() []Attr {
	return []Attr{
		attr("htype", h.HardwareType()),
		attr("ptype", h.ProtocolType()),
		attr("op", h.Op()),
		attr("sha", h.SenderMAC()),
		attr("spa", h.SenderIP()),
		attr("tha", h.TargetMAC()),
		attr("tpa", h.TargetIP()),
	}
}
