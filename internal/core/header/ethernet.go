package header

import (
	"net"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
)

// EthernetLen is the size of an Ethernet II header.
const EthernetLen = 14

var (
	ethDst  = bitbuf.NewField[uint64](0, 48)
	ethSrc  = bitbuf.NewField[uint64](48, 48)
	ethType = bitbuf.NewEnum[core.EtherType](96, 16, core.KnownEtherTypes...)
)

// Ethernet is an Ethernet II header.
type Ethernet struct {
	base
}

// NewEthernet returns a zeroed Ethernet header.
func NewEthernet() *Ethernet {
	return &Ethernet{base: newBase(EthernetLen)}
}

func (h *Ethernet) Kind() Kind { return KindEthernet }

func (h *Ethernet) DstMAC() net.HardwareAddr { return uintToMAC(ethDst.Get(&h.buf)) }
func (h *Ethernet) SetDstMAC(mac [6]byte)    { ethDst.Set(&h.buf, macToUint(mac)) }
func (h *Ethernet) SrcMAC() net.HardwareAddr { return uintToMAC(ethSrc.Get(&h.buf)) }
func (h *Ethernet) SetSrcMAC(mac [6]byte)    { ethSrc.Set(&h.buf, macToUint(mac)) }

func (h *Ethernet) EtherType() core.EtherType     { return ethType.Get(&h.buf) }
func (h *Ethernet) SetEtherType(t core.EtherType) { ethType.Set(&h.buf, t) }

// KnownEtherType returns the EtherType and whether it is one this package models.
func (h *Ethernet) KnownEtherType() (core.EtherType, bool) { return ethType.Known(&h.buf) }

func (h *Ethernet) FromBytes(data []byte) error {
	if err := need(KindEthernet, data, EthernetLen); err != nil {
		return err
	}
	h.load(data, EthernetLen)
	return nil
}

func (h *Ethernet) SizeBits() int  { return EthernetLen * 8 }
func (h *Ethernet) SizeBytes() int { return EthernetLen }
func (h *Ethernet) IsValid() bool  { return h.buf.Len() == EthernetLen }

// UpdateComputedFields is a no-op: Ethernet II has no derived fields.
func (h *Ethernet) UpdateComputedFields(ComputeContext) error { return nil }

func (h *Ethernet) Attrs() []Attr {
	return []Attr{
		attr("dst", h.DstMAC()),
		attr("src", h.SrcMAC()),
		attr("ethertype", h.EtherType()),
	}
}

// MAC converts a parsed hardware address into the fixed form used by the
// setters. It reports false unless hw is exactly 6 bytes long.
func MAC(hw net.HardwareAddr) ([6]byte, bool) {
	var mac [6]byte
	if len(hw) != 6 {
		return mac, false
	}
	copy(mac[:], hw)
	return mac, true
}

func macToUint(mac [6]byte) uint64 {
	var v uint64
	for _, b := range mac {
		v = v<<8 | uint64(b)
	}
	return v
}

func uintToMAC(v uint64) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	for i := 5; i >= 0; i-- {
		mac[i] = byte(v)
		v >>= 8
	}
	return mac
}
