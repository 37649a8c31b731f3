package decoder

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

// kindForEtherType maps an EtherType to the header that follows it.
func kindForEtherType(t core.EtherType) header.Kind {
	switch t {
	case core.EtherTypeIPv4:
		return header.KindIPv4
	case core.EtherTypeIPv6:
		return header.KindIPv6
	case core.EtherTypeVLAN, core.EtherTypeQinQ:
		return header.KindVLAN
	case core.EtherTypeMPLS, core.EtherTypeMPLSMulticast:
		return header.KindMPLS
	case core.EtherTypeARP:
		return header.KindARP
	default:
		// Non-IP payload (LLDP, etc.) stays undecoded
		return 0
	}
}

// nextAfterMPLS continues the label stack or, at the bottom, guesses the
// payload from its version nibble as MPLS carries no next-protocol field.
func (w *walker) nextAfterMPLS(h *header.MPLS) header.Kind {
	if !h.BottomOfStack() {
		return header.KindMPLS
	}
	return ipKindFromVersion(w.data[w.off:w.end])
}

// summarizeLink records the outermost Ethernet header, its VLAN tags and
// MPLS labels. Headers inside a tunnel do not overwrite it.
func (w *walker) summarizeLink(h header.Header) {
	eth := &w.frame.Ethernet
	switch h := h.(type) {
	case *header.Ethernet:
		if w.seenLink {
			return
		}
		w.seenLink = true
		copy(eth.DstMAC[:], h.DstMAC())
		copy(eth.SrcMAC[:], h.SrcMAC())
		eth.EtherType = h.EtherType()
	case *header.VLAN:
		if w.seenIP {
			return
		}
		eth.VLANs = append(eth.VLANs, h.ID())
		eth.EtherType = h.EtherType()
	case *header.MPLS:
		if w.seenIP {
			return
		}
		eth.MPLS = append(eth.MPLS, h.Label())
	}
}
