package decoder

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

// nextAfterUDP follows VXLAN on its configured destination port.
func (w *walker) nextAfterUDP(h *header.UDP) header.Kind {
	if w.cfg.Tunnel.VXLAN && h.DstPort() == w.cfg.Tunnel.VXLANPort {
		return header.KindVXLAN
	}
	return 0
}

// nextAfterVXLAN returns the inner Ethernet frame when the VNI flag is set.
func nextAfterVXLAN(h *header.VXLAN) header.Kind {
	if !h.IsValid() {
		return 0
	}
	return header.KindEthernet
}

// nextAfterGRE follows IP and transparent Ethernet bridging payloads.
func nextAfterGRE(h *header.GRE) header.Kind {
	if !h.IsValid() {
		return 0
	}
	switch h.Protocol() {
	case core.EtherTypeIPv4:
		return header.KindIPv4
	case core.EtherTypeIPv6:
		return header.KindIPv6
	case core.EtherTypeTransparentEB:
		return header.KindEthernet
	default:
		return 0
	}
}

func (w *walker) summarizeTunnel(h header.Header) {
	switch h.(type) {
	case *header.VXLAN, *header.GRE:
		w.frame.Tunneled = true
	}
}
