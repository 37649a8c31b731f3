package decoder

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

// ipKindFromVersion picks IPv4 or IPv6 from the first nibble of data.
func ipKindFromVersion(data []byte) header.Kind {
	if len(data) < 1 {
		return 0
	}
	switch data[0] >> 4 {
	case 4:
		return header.KindIPv4
	case 6:
		return header.KindIPv6
	default:
		return 0
	}
}

// kindForIPProto maps an IPv4 protocol / IPv6 next header to the header
// that follows it. Encapsulated IP is only followed when enabled.
func (w *walker) kindForIPProto(p core.IPProto) header.Kind {
	switch p {
	case core.IPProtoTCP:
		return header.KindTCP
	case core.IPProtoUDP:
		return header.KindUDP
	case core.IPProtoICMP:
		return header.KindICMPv4
	case core.IPProtoICMPv6:
		return header.KindICMPv6
	case core.IPProtoGRE:
		if w.cfg.Tunnel.GRE {
			return header.KindGRE
		}
	case core.IPProtoIPIP:
		if w.cfg.Tunnel.IPIP {
			return header.KindIPv4
		}
	case core.IPProtoIPv6:
		if w.cfg.Tunnel.IPIP {
			return header.KindIPv6
		}
	}
	return 0
}

// bound shrinks the datagram end to what the length fields of h declare,
// dropping Ethernet padding. Lengths that exceed the capture are ignored.
func (w *walker) bound(h header.Header) {
	var end int
	switch h := h.(type) {
	case *header.IPv4:
		end = w.off - len(h.Bytes()) + int(h.TotalLength())
	case *header.IPv6:
		end = w.off + int(h.PayloadLength())
	case *header.UDP:
		end = w.off - header.UDPLen + int(h.Length())
	default:
		return
	}
	if end >= w.off && end <= w.end {
		w.end = end
	}
}

// summarizeIP records the outer IP header; a second IP header means the
// frame is tunneled and fills the inner addresses.
func (w *walker) summarizeIP(h header.Header) {
	var (
		version uint8
		proto   core.IPProto
		ttl     uint8
		total   uint32
	)
	switch h := h.(type) {
	case *header.IPv4:
		version, proto, ttl, total = 4, h.Protocol(), h.TTL(), uint32(h.TotalLength())
	case *header.IPv6:
		version, proto, ttl, total = 6, h.NextHeader(), h.HopLimit(), header.IPv6Len+uint32(h.PayloadLength())
	default:
		return
	}
	a := h.(header.Addresser)
	w.ip = a

	ip := &w.frame.IP
	if !w.seenIP {
		w.seenIP = true
		ip.Version = version
		ip.SrcIP, ip.DstIP = a.SrcAddr(), a.DstAddr()
		ip.Protocol = proto
		ip.TTL = ttl
		ip.TotalLen = total
		return
	}
	w.frame.Tunneled = true
	ip.InnerSrcIP, ip.InnerDstIP = a.SrcAddr(), a.DstAddr()
}
