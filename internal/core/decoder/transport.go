package decoder

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

// summarizeTransport records the innermost TCP, UDP or ICMP header.
func (w *walker) summarizeTransport(h header.Header) {
	var tr core.TransportHeader
	switch h := h.(type) {
	case *header.TCP:
		tr = core.TransportHeader{
			SrcPort:  h.SrcPort(),
			DstPort:  h.DstPort(),
			Protocol: core.IPProtoTCP,
			TCPFlags: h.Flags(),
			SeqNum:   h.Seq(),
			AckNum:   h.Ack(),
		}
	case *header.UDP:
		tr = core.TransportHeader{
			SrcPort:  h.SrcPort(),
			DstPort:  h.DstPort(),
			Protocol: core.IPProtoUDP,
		}
	case *header.ICMP:
		tr = core.TransportHeader{
			Protocol: core.IPProtoICMP,
			ICMPType: h.Type(),
			ICMPCode: h.Code(),
		}
		if h.Kind() == header.KindICMPv6 {
			tr.Protocol = core.IPProtoICMPv6
		}
	default:
		return
	}
	w.frame.Transport = tr
}

func status(ok bool) ChecksumStatus {
	if ok {
		return ChecksumValid
	}
	return ChecksumInvalid
}

// verify checks the checksum of h against the bytes that follow it.
// Transport checksums are skipped when the datagram is incomplete
// (snapped capture or IP fragment) or no enclosing IP header exists.
func (w *walker) verify(h header.Header) ChecksumStatus {
	if !w.cfg.VerifyChecksums {
		return ChecksumNotChecked
	}
	if ip, ok := h.(*header.IPv4); ok {
		return status(ip.VerifyChecksum())
	}
	if w.partial {
		return ChecksumNotChecked
	}

	payload := w.data[w.off:w.end]
	if gre, ok := h.(*header.GRE); ok {
		if !gre.ChecksumPresent() {
			return ChecksumAbsent
		}
		return status(gre.VerifyChecksum(payload))
	}

	ctx := header.ComputeContext{Payload: payload}
	if w.ip != nil {
		ctx.Src, ctx.Dst = w.ip.SrcAddr(), w.ip.DstAddr()
	}
	switch h := h.(type) {
	case *header.ICMP:
		if h.Kind() == header.KindICMPv6 && !ctx.HasAddrs() {
			return ChecksumNotChecked
		}
		return status(h.VerifyChecksum(ctx))
	case *header.TCP:
		if !ctx.HasAddrs() {
			return ChecksumNotChecked
		}
		return status(h.VerifyChecksum(ctx))
	case *header.UDP:
		if !ctx.HasAddrs() {
			return ChecksumNotChecked
		}
		if h.Checksum() == 0 && ctx.Src.Is4() {
			return ChecksumAbsent
		}
		return status(h.VerifyChecksum(ctx))
	}
	return ChecksumNotChecked
}
