package header

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
	"firestige.xyz/pktforge/internal/core/checksum"
)

const (
	IPv4MinLen = 20
	IPv4MaxLen = 60

	ipv4DefaultTTL = 64
)

// IPv4 flag bits as stored in the 3-bit flags field.
const (
	IPv4FlagMF uint8 = 1 << iota
	IPv4FlagDF
	IPv4FlagEvil // reserved bit (RFC 3514)
)

var (
	ipv4Version  = bitbuf.NewField[uint8](0, 4)
	ipv4IHL      = bitbuf.NewField[uint8](4, 4)
	ipv4DSCP     = bitbuf.NewField[uint8](8, 6)
	ipv4ECN      = bitbuf.NewField[uint8](14, 2)
	ipv4TotalLen = bitbuf.NewField[uint16](16, 16)
	ipv4ID       = bitbuf.NewField[uint16](32, 16)
	ipv4Flags    = bitbuf.NewField[uint8](48, 3)
	// DF and MF are single-bit views into ipv4Flags.
	ipv4DF       = bitbuf.NewFlag(49)
	ipv4MF       = bitbuf.NewFlag(50)
	ipv4FragOff  = bitbuf.NewField[uint16](51, 13)
	ipv4TTL      = bitbuf.NewField[uint8](64, 8)
	ipv4Proto    = bitbuf.NewEnum[core.IPProto](72, 8, core.KnownIPProtos...)
	ipv4Checksum = bitbuf.NewField[uint16](80, 16)
	ipv4Src      = bitbuf.NewField[uint32](96, 32)
	ipv4Dst      = bitbuf.NewField[uint32](128, 32)
)

// IPv4 is an IPv4 header with optional options.
type IPv4 struct {
	base
}

// NewIPv4 returns a 20-byte header with version 4, IHL 5 and TTL 64.
func NewIPv4() *IPv4 {
	h := &IPv4{base: newBase(IPv4MinLen)}
	ipv4Version.Set(&h.buf, 4)
	ipv4IHL.Set(&h.buf, IPv4MinLen/4)
	h.SetTTL(ipv4DefaultTTL)
	return h
}

func (h *IPv4) Kind() Kind { return KindIPv4 }

func (h *IPv4) Version() uint8 { return ipv4Version.Get(&h.buf) }

// IHL returns the header length in 32-bit words.
func (h *IPv4) IHL() uint8 { return ipv4IHL.Get(&h.buf) }

// SetIHL overrides the declared header length. UpdateComputedFields
// resets it from the actual header bytes.
func (h *IPv4) SetIHL(words uint8) { ipv4IHL.Set(&h.buf, words) }

func (h *IPv4) DSCP() uint8             { return ipv4DSCP.Get(&h.buf) }
func (h *IPv4) SetDSCP(v uint8)         { ipv4DSCP.Set(&h.buf, v) }
func (h *IPv4) ECN() uint8              { return ipv4ECN.Get(&h.buf) }
func (h *IPv4) SetECN(v uint8)          { ipv4ECN.Set(&h.buf, v) }
func (h *IPv4) TotalLength() uint16     { return ipv4TotalLen.Get(&h.buf) }
func (h *IPv4) SetTotalLength(n uint16) { ipv4TotalLen.Set(&h.buf, n) }
func (h *IPv4) ID() uint16              { return ipv4ID.Get(&h.buf) }
func (h *IPv4) SetID(id uint16)         { ipv4ID.Set(&h.buf, id) }

// Flags returns the 3-bit flags field (IPv4FlagDF, IPv4FlagMF).
func (h *IPv4) Flags() uint8               { return ipv4Flags.Get(&h.buf) }
func (h *IPv4) SetFlags(f uint8)           { ipv4Flags.Set(&h.buf, f) }
func (h *IPv4) DontFragment() bool         { return ipv4DF.Get(&h.buf) }
func (h *IPv4) SetDontFragment(on bool)    { ipv4DF.Set(&h.buf, on) }
func (h *IPv4) MoreFragments() bool        { return ipv4MF.Get(&h.buf) }
func (h *IPv4) SetMoreFragments(on bool)   { ipv4MF.Set(&h.buf, on) }
func (h *IPv4) FragmentOffset() uint16     { return ipv4FragOff.Get(&h.buf) }
func (h *IPv4) SetFragmentOffset(o uint16) { ipv4FragOff.Set(&h.buf, o) }
func (h *IPv4) TTL() uint8                 { return ipv4TTL.Get(&h.buf) }
func (h *IPv4) SetTTL(ttl uint8)           { ipv4TTL.Set(&h.buf, ttl) }
func (h *IPv4) Protocol() core.IPProto     { return ipv4Proto.Get(&h.buf) }
func (h *IPv4) SetProtocol(p core.IPProto) { ipv4Proto.Set(&h.buf, p) }

// KnownProtocol returns the protocol and whether it is one this package models.
func (h *IPv4) KnownProtocol() (core.IPProto, bool) { return ipv4Proto.Known(&h.buf) }

func (h *IPv4) Checksum() uint16     { return ipv4Checksum.Get(&h.buf) }
func (h *IPv4) SetChecksum(c uint16) { ipv4Checksum.Set(&h.buf, c) }
func (h *IPv4) SrcAddr() netip.Addr  { return uint32ToAddr(ipv4Src.Get(&h.buf)) }
func (h *IPv4) DstAddr() netip.Addr  { return uint32ToAddr(ipv4Dst.Get(&h.buf)) }

func (h *IPv4) SetSrcAddr(ip netip.Addr) error {
	v, err := addrToUint32(ip)
	if err != nil {
		return err
	}
	ipv4Src.Set(&h.buf, v)
	return nil
}

func (h *IPv4) SetDstAddr(ip netip.Addr) error {
	v, err := addrToUint32(ip)
	if err != nil {
		return err
	}
	ipv4Dst.Set(&h.buf, v)
	return nil
}

// Options returns a copy of the option bytes following the fixed header.
func (h *IPv4) Options() []byte {
	return h.buf.GetBytes(IPv4MinLen, h.buf.Len()-IPv4MinLen)
}

// SetOptions replaces the options, zero-padding them to a multiple of
// 4 bytes, and sets IHL to match.
func (h *IPv4) SetOptions(opts []byte) error {
	padded := (len(opts) + 3) &^ 3
	if IPv4MinLen+padded > IPv4MaxLen {
		return fmt.Errorf("ipv4 options %d bytes exceed %d: %w", len(opts), IPv4MaxLen-IPv4MinLen, core.ErrInvalidField)
	}
	h.buf.Resize(IPv4MinLen)
	h.buf.Resize(IPv4MinLen + padded)
	h.buf.SetBytes(IPv4MinLen, opts)
	ipv4IHL.Set(&h.buf, uint8((IPv4MinLen+padded)/4))
	return nil
}

// FromBytes reads IHL*4 bytes, or 20 when IHL is below 5 so that such a
// header can still be inspected and reported invalid.
func (h *IPv4) FromBytes(data []byte) error {
	if err := need(KindIPv4, data, IPv4MinLen); err != nil {
		return err
	}
	n := max(IPv4MinLen, int(data[0]&0x0F)*4)
	if err := need(KindIPv4, data, n); err != nil {
		return err
	}
	h.load(data, n)
	return nil
}

// SizeBytes returns the declared length, IHL*4.
func (h *IPv4) SizeBytes() int { return int(h.IHL()) * 4 }
func (h *IPv4) SizeBits() int  { return h.SizeBytes() * 8 }

func (h *IPv4) IsValid() bool {
	n := h.SizeBytes()
	return h.Version() == 4 &&
		n >= IPv4MinLen &&
		n == h.buf.Len() &&
		int(h.TotalLength()) >= n
}

// UpdateChecksum recomputes the header checksum from the current bytes.
func (h *IPv4) UpdateChecksum() error {
	sum, err := checksum.IPv4Header(h.buf.Bytes())
	if err != nil {
		return err
	}
	h.SetChecksum(sum)
	return nil
}

// VerifyChecksum reports whether the stored checksum matches the header.
func (h *IPv4) VerifyChecksum() bool { return checksum.VerifyIPv4(h.buf.Bytes()) }

// UpdateComputedFields sets IHL from the header bytes, the total length
// from the header plus ctx.Payload and then the checksum.
func (h *IPv4) UpdateComputedFields(ctx ComputeContext) error {
	total := h.buf.Len() + len(ctx.Payload)
	if err := checkLen16(KindIPv4, total); err != nil {
		return err
	}
	ipv4IHL.Set(&h.buf, uint8(h.buf.Len()/4))
	h.SetTotalLength(uint16(total))
	return h.UpdateChecksum()
}

func (h *IPv4) Attrs() []Attr {
	attrs := []Attr{
		attr("version", h.Version()),
		attr("ihl", h.IHL()),
		attr("dscp", h.DSCP()),
		attr("ecn", h.ECN()),
		attr("total_length", h.TotalLength()),
		attr("id", h.ID()),
		attr("df", h.DontFragment()),
		attr("mf", h.MoreFragments()),
		attr("fragment_offset", h.FragmentOffset()),
		attr("ttl", h.TTL()),
		attr("protocol", h.Protocol()),
		hexAttr("checksum", uint64(h.Checksum()), 4),
		attr("src", h.SrcAddr()),
		attr("dst", h.DstAddr()),
	}
	if opts := h.Options(); len(opts) > 0 {
		attrs = append(attrs, attr("options", fmt.Sprintf("%x", opts)))
	}
	return attrs
}

func addrToUint32(ip netip.Addr) (uint32, error) {
	if !ip.Is4() {
		return 0, fmt.Errorf("%v is not an IPv4 address: %w", ip, core.ErrAddrFamily)
	}
	a := ip.As4()
	return binary.BigEndian.Uint32(a[:]), nil
}

func uint32ToAddr(v uint32) netip.Addr {
	var a [4]byte
	binary.BigEndian.PutUint32(a[:], v)
	return netip.AddrFrom4(a)
}
