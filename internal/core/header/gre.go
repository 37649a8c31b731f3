package header

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
	"firestige.xyz/pktforge/internal/core/checksum"
)

const (
	GREMinLen = 4
	GREMaxLen = 16
)

var (
	greC       = bitbuf.NewFlag(0)
	greR       = bitbuf.NewFlag(1)
	greK       = bitbuf.NewFlag(2)
	greS       = bitbuf.NewFlag(3)
	greRsvd0   = bitbuf.NewField[uint16](4, 9)
	greVersion = bitbuf.NewField[uint8](13, 3)
	greProto   = bitbuf.NewEnum[core.EtherType](16, 16, core.KnownEtherTypes...)
)

// GRE is a GRE header (RFC 2784) with the key and sequence number
// extensions (RFC 2890). Optional words follow the base header in the
// order checksum, key, sequence; the buffer is resized whenever one is
// added or removed.
type GRE struct {
	base
}

// greOptional is the decoded set of optional words.
type greOptional struct {
	c, k, s  bool
	csum     uint16
	key, seq uint32
}

// NewGRE returns a 4-byte GRE header with no optional fields.
func NewGRE() *GRE {
	return &GRE{base: newBase(GREMinLen)}
}

func (h *GRE) Kind() Kind { return KindGRE }

func (h *GRE) Version() uint8               { return greVersion.Get(&h.buf) }
func (h *GRE) SetVersion(v uint8)           { greVersion.Set(&h.buf, v) }
func (h *GRE) Protocol() core.EtherType     { return greProto.Get(&h.buf) }
func (h *GRE) SetProtocol(t core.EtherType) { greProto.Set(&h.buf, t) }
func (h *GRE) ChecksumPresent() bool        { return greC.Get(&h.buf) }

// Checksum returns the checksum word, or 0 when it is absent.
func (h *GRE) Checksum() uint16 { return h.optional().csum }

// SetChecksumPresent adds or removes the checksum word. A new checksum
// is zero until UpdateComputedFields runs.
func (h *GRE) SetChecksumPresent(on bool) {
	opt := h.optional()
	opt.c = on
	h.apply(opt)
}

// Key returns the key and whether it is present.
func (h *GRE) Key() (uint32, bool) {
	opt := h.optional()
	return opt.key, opt.k
}

func (h *GRE) SetKey(key uint32) {
	opt := h.optional()
	opt.k, opt.key = true, key
	h.apply(opt)
}

func (h *GRE) ClearKey() {
	opt := h.optional()
	opt.k, opt.key = false, 0
	h.apply(opt)
}

// Sequence returns the sequence number and whether it is present.
func (h *GRE) Sequence() (uint32, bool) {
	opt := h.optional()
	return opt.seq, opt.s
}

func (h *GRE) SetSequence(seq uint32) {
	opt := h.optional()
	opt.s, opt.seq = true, seq
	h.apply(opt)
}

func (h *GRE) ClearSequence() {
	opt := h.optional()
	opt.s, opt.seq = false, 0
	h.apply(opt)
}

func (h *GRE) optional() greOptional {
	opt := greOptional{
		c: greC.Get(&h.buf),
		k: greK.Get(&h.buf),
		s: greS.Get(&h.buf),
	}
	off := uint(GREMinLen * 8)
	if opt.c {
		opt.csum = uint16(h.buf.Get(off, 16))
		off += 32
	}
	if opt.k {
		opt.key = uint32(h.buf.Get(off, 32))
		off += 32
	}
	if opt.s {
		opt.seq = uint32(h.buf.Get(off, 32))
	}
	return opt
}

func (h *GRE) apply(opt greOptional) {
	h.buf.Resize(GREMinLen)
	greC.Set(&h.buf, opt.c)
	greK.Set(&h.buf, opt.k)
	greS.Set(&h.buf, opt.s)
	off := uint(GREMinLen * 8)
	if opt.c {
		h.buf.Set(off, 16, uint64(opt.csum))
		h.buf.Set(off+16, 16, 0) // reserved1
		off += 32
	}
	if opt.k {
		h.buf.Set(off, 32, uint64(opt.key))
		off += 32
	}
	if opt.s {
		h.buf.Set(off, 32, uint64(opt.seq))
		off += 32
	}
	h.buf.Resize(int(off / 8))
}

// greLen returns the header length announced by the first flags byte.
func greLen(flags byte) int {
	n := GREMinLen
	for _, mask := range []byte{0x80, 0x20, 0x10} {
		if flags&mask != 0 {
			n += 4
		}
	}
	return n
}

func (h *GRE) FromBytes(data []byte) error {
	if err := need(KindGRE, data, GREMinLen); err != nil {
		return err
	}
	n := greLen(data[0])
	if err := need(KindGRE, data, n); err != nil {
		return err
	}
	h.load(data, n)
	return nil
}

// SizeBytes returns the length implied by the C, K and S flags.
func (h *GRE) SizeBytes() int { return greLen(h.buf.GetBytes(0, 1)[0]) }
func (h *GRE) SizeBits() int  { return h.SizeBytes() * 8 }

// IsValid accepts version 0 without source routing and with the
// remaining Reserved0 bits clear.
func (h *GRE) IsValid() bool {
	return h.Version() == 0 &&
		!greR.Get(&h.buf) &&
		greRsvd0.Get(&h.buf) == 0 &&
		h.SizeBytes() == h.buf.Len()
}

func (h *GRE) sum(payload []byte) uint16 {
	b := h.buf.Bytes()
	var a checksum.Accumulator
	a.Write(b[:GREMinLen])
	a.Write(b[GREMinLen+2:])
	a.Write(payload)
	return a.Sum16()
}

// VerifyChecksum reports whether the checksum covers the header and
// payload correctly. A header without a checksum always verifies.
func (h *GRE) VerifyChecksum(payload []byte) bool {
	if !h.ChecksumPresent() {
		return true
	}
	return h.sum(payload) == h.Checksum()
}

// UpdateComputedFields fills in the checksum when it is present.
func (h *GRE) UpdateComputedFields(ctx ComputeContext) error {
	if !h.ChecksumPresent() {
		return nil
	}
	h.buf.Set(GREMinLen*8, 16, uint64(h.sum(ctx.Payload)))
	return nil
}

func (h *GRE) Attrs() []Attr {
	opt := h.optional()
	attrs := []Attr{
		attr("version", h.Version()),
		attr("protocol", h.Protocol()),
	}
	if opt.c {
		attrs = append(attrs, hexAttr("checksum", uint64(opt.csum), 4))
	}
	if opt.k {
		attrs = append(attrs, attr("key", opt.key))
	}
	if opt.s {
		attrs = append(attrs, attr("seq", opt.seq))
	}
	return attrs
}
