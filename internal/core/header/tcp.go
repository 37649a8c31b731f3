package header

import (
	"fmt"
	"strings"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
	"firestige.xyz/pktforge/internal/core/checksum"
)

const (
	TCPMinLen = 20
	TCPMaxLen = 60

	tcpDefaultWindow = 8192
)

// TCP flag bits of header byte 13, as used by core.TransportHeader.TCPFlags.
const (
	TCPFlagFIN uint8 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)

var (
	tcpSrcPort  = bitbuf.NewField[uint16](0, 16)
	tcpDstPort  = bitbuf.NewField[uint16](16, 16)
	tcpSeq      = bitbuf.NewField[uint32](32, 32)
	tcpAck      = bitbuf.NewField[uint32](64, 32)
	tcpDataOff  = bitbuf.NewField[uint8](96, 4)
	tcpReserved = bitbuf.NewField[uint8](100, 3)
	tcpNS       = bitbuf.NewFlag(103)
	tcpCWR      = bitbuf.NewFlag(104)
	tcpECE      = bitbuf.NewFlag(105)
	tcpURG      = bitbuf.NewFlag(106)
	tcpACK      = bitbuf.NewFlag(107)
	tcpPSH      = bitbuf.NewFlag(108)
	tcpRST      = bitbuf.NewFlag(109)
	tcpSYN      = bitbuf.NewFlag(110)
	tcpFIN      = bitbuf.NewFlag(111)
	tcpWindow   = bitbuf.NewField[uint16](112, 16)
	tcpChecksum = bitbuf.NewField[uint16](128, 16)
	tcpUrgent   = bitbuf.NewField[uint16](144, 16)

	// tcpFlagBits lists the flag views of byte 13, FIN first.
	tcpFlagBits = [...]bitbuf.Flag{tcpFIN, tcpSYN, tcpRST, tcpPSH, tcpACK, tcpURG, tcpECE, tcpCWR}
)

// TCP is a TCP header with optional options.
type TCP struct {
	base
}

// NewTCP returns a 20-byte header with data offset 5 and window 8192.
func NewTCP() *TCP {
	h := &TCP{base: newBase(TCPMinLen)}
	tcpDataOff.Set(&h.buf, TCPMinLen/4)
	h.SetWindow(tcpDefaultWindow)
	return h
}

func (h *TCP) Kind() Kind { return KindTCP }

func (h *TCP) SrcPort() uint16     { return tcpSrcPort.Get(&h.buf) }
func (h *TCP) SetSrcPort(p uint16) { tcpSrcPort.Set(&h.buf, p) }
func (h *TCP) DstPort() uint16     { return tcpDstPort.Get(&h.buf) }
func (h *TCP) SetDstPort(p uint16) { tcpDstPort.Set(&h.buf, p) }
func (h *TCP) Seq() uint32         { return tcpSeq.Get(&h.buf) }
func (h *TCP) SetSeq(n uint32)     { tcpSeq.Set(&h.buf, n) }
func (h *TCP) Ack() uint32         { return tcpAck.Get(&h.buf) }
func (h *TCP) SetAck(n uint32)     { tcpAck.Set(&h.buf, n) }

// DataOffset returns the header length in 32-bit words.
func (h *TCP) DataOffset() uint8 { return tcpDataOff.Get(&h.buf) }

// SetDataOffset overrides the declared header length. UpdateComputedFields
// resets it from the actual header bytes.
func (h *TCP) SetDataOffset(words uint8) { tcpDataOff.Set(&h.buf, words) }

func (h *TCP) NS() bool       { return tcpNS.Get(&h.buf) }
func (h *TCP) SetNS(on bool)  { tcpNS.Set(&h.buf, on) }
func (h *TCP) CWR() bool      { return tcpCWR.Get(&h.buf) }
func (h *TCP) SetCWR(on bool) { tcpCWR.Set(&h.buf, on) }
func (h *TCP) ECE() bool      { return tcpECE.Get(&h.buf) }
func (h *TCP) SetECE(on bool) { tcpECE.Set(&h.buf, on) }
func (h *TCP) URG() bool      { return tcpURG.Get(&h.buf) }
func (h *TCP) SetURG(on bool) { tcpURG.Set(&h.buf, on) }
func (h *TCP) ACK() bool      { return tcpACK.Get(&h.buf) }
func (h *TCP) SetACK(on bool) { tcpACK.Set(&h.buf, on) }
func (h *TCP) PSH() bool      { return tcpPSH.Get(&h.buf) }
func (h *TCP) SetPSH(on bool) { tcpPSH.Set(&h.buf, on) }
func (h *TCP) RST() bool      { return tcpRST.Get(&h.buf) }
func (h *TCP) SetRST(on bool) { tcpRST.Set(&h.buf, on) }
func (h *TCP) SYN() bool      { return tcpSYN.Get(&h.buf) }
func (h *TCP) SetSYN(on bool) { tcpSYN.Set(&h.buf, on) }
func (h *TCP) FIN() bool      { return tcpFIN.Get(&h.buf) }
func (h *TCP) SetFIN(on bool) { tcpFIN.Set(&h.buf, on) }

// Flags returns byte 13 as a TCPFlag* mask. NS is not included.
func (h *TCP) Flags() uint8 {
	var f uint8
	for i, fl := range tcpFlagBits {
		if fl.Get(&h.buf) {
			f |= 1 << i
		}
	}
	return f
}

// SetFlags sets byte 13 from a TCPFlag* mask, leaving NS untouched.
func (h *TCP) SetFlags(f uint8) {
	for i, fl := range tcpFlagBits {
		fl.Set(&h.buf, f&(1<<i) != 0)
	}
}

func (h *TCP) Window() uint16            { return tcpWindow.Get(&h.buf) }
func (h *TCP) SetWindow(w uint16)        { tcpWindow.Set(&h.buf, w) }
func (h *TCP) Checksum() uint16          { return tcpChecksum.Get(&h.buf) }
func (h *TCP) SetChecksum(c uint16)      { tcpChecksum.Set(&h.buf, c) }
func (h *TCP) UrgentPointer() uint16     { return tcpUrgent.Get(&h.buf) }
func (h *TCP) SetUrgentPointer(p uint16) { tcpUrgent.Set(&h.buf, p) }

// Options returns a copy of the option bytes.
func (h *TCP) Options() []byte {
	return h.buf.GetBytes(TCPMinLen, h.buf.Len()-TCPMinLen)
}

// SetOptions replaces the options, zero-padding them (EOL) to a multiple
// of 4 bytes, and sets the data offset to match.
func (h *TCP) SetOptions(opts []byte) error {
	padded := (len(opts) + 3) &^ 3
	if TCPMinLen+padded > TCPMaxLen {
		return fmt.Errorf("tcp options %d bytes exceed %d: %w", len(opts), TCPMaxLen-TCPMinLen, core.ErrInvalidField)
	}
	h.buf.Resize(TCPMinLen)
	h.buf.Resize(TCPMinLen + padded)
	h.buf.SetBytes(TCPMinLen, opts)
	tcpDataOff.Set(&h.buf, uint8((TCPMinLen+padded)/4))
	return nil
}

// FromBytes reads DataOffset*4 bytes, or 20 when the offset is below 5.
func (h *TCP) FromBytes(data []byte) error {
	if err := need(KindTCP, data, TCPMinLen); err != nil {
		return err
	}
	n := max(TCPMinLen, int(data[12]>>4)*4)
	if err := need(KindTCP, data, n); err != nil {
		return err
	}
	h.load(data, n)
	return nil
}

// SizeBytes returns the declared length, DataOffset*4.
func (h *TCP) SizeBytes() int { return int(h.DataOffset()) * 4 }
func (h *TCP) SizeBits() int  { return h.SizeBytes() * 8 }

func (h *TCP) IsValid() bool {
	return h.DataOffset() >= TCPMinLen/4 && h.SizeBytes() == h.buf.Len()
}

// UpdateChecksum computes the checksum over the pseudo-header for src/dst.
func (h *TCP) UpdateChecksum(ctx ComputeContext) error {
	sum, err := checksum.TCP(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
	if err != nil {
		return err
	}
	h.SetChecksum(sum)
	return nil
}

// VerifyChecksum reports whether the stored checksum is correct for ctx.
func (h *TCP) VerifyChecksum(ctx ComputeContext) bool {
	return checksum.VerifyTCP(ctx.Src, ctx.Dst, h.buf.Bytes(), ctx.Payload)
}

// UpdateComputedFields sets the data offset from the header bytes and,
// when ctx carries addresses, the checksum.
func (h *TCP) UpdateComputedFields(ctx ComputeContext) error {
	tcpDataOff.Set(&h.buf, uint8(h.buf.Len()/4))
	if !ctx.HasAddrs() {
		return nil
	}
	return h.UpdateChecksum(ctx)
}

func (h *TCP) Attrs() []Attr {
	attrs := []Attr{
		attr("src_port", h.SrcPort()),
		attr("dst_port", h.DstPort()),
		attr("seq", h.Seq()),
		attr("ack", h.Ack()),
		attr("data_offset", h.DataOffset()),
		attr("flags", FormatTCPFlags(h.Flags(), h.NS())),
		attr("window", h.Window()),
		hexAttr("checksum", uint64(h.Checksum()), 4),
		attr("urgent", h.UrgentPointer()),
	}
	if opts := h.Options(); len(opts) > 0 {
		attrs = append(attrs, attr("options", fmt.Sprintf("%x", opts)))
	}
	if r := tcpReserved.Get(&h.buf); r != 0 {
		attrs = append(attrs, attr("reserved", r))
	}
	return attrs
}

var tcpFlagNames = [...]string{"FIN", "SYN", "RST", "PSH", "ACK", "URG", "ECE", "CWR"}

// FormatTCPFlags renders a flag mask as "SYN|ACK", or "none".
func FormatTCPFlags(f uint8, ns bool) string {
	var names []string
	for i, name := range tcpFlagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if ns {
		names = append(names, "NS")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseTCPFlags is the inverse of FormatTCPFlags. Names are separated by
// '|', ',' or spaces and are case-insensitive.
func ParseTCPFlags(s string) (f uint8, ns bool, err error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})
next:
	for _, name := range fields {
		name = strings.ToUpper(name)
		switch name {
		case "NONE":
			continue
		case "NS":
			ns = true
			continue
		}
		for i, n := range tcpFlagNames {
			if n == name {
				f |= 1 << i
				continue next
			}
		}
		return 0, false, fmt.Errorf("tcp flag %q: %w", name, core.ErrInvalidField)
	}
	return f, ns, nil
}
