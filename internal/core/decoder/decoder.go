// Package decoder walks a raw frame layer by layer, dispatching on
// EtherType, IP protocol number and UDP port, and builds both the typed
// header stack and the flat L2-L4 summary.
package decoder

import (
	"fmt"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

const defaultMaxLayers = 16

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (Frame, error)
}

// Config controls how far the decoder follows encapsulations.
type Config struct {
	Tunnel          TunnelConfig `mapstructure:"tunnel"`
	VerifyChecksums bool         `mapstructure:"verify_checksums"`
	MaxLayers       int          `mapstructure:"max_layers"` // default 16
}

// TunnelConfig selects which tunnel protocols are decapsulated.
type TunnelConfig struct {
	VXLAN     bool   `mapstructure:"vxlan"`
	GRE       bool   `mapstructure:"gre"`
	IPIP      bool   `mapstructure:"ipip"`
	VXLANPort uint16 `mapstructure:"vxlan_port"` // default 4789
}

// DefaultConfig follows every supported tunnel and verifies checksums.
func DefaultConfig() Config {
	return Config{
		Tunnel: TunnelConfig{
			VXLAN:     true,
			GRE:       true,
			IPIP:      true,
			VXLANPort: header.VXLANPort,
		},
		VerifyChecksums: true,
		MaxLayers:       defaultMaxLayers,
	}
}

// ChecksumStatus is the outcome of verifying one layer's checksum.
type ChecksumStatus uint8

const (
	ChecksumNotChecked ChecksumStatus = iota
	ChecksumValid
	ChecksumInvalid
	ChecksumAbsent // UDP over IPv4 with a zero checksum, GRE without C bit
)

func (s ChecksumStatus) String() string {
	switch s {
	case ChecksumValid:
		return "valid"
	case ChecksumInvalid:
		return "invalid"
	case ChecksumAbsent:
		return "absent"
	default:
		return "unchecked"
	}
}

// Layer is one decoded header.
type Layer struct {
	Header   header.Header
	Offset   int // byte offset of the header within the frame
	Checksum ChecksumStatus
}

// Frame is the result of decoding one packet.
type Frame struct {
	core.DecodedPacket
	Layers []Layer
	// Truncated is set when an inner header did not fit in the captured
	// bytes. The unparsed remainder is left in Payload.
	Truncated bool
}

// ChecksumErrors counts layers whose checksum failed verification.
func (f *Frame) ChecksumErrors() int {
	n := 0
	for _, l := range f.Layers {
		if l.Checksum == ChecksumInvalid {
			n++
		}
	}
	return n
}

// Kinds returns the header kinds in wire order.
func (f *Frame) Kinds() []header.Kind {
	kinds := make([]header.Kind, len(f.Layers))
	for i, l := range f.Layers {
		kinds[i] = l.Header.Kind()
	}
	return kinds
}

// StandardDecoder is the default Decoder. It is safe for concurrent use.
type StandardDecoder struct {
	cfg Config
}

// NewStandardDecoder returns a decoder. Zero fields of cfg.Tunnel keep
// their tunnel disabled; a zero VXLANPort or MaxLayers takes the default.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	if cfg.Tunnel.VXLANPort == 0 {
		cfg.Tunnel.VXLANPort = header.VXLANPort
	}
	if cfg.MaxLayers <= 0 {
		cfg.MaxLayers = defaultMaxLayers
	}
	return &StandardDecoder{cfg: cfg}
}

// Decode parses raw.Data starting with the header implied by raw.LinkType.
// Only a failure of the first header is an error.
func (d *StandardDecoder) Decode(raw core.RawPacket) (Frame, error) {
	f := Frame{DecodedPacket: core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}}
	if len(raw.Data) == 0 {
		return f, core.ErrPacketTooShort
	}

	var first header.Kind
	switch raw.LinkType {
	case core.LinkTypeEthernet:
		first = header.KindEthernet
	case core.LinkTypeRaw:
		first = ipKindFromVersion(raw.Data)
		if first == 0 {
			return f, fmt.Errorf("ip version %d: %w", raw.Data[0]>>4, core.ErrUnsupportedProto)
		}
	default:
		return f, fmt.Errorf("link type %v: %w", raw.LinkType, core.ErrUnsupportedProto)
	}

	w := walker{
		cfg:     &d.cfg,
		frame:   &f,
		data:    raw.Data,
		end:     len(raw.Data),
		partial: raw.OrigLen > uint32(len(raw.Data)),
	}
	if err := w.run(first); err != nil {
		return f, err
	}
	return f, nil
}

// walker holds the state of one Decode call.
type walker struct {
	cfg   *Config
	frame *Frame
	data  []byte
	off   int // start of the next header
	end   int // end of the current datagram, shrunk by length fields

	seenLink bool
	seenIP   bool
	partial  bool             // snapped capture or IP fragment
	ip       header.Addresser // nearest enclosing IP header
}

func (w *walker) run(kind header.Kind) error {
	for depth := 0; kind != 0 && depth < w.cfg.MaxLayers; depth++ {
		h, err := header.Parse(kind, w.data[w.off:w.end])
		if err != nil {
			if depth == 0 {
				return err
			}
			w.frame.Truncated = true
			break
		}
		n := len(h.Bytes())
		layer := Layer{Header: h, Offset: w.off}
		w.off += n

		w.bound(h)
		layer.Checksum = w.verify(h)
		w.summarize(h)
		if ip, ok := h.(*header.IPv4); ok && ip.MoreFragments() {
			w.partial = true
		}
		w.frame.Layers = append(w.frame.Layers, layer)

		kind = w.next(h)
	}
	w.frame.Payload = w.data[w.off:w.end]
	return nil
}

// next picks the kind of the header following h, or 0 to stop.
func (w *walker) next(h header.Header) header.Kind {
	switch h := h.(type) {
	case *header.Ethernet:
		return kindForEtherType(h.EtherType())
	case *header.VLAN:
		return kindForEtherType(h.EtherType())
	case *header.MPLS:
		return w.nextAfterMPLS(h)
	case *header.IPv4:
		if h.IHL() < 5 || h.FragmentOffset() != 0 {
			return 0 // only the first fragment carries the next header
		}
		return w.kindForIPProto(h.Protocol())
	case *header.IPv6:
		return w.kindForIPProto(h.NextHeader())
	case *header.UDP:
		return w.nextAfterUDP(h)
	case *header.VXLAN:
		return nextAfterVXLAN(h)
	case *header.GRE:
		return nextAfterGRE(h)
	default:
		return 0
	}
}

func (w *walker) summarize(h header.Header) {
	w.summarizeLink(h)
	w.summarizeIP(h)
	w.summarizeTransport(h)
	w.summarizeTunnel(h)
}
