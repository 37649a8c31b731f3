// Package header implements the protocol header model: fixed and variable
// length headers whose fields are bit-exact views over one owned buffer.
//
// Every header follows the same FromBytes discipline: the input is
// validated before anything is touched, so a failed FromBytes leaves the
// previous contents intact, and a successful one replaces the buffer
// wholesale with a copy of the bytes that belong to the header.
//
// Computed fields (lengths, checksums) are only refreshed by an explicit
// UpdateComputedFields call. Setters never recompute anything.
package header

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/bitbuf"
)

// Kind identifies a header type.
type Kind uint8

const (
	KindEthernet Kind = iota + 1
	KindVLAN
	KindMPLS
	KindARP
	KindIPv4
	KindIPv6
	KindTCP
	KindUDP
	KindICMPv4
	KindICMPv6
	KindGRE
	KindVXLAN
)

var kindNames = map[Kind]string{
	KindEthernet: "ethernet",
	KindVLAN:     "vlan",
	KindMPLS:     "mpls",
	KindARP:      "arp",
	KindIPv4:     "ipv4",
	KindIPv6:     "ipv6",
	KindTCP:      "tcp",
	KindUDP:      "udp",
	KindICMPv4:   "icmpv4",
	KindICMPv6:   "icmpv6",
	KindGRE:      "gre",
	KindVXLAN:    "vxlan",
}

// aliases accepted by ParseKind in addition to the canonical names.
var kindAliases = map[string]Kind{
	"eth":   KindEthernet,
	"ether": KindEthernet,
	"dot1q": KindVLAN,
	"ip":    KindIPv4,
	"ip4":   KindIPv4,
	"ip6":   KindIPv6,
	"icmp":  KindICMPv4,
	"icmp6": KindICMPv6,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a case-insensitive header name such as "ipv4" or "eth".
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%q: %w", s, core.ErrUnknownLayer)
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := range kindNames {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Header is the capability shared by every protocol header.
type Header interface {
	Kind() Kind
	// Bytes returns a copy of the serialized header.
	Bytes() []byte
	// FromBytes loads the header from the start of data. Trailing bytes
	// beyond the header are ignored.
	FromBytes(data []byte) error
	// SizeBits and SizeBytes report the declared header length.
	SizeBits() int
	SizeBytes() int
	// IsValid is a structural check only; checksums are not verified.
	IsValid() bool
	// UpdateComputedFields refreshes length and checksum fields.
	UpdateComputedFields(ctx ComputeContext) error
	// Attrs lists the field values for display.
	Attrs() []Attr
}

// ComputeContext carries what a header needs from its surroundings to
// recompute derived fields.
type ComputeContext struct {
	// Src and Dst are the addresses of the nearest enclosing IP header.
	// Transport checksums are left untouched when they are not valid.
	Src, Dst netip.Addr
	// Payload is every byte that follows the header on the wire.
	Payload []byte
}

// HasAddrs reports whether both pseudo-header addresses are set.
func (c ComputeContext) HasAddrs() bool { return c.Src.IsValid() && c.Dst.IsValid() }

// Addresser is implemented by network-layer headers.
type Addresser interface {
	SrcAddr() netip.Addr
	DstAddr() netip.Addr
}

// Attr is one named field value.
type Attr struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func attr(key string, v any) Attr { return Attr{Key: key, Value: fmt.Sprint(v)} }

func hexAttr(key string, v uint64, digits int) Attr {
	return Attr{Key: key, Value: fmt.Sprintf("0x%0*x", digits, v)}
}

var registry = map[Kind]func() Header{
	KindEthernet: func() Header { return NewEthernet() },
	KindVLAN:     func() Header { return NewVLAN() },
	KindMPLS:     func() Header { return NewMPLS() },
	KindARP:      func() Header { return NewARP() },
	KindIPv4:     func() Header { return NewIPv4() },
	KindIPv6:     func() Header { return NewIPv6() },
	KindTCP:      func() Header { return NewTCP() },
	KindUDP:      func() Header { return NewUDP() },
	KindICMPv4:   func() Header { return NewICMPv4() },
	KindICMPv6:   func() Header { return NewICMPv6() },
	KindGRE:      func() Header { return NewGRE() },
	KindVXLAN:    func() Header { return NewVXLAN() },
}

var minSizes = map[Kind]int{
	KindEthernet: EthernetLen,
	KindVLAN:     VLANLen,
	KindMPLS:     MPLSLen,
	KindARP:      ARPLen,
	KindIPv4:     IPv4MinLen,
	KindIPv6:     IPv6Len,
	KindTCP:      TCPMinLen,
	KindUDP:      UDPLen,
	KindICMPv4:   ICMPLen,
	KindICMPv6:   ICMPLen,
	KindGRE:      GREMinLen,
	KindVXLAN:    VXLANLen,
}

// New returns a header of the given kind with its default field values.
func New(k Kind) (Header, error) {
	ctor, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("%v: %w", k, core.ErrUnknownLayer)
	}
	return ctor(), nil
}

// MinSize returns the smallest number of bytes FromBytes accepts for k,
// or 0 for an unknown kind.
func MinSize(k Kind) int { return minSizes[k] }

// Parse builds a header of kind k from the start of data.
func Parse(k Kind, data []byte) (Header, error) {
	h, err := New(k)
	if err != nil {
		return nil, err
	}
	if err := h.FromBytes(data); err != nil {
		return nil, err
	}
	return h, nil
}

// base owns the buffer shared by every concrete header.
type base struct {
	buf bitbuf.Buffer
}

func newBase(n int) base { return base{buf: bitbuf.New(n)} }

// Bytes returns a copy of the header bytes.
func (b *base) Bytes() []byte { return b.buf.Bytes() }

// load replaces the buffer with a copy of data[:n]. Callers validate first.
func (b *base) load(data []byte, n int) { b.buf.Reset(data[:n]) }

// need reports ErrPacketTooShort when data cannot hold n bytes of kind k.
func need(k Kind, data []byte, n int) error {
	if len(data) < n {
		return fmt.Errorf("%v header needs %d bytes, have %d: %w", k, n, len(data), core.ErrPacketTooShort)
	}
	return nil
}

// checkLen16 guards length fields that are 16 bits wide on the wire.
func checkLen16(k Kind, n int) error {
	if n > 0xFFFF {
		return fmt.Errorf("%v length %d exceeds 65535: %w", k, n, core.ErrInvalidField)
	}
	return nil
}
