package forge

import (
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"net/netip"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/checksum"
	"firestige.xyz/pktforge/internal/core/header"
)

// layer is one compiled template layer.
type layer struct {
	h header.Header
	// link fills the next-protocol field from the following layer. It is
	// nil when the template set that field explicitly.
	link func(next header.Kind)
	// fix applies explicit values for computed fields after finalization.
	fix func(raw bool) error
}

type compileFunc func(fields map[string]any) (layer, error)

var compilers = map[header.Kind]compileFunc{
	header.KindEthernet: compileEthernet,
	header.KindVLAN:     compileVLAN,
	header.KindMPLS:     compileMPLS,
	header.KindARP:      compileARP,
	header.KindIPv4:     compileIPv4,
	header.KindIPv6:     compileIPv6,
	header.KindTCP:      compileTCP,
	header.KindUDP:      compileUDP,
	header.KindICMPv4:   compileICMP,
	header.KindICMPv6:   compileICMP6,
	header.KindGRE:      compileGRE,
	header.KindVXLAN:    compileVXLAN,
}

// decodeFields maps template fields onto out. Unknown keys are errors so
// that typos do not silently produce default values.
func decodeFields(fields map[string]any, out any) error {
	if err := weakDecode(fields, out, true); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidField, err)
	}
	return nil
}

// weakDecode decodes in into out, accepting numeric strings such as
// "0x0800" but rejecting numbers outside the target's range.
func weakDecode(in, out any, errorUnused bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      errorUnused,
		DecodeHook:       checkIntRange,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// checkIntRange fails when data does not fit the integer kind it is
// decoded into. Weakly typed decoding would otherwise wrap it.
func checkIntRange(_ reflect.Type, to reflect.Type, data any) (any, error) {
	var signed bool
	switch to.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		signed = true
	default:
		return data, nil
	}

	var (
		neg bool
		mag uint64 // absolute value
	)
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		neg, mag = i < 0, absInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		mag = v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.Abs(f) >= 1<<64 {
			return nil, fmt.Errorf("%v out of range for %s", data, to)
		}
		neg, mag = f < 0, uint64(math.Abs(f))
	case reflect.String:
		s := strings.TrimSpace(v.String())
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			neg, mag = i < 0, absInt(i)
		} else if u, err := strconv.ParseUint(s, 0, 64); err == nil {
			mag = u
		} else {
			return data, nil
		}
	default:
		return data, nil
	}

	bits := to.Bits()
	switch {
	case !signed && neg && mag != 0:
		return nil, fmt.Errorf("%v is negative, %s expected", data, to)
	case !signed && bits < 64 && mag > 1<<bits-1:
		return nil, fmt.Errorf("%v overflows %s", data, to)
	case signed && !neg && mag > 1<<(bits-1)-1:
		return nil, fmt.Errorf("%v overflows %s", data, to)
	case signed && neg && mag > 1<<(bits-1):
		return nil, fmt.Errorf("%v overflows %s", data, to)
	}
	return data, nil
}

func absInt(i int64) uint64 {
	if i < 0 {
		return uint64(-(i + 1)) + 1
	}
	return uint64(i)
}

func parseMAC(field, s string) ([6]byte, error) {
	if s == "" {
		return [6]byte{}, nil
	}
	hw, err := net.ParseMAC(s)
	if err != nil {
		return [6]byte{}, fmt.Errorf("%s: %w: %v", field, core.ErrInvalidField, err)
	}
	mac, ok := header.MAC(hw)
	if !ok {
		return [6]byte{}, fmt.Errorf("%s: %q is not a 48-bit address: %w", field, s, core.ErrInvalidField)
	}
	return mac, nil
}

// parseAddr returns the zero Addr for an empty string.
func parseAddr(field, s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s: %w: %v", field, core.ErrInvalidField, err)
	}
	return ip, nil
}

func parseHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", field, core.ErrInvalidField, err)
	}
	return b, nil
}

func etherTypeFor(next header.Kind) (core.EtherType, bool) {
	switch next {
	case header.KindIPv4:
		return core.EtherTypeIPv4, true
	case header.KindIPv6:
		return core.EtherTypeIPv6, true
	case header.KindVLAN:
		return core.EtherTypeVLAN, true
	case header.KindMPLS:
		return core.EtherTypeMPLS, true
	case header.KindARP:
		return core.EtherTypeARP, true
	case header.KindEthernet:
		return core.EtherTypeTransparentEB, true
	}
	return 0, false
}

func ipProtoFor(next header.Kind) (core.IPProto, bool) {
	switch next {
	case header.KindTCP:
		return core.IPProtoTCP, true
	case header.KindUDP:
		return core.IPProtoUDP, true
	case header.KindICMPv4:
		return core.IPProtoICMP, true
	case header.KindICMPv6:
		return core.IPProtoICMPv6, true
	case header.KindGRE:
		return core.IPProtoGRE, true
	case header.KindIPv4:
		return core.IPProtoIPIP, true
	case header.KindIPv6:
		return core.IPProtoIPv6, true
	}
	return 0, false
}

type ethernetFields struct {
	Src  string  `mapstructure:"src"`
	Dst  string  `mapstructure:"dst"`
	Type *uint16 `mapstructure:"type"`
}

func compileEthernet(fields map[string]any) (layer, error) {
	var f ethernetFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewEthernet()
	src, err := parseMAC("src", f.Src)
	if err != nil {
		return layer{}, err
	}
	dst, err := parseMAC("dst", f.Dst)
	if err != nil {
		return layer{}, err
	}
	h.SetSrcMAC(src)
	h.SetDstMAC(dst)

	l := layer{h: h}
	if f.Type != nil {
		h.SetEtherType(core.EtherType(*f.Type))
	} else {
		l.link = func(next header.Kind) {
			if t, ok := etherTypeFor(next); ok && next != header.KindEthernet {
				h.SetEtherType(t)
			}
		}
	}
	return l, nil
}

type vlanFields struct {
	PCP  uint8   `mapstructure:"pcp"`
	DEI  bool    `mapstructure:"dei"`
	ID   uint16  `mapstructure:"id"`
	Type *uint16 `mapstructure:"type"`
}

func compileVLAN(fields map[string]any) (layer, error) {
	var f vlanFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewVLAN()
	h.SetPriority(f.PCP)
	h.SetDropEligible(f.DEI)
	h.SetID(f.ID)

	l := layer{h: h}
	if f.Type != nil {
		h.SetEtherType(core.EtherType(*f.Type))
	} else {
		l.link = func(next header.Kind) {
			if t, ok := etherTypeFor(next); ok && next != header.KindEthernet {
				h.SetEtherType(t)
			}
		}
	}
	return l, nil
}

type mplsFields struct {
	Label uint32 `mapstructure:"label"`
	TC    uint8  `mapstructure:"tc"`
	BoS   *bool  `mapstructure:"bos"`
	TTL   *uint8 `mapstructure:"ttl"`
}

func compileMPLS(fields map[string]any) (layer, error) {
	var f mplsFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewMPLS()
	h.SetLabel(f.Label)
	h.SetTrafficClass(f.TC)
	if f.TTL != nil {
		h.SetTTL(*f.TTL)
	}

	l := layer{h: h}
	if f.BoS != nil {
		h.SetBottomOfStack(*f.BoS)
	} else {
		l.link = func(next header.Kind) { h.SetBottomOfStack(next != header.KindMPLS) }
	}
	return l, nil
}

type arpFields struct {
	Op        uint16 `mapstructure:"op"`
	SenderMAC string `mapstructure:"sender_mac"`
	SenderIP  string `mapstructure:"sender_ip"`
	TargetMAC string `mapstructure:"target_mac"`
	TargetIP  string `mapstructure:"target_ip"`
}

func compileARP(fields map[string]any) (layer, error) {
	var f arpFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewARP()
	if f.Op != 0 {
		h.SetOp(core.ARPOp(f.Op))
	}
	sha, err := parseMAC("sender_mac", f.SenderMAC)
	if err != nil {
		return layer{}, err
	}
	tha, err := parseMAC("target_mac", f.TargetMAC)
	if err != nil {
		return layer{}, err
	}
	h.SetSenderMAC(sha)
	h.SetTargetMAC(tha)

	for _, a := range []struct {
		name, value string
		set         func(netip.Addr) error
	}{
		{"sender_ip", f.SenderIP, h.SetSenderIP},
		{"target_ip", f.TargetIP, h.SetTargetIP},
	} {
		ip, err := parseAddr(a.name, a.value)
		if err != nil {
			return layer{}, err
		}
		if !ip.IsValid() {
			continue
		}
		if err := a.set(ip); err != nil {
			return layer{}, fmt.Errorf("%s: %w", a.name, err)
		}
	}
	return layer{h: h}, nil
}

type ipv4Fields struct {
	Src         string  `mapstructure:"src"`
	Dst         string  `mapstructure:"dst"`
	DSCP        uint8   `mapstructure:"dscp"`
	ECN         uint8   `mapstructure:"ecn"`
	ID          uint16  `mapstructure:"id"`
	DF          bool    `mapstructure:"df"`
	MF          bool    `mapstructure:"mf"`
	FragOffset  uint16  `mapstructure:"frag_offset"`
	TTL         *uint8  `mapstructure:"ttl"`
	Protocol    *uint8  `mapstructure:"protocol"`
	Options     string  `mapstructure:"options"` // hex
	IHL         *uint8  `mapstructure:"ihl"`
	TotalLength *uint16 `mapstructure:"total_length"`
	Checksum    *uint16 `mapstructure:"checksum"`
}

func compileIPv4(fields map[string]any) (layer, error) {
	var f ipv4Fields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewIPv4()
	for _, a := range []struct {
		name, value string
		set         func(netip.Addr) error
	}{
		{"src", f.Src, h.SetSrcAddr},
		{"dst", f.Dst, h.SetDstAddr},
	} {
		ip, err := parseAddr(a.name, a.value)
		if err != nil {
			return layer{}, err
		}
		if !ip.IsValid() {
			ip = netip.IPv4Unspecified()
		}
		if err := a.set(ip); err != nil {
			return layer{}, fmt.Errorf("%s: %w", a.name, err)
		}
	}
	h.SetDSCP(f.DSCP)
	h.SetECN(f.ECN)
	h.SetID(f.ID)
	h.SetDontFragment(f.DF)
	h.SetMoreFragments(f.MF)
	h.SetFragmentOffset(f.FragOffset)
	if f.TTL != nil {
		h.SetTTL(*f.TTL)
	}
	if f.Options != "" {
		opts, err := parseHex("options", f.Options)
		if err != nil {
			return layer{}, err
		}
		if err := h.SetOptions(opts); err != nil {
			return layer{}, err
		}
	}

	l := layer{h: h}
	if f.Protocol != nil {
		h.SetProtocol(core.IPProto(*f.Protocol))
	} else {
		l.link = func(next header.Kind) {
			if p, ok := ipProtoFor(next); ok {
				h.SetProtocol(p)
			}
		}
	}
	if f.IHL != nil || f.TotalLength != nil || f.Checksum != nil {
		l.fix = func(raw bool) error {
			if f.IHL != nil {
				h.SetIHL(*f.IHL)
			}
			if f.TotalLength != nil {
				h.SetTotalLength(*f.TotalLength)
			}
			if f.Checksum != nil {
				h.SetChecksum(*f.Checksum)
				return nil
			}
			if !raw {
				h.SetChecksum(ipv4WireChecksum(h))
			}
			return nil
		}
	}
	return l, nil
}

// ipv4WireChecksum sums the header bytes actually emitted, with the
// checksum field zeroed. Unlike IPv4.UpdateChecksum it does not trust IHL,
// so a header whose IHL disagrees with its length still gets one.
func ipv4WireChecksum(h *header.IPv4) uint16 {
	b := h.Bytes()
	b[10], b[11] = 0, 0
	return checksum.Sum(b)
}

type ipv6Fields struct {
	Src           string  `mapstructure:"src"`
	Dst           string  `mapstructure:"dst"`
	TrafficClass  uint8   `mapstructure:"traffic_class"`
	FlowLabel     uint32  `mapstructure:"flow_label"`
	HopLimit      *uint8  `mapstructure:"hop_limit"`
	NextHeader    *uint8  `mapstructure:"next_header"`
	PayloadLength *uint16 `mapstructure:"payload_length"`
}

func compileIPv6(fields map[string]any) (layer, error) {
	var f ipv6Fields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewIPv6()
	for _, a := range []struct {
		name, value string
		set         func(netip.Addr) error
	}{
		{"src", f.Src, h.SetSrcAddr},
		{"dst", f.Dst, h.SetDstAddr},
	} {
		ip, err := parseAddr(a.name, a.value)
		if err != nil {
			return layer{}, err
		}
		if !ip.IsValid() {
			ip = netip.IPv6Unspecified()
		}
		if err := a.set(ip); err != nil {
			return layer{}, fmt.Errorf("%s: %w", a.name, err)
		}
	}
	h.SetTrafficClass(f.TrafficClass)
	h.SetFlowLabel(f.FlowLabel)
	if f.HopLimit != nil {
		h.SetHopLimit(*f.HopLimit)
	}

	l := layer{h: h}
	if f.NextHeader != nil {
		h.SetNextHeader(core.IPProto(*f.NextHeader))
	} else {
		l.link = func(next header.Kind) {
			if p, ok := ipProtoFor(next); ok {
				h.SetNextHeader(p)
			}
		}
	}
	if f.PayloadLength != nil {
		l.fix = func(bool) error {
			h.SetPayloadLength(*f.PayloadLength)
			return nil
		}
	}
	return l, nil
}

type tcpFields struct {
	SrcPort    uint16  `mapstructure:"sport"`
	DstPort    uint16  `mapstructure:"dport"`
	Seq        uint32  `mapstructure:"seq"`
	Ack        uint32  `mapstructure:"ack"`
	Flags      any     `mapstructure:"flags"` // "SYN|ACK" or a number
	Window     *uint16 `mapstructure:"window"`
	Urgent     uint16  `mapstructure:"urgent"`
	Options    string  `mapstructure:"options"` // hex
	DataOffset *uint8  `mapstructure:"data_offset"`
	Checksum   *uint16 `mapstructure:"checksum"`
}

func tcpFlags(v any) (uint8, bool, error) {
	switch v := v.(type) {
	case nil:
		return 0, false, nil
	case string:
		return header.ParseTCPFlags(v)
	default:
		var n uint16
		if err := weakDecode(v, &n, false); err != nil || n > 0x1FF {
			return 0, false, fmt.Errorf("flags %v: %w", v, core.ErrInvalidField)
		}
		return uint8(n), n&0x100 != 0, nil
	}
}

func compileTCP(fields map[string]any) (layer, error) {
	var f tcpFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewTCP()
	h.SetSrcPort(f.SrcPort)
	h.SetDstPort(f.DstPort)
	h.SetSeq(f.Seq)
	h.SetAck(f.Ack)
	flags, ns, err := tcpFlags(f.Flags)
	if err != nil {
		return layer{}, err
	}
	h.SetFlags(flags)
	h.SetNS(ns)
	if f.Window != nil {
		h.SetWindow(*f.Window)
	}
	h.SetUrgentPointer(f.Urgent)
	if f.Options != "" {
		opts, err := parseHex("options", f.Options)
		if err != nil {
			return layer{}, err
		}
		if err := h.SetOptions(opts); err != nil {
			return layer{}, err
		}
	}

	l := layer{h: h}
	if f.DataOffset != nil || f.Checksum != nil {
		l.fix = func(bool) error {
			if f.DataOffset != nil {
				h.SetDataOffset(*f.DataOffset)
			}
			if f.Checksum != nil {
				h.SetChecksum(*f.Checksum)
			}
			return nil
		}
	}
	return l, nil
}

type udpFields struct {
	SrcPort  uint16  `mapstructure:"sport"`
	DstPort  *uint16 `mapstructure:"dport"`
	Length   *uint16 `mapstructure:"length"`
	Checksum *uint16 `mapstructure:"checksum"`
}

func compileUDP(fields map[string]any) (layer, error) {
	var f udpFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewUDP()
	h.SetSrcPort(f.SrcPort)

	l := layer{h: h}
	if f.DstPort != nil {
		h.SetDstPort(*f.DstPort)
	} else {
		l.link = func(next header.Kind) {
			if next == header.KindVXLAN {
				h.SetDstPort(header.VXLANPort)
			}
		}
	}
	if f.Length != nil || f.Checksum != nil {
		l.fix = func(bool) error {
			if f.Length != nil {
				h.SetLength(*f.Length)
			}
			if f.Checksum != nil {
				h.SetChecksum(*f.Checksum)
			}
			return nil
		}
	}
	return l, nil
}

type icmpFields struct {
	Type     *uint8  `mapstructure:"type"`
	Code     uint8   `mapstructure:"code"`
	ID       uint16  `mapstructure:"id"`
	Seq      uint16  `mapstructure:"seq"`
	Checksum *uint16 `mapstructure:"checksum"`
}

func compileICMP(fields map[string]any) (layer, error) {
	return compileEcho(header.NewICMPv4(), fields)
}

func compileICMP6(fields map[string]any) (layer, error) {
	return compileEcho(header.NewICMPv6(), fields)
}

func compileEcho(h *header.ICMP, fields map[string]any) (layer, error) {
	var f icmpFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	if f.Type != nil {
		h.SetType(*f.Type)
	}
	h.SetCode(f.Code)
	h.SetID(f.ID)
	h.SetSeq(f.Seq)

	l := layer{h: h}
	if f.Checksum != nil {
		l.fix = func(bool) error {
			h.SetChecksum(*f.Checksum)
			return nil
		}
	}
	return l, nil
}

type greFields struct {
	Protocol *uint16 `mapstructure:"protocol"`
	Checksum bool    `mapstructure:"checksum"` // include the checksum field
	Key      *uint32 `mapstructure:"key"`
	Seq      *uint32 `mapstructure:"seq"`
}

func compileGRE(fields map[string]any) (layer, error) {
	var f greFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewGRE()
	h.SetChecksumPresent(f.Checksum)
	if f.Key != nil {
		h.SetKey(*f.Key)
	}
	if f.Seq != nil {
		h.SetSequence(*f.Seq)
	}

	l := layer{h: h}
	if f.Protocol != nil {
		h.SetProtocol(core.EtherType(*f.Protocol))
	} else {
		l.link = func(next header.Kind) {
			if t, ok := etherTypeFor(next); ok {
				h.SetProtocol(t)
			}
		}
	}
	return l, nil
}

type vxlanFields struct {
	VNI uint32 `mapstructure:"vni"`
}

func compileVXLAN(fields map[string]any) (layer, error) {
	var f vxlanFields
	if err := decodeFields(fields, &f); err != nil {
		return layer{}, err
	}
	h := header.NewVXLAN()
	h.SetVNI(f.VNI)
	return layer{h: h}, nil
}
