package core

import "fmt"

// EtherType is the 16-bit protocol selector carried by Ethernet and VLAN tags.
type EtherType uint16

const (
	EtherTypeIPv4          EtherType = 0x0800
	EtherTypeARP           EtherType = 0x0806
	EtherTypeTransparentEB EtherType = 0x6558 // Transparent Ethernet bridging (GRE)
	EtherTypeVLAN          EtherType = 0x8100
	EtherTypeIPv6          EtherType = 0x86DD
	EtherTypeMPLS          EtherType = 0x8847
	EtherTypeMPLSMulticast EtherType = 0x8848
	EtherTypeQinQ          EtherType = 0x88A8
)

// KnownEtherTypes lists the EtherType values understood by the decoder.
var KnownEtherTypes = []EtherType{
	EtherTypeIPv4, EtherTypeARP, EtherTypeTransparentEB, EtherTypeVLAN,
	EtherTypeIPv6, EtherTypeMPLS, EtherTypeMPLSMulticast, EtherTypeQinQ,
}

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeTransparentEB:
		return "TEB"
	case EtherTypeVLAN:
		return "VLAN"
	case EtherTypeIPv6:
		return "IPv6"
	case EtherTypeMPLS:
		return "MPLS"
	case EtherTypeMPLSMulticast:
		return "MPLS-MC"
	case EtherTypeQinQ:
		return "QinQ"
	default:
		return fmt.Sprintf("EtherType(0x%04x)", uint16(t))
	}
}

// IPProto is the IPv4 protocol / IPv6 next header number.
type IPProto uint8

const (
	IPProtoICMP   IPProto = 1
	IPProtoIPIP   IPProto = 4
	IPProtoTCP    IPProto = 6
	IPProtoUDP    IPProto = 17
	IPProtoIPv6   IPProto = 41
	IPProtoGRE    IPProto = 47
	IPProtoICMPv6 IPProto = 58
	IPProtoOSPF   IPProto = 89
	IPProtoSCTP   IPProto = 132
)

// KnownIPProtos lists the protocol numbers understood by the decoder.
var KnownIPProtos = []IPProto{
	IPProtoICMP, IPProtoIPIP, IPProtoTCP, IPProtoUDP, IPProtoIPv6,
	IPProtoGRE, IPProtoICMPv6, IPProtoOSPF, IPProtoSCTP,
}

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoIPIP:
		return "IPIP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	case IPProtoIPv6:
		return "IPv6"
	case IPProtoGRE:
		return "GRE"
	case IPProtoICMPv6:
		return "ICMPv6"
	case IPProtoOSPF:
		return "OSPF"
	case IPProtoSCTP:
		return "SCTP"
	default:
		return fmt.Sprintf("IPProto(%d)", uint8(p))
	}
}

// ARPOp is the ARP operation code (RFC 826).
type ARPOp uint16

const (
	ARPRequest ARPOp = 1
	ARPReply   ARPOp = 2
)

func (o ARPOp) String() string {
	switch o {
	case ARPRequest:
		return "request"
	case ARPReply:
		return "reply"
	default:
		return fmt.Sprintf("ARPOp(%d)", uint16(o))
	}
}
