package payload

import (
	"fmt"
	"strings"

	"firestige.xyz/pktforge/internal/core"
)

// Kind names a payload recipe usable from templates.
type Kind string

const (
	KindZero        Kind = "zero"
	KindRandom      Kind = "random"
	KindASCII       Kind = "ascii"
	KindAlnum       Kind = "alnum"
	KindHex         Kind = "hex"
	KindIncremental Kind = "incremental"
	KindNetwork     Kind = "network"
	KindHTTP        Kind = "http"
	KindBinary      Kind = "binary"
	KindRepeating   Kind = "repeating"
	KindHTTPGet     Kind = "http_get"
	KindDNSQuery    Kind = "dns_query"
)

// Spec describes a generated payload.
type Spec struct {
	Kind  Kind   `mapstructure:"kind" yaml:"kind" json:"kind"`
	Size  int    `mapstructure:"size" yaml:"size" json:"size"`
	Start uint8  `mapstructure:"start" yaml:"start,omitempty" json:"start,omitempty"` // incremental only
	Chars string `mapstructure:"chars" yaml:"chars,omitempty" json:"chars,omitempty"` // random with a fixed alphabet

	Period int `mapstructure:"period" yaml:"period,omitempty" json:"period,omitempty"` // repeating

	// http_get and dns_query build complete messages and ignore Size.
	Host   string `mapstructure:"host" yaml:"host,omitempty" json:"host,omitempty"`
	Path   string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	Domain string `mapstructure:"domain" yaml:"domain,omitempty" json:"domain,omitempty"`
	ID     uint16 `mapstructure:"id" yaml:"id,omitempty" json:"id,omitempty"` // dns_query, 0 picks one at random
}

// Generate builds the payload described by s.
func (g *Generator) Generate(s Spec) ([]byte, error) {
	if s.Size < 0 {
		return nil, fmt.Errorf("payload size %d: %w", s.Size, core.ErrInvalidField)
	}
	switch Kind(strings.ToLower(string(s.Kind))) {
	case KindZero, "":
		return make([]byte, s.Size), nil
	case KindRandom:
		if s.Chars != "" {
			return g.Pattern(s.Size, []byte(s.Chars)), nil
		}
		return g.Bytes(s.Size), nil
	case KindASCII:
		return g.ASCII(s.Size), nil
	case KindAlnum:
		return g.Alphanumeric(s.Size), nil
	case KindHex:
		return g.HexChars(s.Size), nil
	case KindIncremental:
		return Incremental(s.Size, s.Start), nil
	case KindNetwork:
		return g.NetworkData(s.Size), nil
	case KindHTTP:
		return g.HTTPLike(s.Size), nil
	case KindBinary:
		return g.BinaryProtocol(s.Size), nil
	case KindRepeating:
		return g.Repeating(s.Size, s.Period), nil
	case KindHTTPGet:
		if s.Host == "" {
			return nil, fmt.Errorf("payload kind %q needs a host: %w", s.Kind, core.ErrInvalidField)
		}
		return HTTPGet(s.Host, s.Path), nil
	case KindDNSQuery:
		if s.Domain == "" {
			return nil, fmt.Errorf("payload kind %q needs a domain: %w", s.Kind, core.ErrInvalidField)
		}
		id := s.ID
		if id == 0 {
			id = uint16(g.rng.UintN(1<<16-1)) + 1
		}
		return DNSQuery(id, s.Domain)
	default:
		return nil, fmt.Errorf("payload kind %q: %w", s.Kind, core.ErrInvalidField)
	}
}
