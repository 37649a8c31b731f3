// Package payload generates test payloads for built packets. Random
// content comes from a caller-owned *rand.Rand so results are reproducible
// from a seed and no generator state is shared between callers.
package payload

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"firestige.xyz/pktforge/internal/core"
)

const (
	alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	hexChars     = "0123456789ABCDEF"
)

var httpWords = []string{
	"GET", "POST", "PUT", "DELETE", "HTTP", "Host:", "Content-Type:",
	"User-Agent:", "Accept:", "Connection:", "close", "keep-alive",
	"application/json", "text/html", "Mozilla", "Chrome", "Firefox",
}

// Generator produces payload bytes. It is not safe for concurrent use;
// give each goroutine its own.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator wraps rng. A nil rng panics.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		panic("payload: nil rand source")
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a Generator whose output is fully determined by seed.
func NewSeeded(seed uint64) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)))
}

// Bytes returns n uniformly random bytes.
func (g *Generator) Bytes(n int) []byte {
	out := make([]byte, n)
	g.FillBytes(out)
	return out
}

func (g *Generator) FillBytes(p []byte) {
	for i := range p {
		p[i] = byte(g.rng.UintN(256))
	}
}

// Range returns n random bytes in [lo, hi]. Swapped bounds are reordered.
func (g *Generator) Range(n int, lo, hi byte) []byte {
	out := make([]byte, n)
	g.FillRange(out, lo, hi)
	return out
}

func (g *Generator) FillRange(p []byte, lo, hi byte) {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := uint(hi) - uint(lo) + 1
	for i := range p {
		p[i] = lo + byte(g.rng.UintN(span))
	}
}

// ASCII returns n printable ASCII characters (0x20-0x7E).
func (g *Generator) ASCII(n int) []byte { return g.Range(n, 0x20, 0x7E) }

func (g *Generator) Alphanumeric(n int) []byte { return g.Pattern(n, []byte(alphanumeric)) }

// HexChars returns n characters from 0-9A-F.
func (g *Generator) HexChars(n int) []byte { return g.Pattern(n, []byte(hexChars)) }

// Pattern returns n bytes each drawn from chars. An empty chars falls
// back to Bytes.
func (g *Generator) Pattern(n int, chars []byte) []byte {
	out := make([]byte, n)
	g.FillPattern(out, chars)
	return out
}

func (g *Generator) FillPattern(p, chars []byte) {
	if len(chars) == 0 {
		g.FillBytes(p)
		return
	}
	for i := range p {
		p[i] = chars[g.rng.IntN(len(chars))]
	}
}

// Repeating draws a random block of period bytes and repeats it to n.
func (g *Generator) Repeating(n, period int) []byte {
	if period <= 0 {
		period = 1
	}
	block := g.Bytes(period)
	out := make([]byte, n)
	for i := range out {
		out[i] = block[i%period]
	}
	return out
}

// NetworkData mixes runs of 4 to 32 bytes of binary, printable ASCII and
// alphanumeric content.
func (g *Generator) NetworkData(n int) []byte {
	out := make([]byte, n)
	for pos := 0; pos < n; {
		chunk := min(n-pos, 4+g.rng.IntN(29))
		dst := out[pos : pos+chunk]
		switch g.rng.IntN(3) {
		case 0:
			g.FillBytes(dst)
		case 1:
			g.FillRange(dst, 0x20, 0x7E)
		default:
			g.FillPattern(dst, []byte(alphanumeric))
		}
		pos += chunk
	}
	return out
}

// HTTPLike fills n bytes with HTTP vocabulary separated by spaces and
// line breaks. The last word may be cut short.
func (g *Generator) HTTPLike(n int) []byte {
	var sb strings.Builder
	sb.Grow(n + 32)
	for sb.Len() < n {
		sb.WriteString(httpWords[g.rng.IntN(len(httpWords))])
		switch g.rng.IntN(4) {
		case 0:
			sb.WriteByte('\n')
		case 1:
			sb.WriteByte('\r')
		default:
			sb.WriteByte(' ')
		}
	}
	return []byte(sb.String()[:n])
}

// BinaryProtocol emits a random mix of big-endian 32-bit and 16-bit
// values and single bytes.
func (g *Generator) BinaryProtocol(n int) []byte {
	out := make([]byte, n)
	for pos := 0; pos < n; {
		switch s := g.rng.IntN(5); {
		case s == 0 && pos+4 <= n:
			g.FillBytes(out[pos : pos+4])
			pos += 4
		case s == 1 && pos+2 <= n:
			g.FillBytes(out[pos : pos+2])
			pos += 2
		default:
			out[pos] = byte(g.rng.UintN(256))
			pos++
		}
	}
	return out
}

// Incremental returns start, start+1, ... wrapping after 0xFF.
func Incremental(n int, start byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = start + byte(i)
	}
	return out
}

// HTTPGet returns a minimal HTTP/1.1 GET request for host and path.
func HTTPGet(host, path string) []byte {
	if path == "" {
		path = "/"
	}
	return []byte("GET " + path + " HTTP/1.1\r\n" +
		"Host: " + host + "\r\n" +
		"User-Agent: pktforge/1.0\r\n" +
		"Accept: */*\r\n" +
		"Connection: close\r\n" +
		"\r\n")
}

// DNSQuery returns a standard recursive query for the A record of domain.
func DNSQuery(id uint16, domain string) ([]byte, error) {
	q := []byte{
		byte(id >> 8), byte(id), // transaction ID
		0x01, 0x00, // RD
		0x00, 0x01, // QDCOUNT
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	for _, label := range strings.Split(strings.TrimSuffix(domain, "."), ".") {
		if len(label) == 0 || len(label) > 63 {
			return nil, fmt.Errorf("dns label %q: %w", label, core.ErrInvalidField)
		}
		q = append(q, byte(len(label)))
		q = append(q, label...)
	}
	q = append(q, 0x00, 0x00, 0x01, 0x00, 0x01) // root, type A, class IN
	return q, nil
}
