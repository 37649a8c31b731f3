package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/decoder"
	"firestige.xyz/pktforge/internal/core/header"
	"firestige.xyz/pktforge/internal/metrics"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode hex encoded frames into headers",
	Long: `Decode one or more hex encoded frames and print every header with its
fields and checksum status.

Hex may contain whitespace and ':' separators. With --file, every non-empty
line of the file is one frame.

Examples:
  pktforge decode 001122334455aabbccddeeff0800450000...
  pktforge decode --link raw 4500001c...
  pktforge decode -f frames.txt -o yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDecodeCommand(args); err != nil {
			exitWithError("decode failed", err)
		}
	},
}

var (
	decodeFile string
	decodeLink string
)

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "",
		"file with one hex frame per line")
	decodeCmd.Flags().StringVar(&decodeLink, "link", "ethernet",
		"outermost header: ethernet or raw (IPv4/IPv6)")
}

func runDecodeCommand(args []string) error {
	cfg := globalCfg
	defer flushMetrics(cfg.Metrics)

	inputs := args
	if decodeFile != "" {
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", decodeFile, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				inputs = append(inputs, line)
			}
		}
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no frames given")
	}
	lt, err := parseLinkType(decodeLink)
	if err != nil {
		return err
	}

	dec := decoder.NewStandardDecoder(decoderConfig(cfg.Decoder))
	for _, in := range inputs {
		data, err := parseHex(in)
		if err != nil {
			return err
		}
		raw := core.RawPacket{
			Data:       data,
			CaptureLen: uint32(len(data)),
			OrigLen:    uint32(len(data)),
			LinkType:   lt,
		}
		if err := runDecode(dec, raw, cfg.Output.Format, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

func parseLinkType(s string) (core.LinkType, error) {
	switch strings.ToLower(s) {
	case "ethernet", "eth", "en10mb":
		return core.LinkTypeEthernet, nil
	case "raw", "ip":
		return core.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("link type %q: %w", s, core.ErrUnsupportedProto)
}

// parseHex accepts an optional 0x prefix, whitespace and ':' separators.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', ':':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// layerDump is the printable form of one decoded header.
type layerDump struct {
	Layer    string        `json:"layer" yaml:"layer"`
	Offset   int           `json:"offset" yaml:"offset"`
	Length   int           `json:"length" yaml:"length"`
	Checksum string        `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Fields   []header.Attr `json:"fields" yaml:"fields"`
}

// frameDump is the printable form of a decoded frame.
type frameDump struct {
	Length    int         `json:"length" yaml:"length"`
	Tunneled  bool        `json:"tunneled" yaml:"tunneled"`
	Truncated bool        `json:"truncated" yaml:"truncated"`
	Layers    []layerDump `json:"layers" yaml:"layers"`
	Payload   string      `json:"payload,omitempty" yaml:"payload,omitempty"`
}

func dumpFrame(raw core.RawPacket, f decoder.Frame) frameDump {
	d := frameDump{
		Length:    len(raw.Data),
		Tunneled:  f.Tunneled,
		Truncated: f.Truncated,
		Layers:    make([]layerDump, 0, len(f.Layers)),
		Payload:   hex.EncodeToString(f.Payload),
	}
	for _, l := range f.Layers {
		ld := layerDump{
			Layer:  l.Header.Kind().String(),
			Offset: l.Offset,
			Length: len(l.Header.Bytes()),
			Fields: l.Header.Attrs(),
		}
		if l.Checksum != decoder.ChecksumNotChecked {
			ld.Checksum = l.Checksum.String()
		}
		d.Layers = append(d.Layers, ld)
	}
	return d
}

func runDecode(dec decoder.Decoder, raw core.RawPacket, format string, out io.Writer) error {
	frame, err := dec.Decode(raw)
	observeDecode("hex", raw, frame, err)
	if err != nil {
		return err
	}
	d := dumpFrame(raw, frame)
	if format == "yaml" || format == "json" {
		return encode(out, format, d)
	}
	return writeFrameText(out, d)
}

func writeFrameText(out io.Writer, d frameDump) error {
	var b strings.Builder
	fmt.Fprintf(&b, "frame: %d bytes", d.Length)
	if d.Tunneled {
		b.WriteString(", tunneled")
	}
	if d.Truncated {
		b.WriteString(", truncated")
	}
	b.WriteByte('\n')
	for _, l := range d.Layers {
		fmt.Fprintf(&b, "  %s @%d (%d bytes)", l.Layer, l.Offset, l.Length)
		if l.Checksum != "" {
			fmt.Fprintf(&b, " checksum=%s", l.Checksum)
		}
		b.WriteByte('\n')
		for _, a := range l.Fields {
			fmt.Fprintf(&b, "    %-16s %s\n", a.Key, a.Value)
		}
	}
	if d.Payload != "" {
		fmt.Fprintf(&b, "  payload (%d bytes) %s\n", len(d.Payload)/2, d.Payload)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

// observeDecode records decoder metrics for one packet.
func observeDecode(source string, raw core.RawPacket, f decoder.Frame, err error) {
	metrics.PacketsDecodedTotal.WithLabelValues(source).Inc()
	metrics.PacketSizeBytes.WithLabelValues("decode").Observe(float64(len(raw.Data)))
	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues(source).Inc()
		return
	}
	for _, l := range f.Layers {
		kind := l.Header.Kind().String()
		metrics.LayersDecodedTotal.WithLabelValues(kind).Inc()
		if l.Checksum == decoder.ChecksumInvalid {
			metrics.ChecksumMismatchesTotal.WithLabelValues(kind).Inc()
		}
	}
	if f.Truncated {
		metrics.TruncatedPacketsTotal.Inc()
	}
}
