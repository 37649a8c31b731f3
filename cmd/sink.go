package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// PacketSink receives built packets.
type PacketSink interface {
	WritePacket(ts time.Time, data []byte) error
	Close() error
}

// builtPacket is the yaml/json rendering of one built packet.
type builtPacket struct {
	Template string `json:"template" yaml:"template"`
	Index    int    `json:"index" yaml:"index"`
	Length   int    `json:"length" yaml:"length"`
	Hex      string `json:"hex" yaml:"hex"`
}

// streamSink prints packets to out in one of the output formats.
type streamSink struct {
	out    io.Writer
	format string
	name   string
	n      int
}

func newStreamSink(out io.Writer, format, name string) (*streamSink, error) {
	switch format {
	case "hex", "text", "yaml", "json":
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &streamSink{out: out, format: format, name: name}, nil
}

func (s *streamSink) WritePacket(_ time.Time, data []byte) error {
	idx := s.n
	s.n++
	switch s.format {
	case "hex":
		_, err := fmt.Fprintln(s.out, hex.EncodeToString(data))
		return err
	case "text":
		_, err := fmt.Fprintf(s.out, "# %s packet %d, %d bytes\n%s", s.name, idx, len(data), hex.Dump(data))
		return err
	}
	return encode(s.out, s.format, builtPacket{
		Template: s.name,
		Index:    idx,
		Length:   len(data),
		Hex:      hex.EncodeToString(data),
	})
}

func (s *streamSink) Close() error { return nil }

// encode writes v as one JSON line or one YAML document.
func encode(out io.Writer, format string, v any) error {
	switch format {
	case "json":
		return json.NewEncoder(out).Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, "---\n"); err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	return fmt.Errorf("format %q cannot encode structured output", format)
}
