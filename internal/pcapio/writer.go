package pcapio

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktforge/internal/core"
)

// DefaultSnapLen is used when a zero snap length is given.
const DefaultSnapLen = 65535

// Writer appends packets to a pcap stream. Packets longer than the snap
// length are cut, keeping their original length in the record header.
type Writer struct {
	w        *pcapgo.Writer
	closer   io.Closer
	snapLen  uint32
	linkType core.LinkType
}

// Create truncates or creates the file at path and writes its header.
func Create(path string, lt core.LinkType, snapLen uint32) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file %s: %w", path, err)
	}
	w, err := NewWriter(f, lt, snapLen)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer, lt core.LinkType, snapLen uint32) (*Writer, error) {
	plt, err := toPcap(lt)
	if err != nil {
		return nil, err
	}
	if snapLen == 0 {
		snapLen = DefaultSnapLen
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, plt); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, snapLen: snapLen, linkType: lt}, nil
}

// WritePacket writes one record stamped with ts.
func (w *Writer) WritePacket(ts time.Time, data []byte) error {
	caplen := len(data)
	if caplen > int(w.snapLen) {
		caplen = int(w.snapLen)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: caplen,
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data[:caplen]); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// WriteRaw writes p, keeping its original length. A packet whose link
// type differs from the file's is rejected.
func (w *Writer) WriteRaw(p core.RawPacket) error {
	if p.LinkType != w.linkType {
		return fmt.Errorf("packet link type %v in %v file: %w", p.LinkType, w.linkType, core.ErrUnsupportedProto)
	}
	data := p.Data
	if len(data) > int(w.snapLen) {
		data = data[:w.snapLen]
	}
	orig := int(p.OrigLen)
	if orig < len(data) {
		orig = len(data)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: len(data),
		Length:        orig,
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Close closes the file opened by Create.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}
