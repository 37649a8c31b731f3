// Package pcapio reads and writes classic libpcap capture files.
package pcapio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktforge/internal/core"
)

// Reader yields the packets of a pcap stream as core.RawPacket values.
type Reader struct {
	r        *pcapgo.Reader
	closer   io.Closer
	linkType core.LinkType
}

// Open opens the capture file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the file header from r. Only Ethernet and raw IP link
// types are accepted.
func NewReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	lt, err := fromPcap(pr.LinkType())
	if err != nil {
		return nil, err
	}
	return &Reader{r: pr, linkType: lt}, nil
}

// LinkType returns the link type declared by the file header.
func (r *Reader) LinkType() core.LinkType { return r.linkType }

// Next returns the next packet, or io.EOF at the end of the stream.
func (r *Reader) Next() (core.RawPacket, error) {
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
		LinkType:   r.linkType,
	}, nil
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]core.RawPacket, error) {
	var pkts []core.RawPacket
	for {
		p, err := r.Next()
		if err == io.EOF {
			return pkts, nil
		}
		if err != nil {
			return pkts, err
		}
		pkts = append(pkts, p)
	}
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// DLT_IPV4 and DLT_IPV6 from the tcpdump link-type registry.
const (
	linkTypeIPv4 layers.LinkType = 228
	linkTypeIPv6 layers.LinkType = 229
)

func fromPcap(lt layers.LinkType) (core.LinkType, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return core.LinkTypeEthernet, nil
	case layers.LinkTypeRaw, linkTypeIPv4, linkTypeIPv6:
		return core.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("pcap link type %v: %w", lt, core.ErrUnsupportedProto)
}

func toPcap(lt core.LinkType) (layers.LinkType, error) {
	switch lt {
	case core.LinkTypeEthernet:
		return layers.LinkTypeEthernet, nil
	case core.LinkTypeRaw:
		return layers.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("link type %v: %w", lt, core.ErrUnsupportedProto)
}
