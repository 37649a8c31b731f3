// Package filter selects packets for inspection.
package filter

import (
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/decoder"
	"firestige.xyz/pktforge/internal/core/header"
)

// Packet is what filters see: the captured bytes and, when decoding
// succeeded, the decoded frame.
type Packet struct {
	Raw   core.RawPacket
	Frame *decoder.Frame
}

// Filter passes p on by calling chain.Filter, or drops it by returning.
type Filter interface {
	Filter(p *Packet, chain *Chain)
}

// CounterFilter counts the packets reaching it and passes them all on.
type CounterFilter struct {
	count int
}

func NewCounterFilter() *CounterFilter {
	return &CounterFilter{count: 0}
}

func (f *CounterFilter) Filter(p *Packet, chain *Chain) {
	f.count++
	chain.Filter(p)
}

func (f *CounterFilter) GetCount() int {
	return f.count
}

// LayerFilter passes decoded packets containing every listed header kind.
type LayerFilter struct {
	kinds []header.Kind
}

// NewLayerFilter parses names such as "vxlan" or "tcp".
func NewLayerFilter(names ...string) (*LayerFilter, error) {
	f := &LayerFilter{kinds: make([]header.Kind, 0, len(names))}
	for _, n := range names {
		k, err := header.ParseKind(n)
		if err != nil {
			return nil, err
		}
		f.kinds = append(f.kinds, k)
	}
	return f, nil
}

func (f *LayerFilter) Filter(p *Packet, chain *Chain) {
	if p.Frame == nil {
		return
	}
	for _, want := range f.kinds {
		found := false
		for _, l := range p.Frame.Layers {
			if l.Header.Kind() == want {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}
	chain.Filter(p)
}
