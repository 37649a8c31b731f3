// Package forge turns packet templates into wire bytes.
package forge

import (
	"fmt"
	"log/slog"

	"firestige.xyz/pktforge/internal/config"
	"firestige.xyz/pktforge/internal/core/header"
	"firestige.xyz/pktforge/internal/core/packet"
	"firestige.xyz/pktforge/internal/metrics"
	"firestige.xyz/pktforge/internal/payload"
)

// Blueprint is a compiled template. Build reuses the same header values,
// so a Blueprint must not be shared between goroutines.
type Blueprint struct {
	name    string
	layers  []layer
	headers []header.Header
	payload config.PayloadSection
	fixed   []byte // decoded hex or text payload, nil for generated payloads
	raw     bool
}

// Compile validates t and resolves every layer's fields into headers.
// Next-protocol fields left unset are filled from the following layer.
func Compile(t *config.Template) (*Blueprint, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	bp := &Blueprint{
		name:    t.Name,
		layers:  make([]layer, len(t.Layers)),
		headers: make([]header.Header, len(t.Layers)),
		payload: t.Payload,
		raw:     t.Raw,
	}
	kinds := make([]header.Kind, len(t.Layers))
	for i, lc := range t.Layers {
		k, err := header.ParseKind(lc.Type)
		if err != nil {
			return nil, fmt.Errorf("layer[%d]: %w", i, err)
		}
		l, err := compilers[k](lc.Fields)
		if err != nil {
			return nil, fmt.Errorf("layer[%d] %s: %w", i, k, err)
		}
		kinds[i] = k
		bp.layers[i] = l
		bp.headers[i] = l.h
	}
	for i, l := range bp.layers {
		if l.link != nil && i+1 < len(kinds) {
			l.link(kinds[i+1])
		}
	}

	switch {
	case t.Payload.Hex != "":
		b, err := t.Payload.Bytes()
		if err != nil {
			return nil, err
		}
		bp.fixed = b
	case t.Payload.Text != "":
		bp.fixed = []byte(t.Payload.Text)
	case t.Payload.Kind == "":
		bp.fixed = []byte{}
	}
	return bp, nil
}

// Name returns the template name.
func (bp *Blueprint) Name() string { return bp.name }

// Headers returns the compiled headers, outermost first.
func (bp *Blueprint) Headers() []header.Header { return bp.headers }

// Build renders one packet. gen is only consulted for generated payloads
// and may be nil otherwise.
func (bp *Blueprint) Build(gen *payload.Generator) ([]byte, error) {
	data := bp.fixed
	if data == nil {
		if gen == nil {
			return nil, fmt.Errorf("payload kind %q needs a generator", bp.payload.Kind)
		}
		var err error
		data, err = gen.Generate(payload.Spec{
			Kind:   payload.Kind(bp.payload.Kind),
			Size:   bp.payload.Size,
			Start:  bp.payload.Start,
			Chars:  bp.payload.Chars,
			Period: bp.payload.Period,
			Host:   bp.payload.Host,
			Path:   bp.payload.Path,
			Domain: bp.payload.Domain,
			ID:     bp.payload.ID,
		})
		if err != nil {
			return nil, err
		}
	}
	if !bp.raw {
		if err := packet.Finalize(bp.headers, data); err != nil {
			return nil, err
		}
	}
	for i, l := range bp.layers {
		if l.fix == nil {
			continue
		}
		if err := l.fix(bp.raw); err != nil {
			return nil, fmt.Errorf("layer[%d] %s: %w", i, l.h.Kind(), err)
		}
	}
	return packet.Build(bp.headers, data), nil
}

// Forger builds packets from templates and records build metrics.
type Forger struct {
	gen *payload.Generator
	log *slog.Logger
}

// New returns a Forger. A nil logger falls back to slog.Default.
func New(gen *payload.Generator, logger *slog.Logger) *Forger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forger{gen: gen, log: logger}
}

// Forge compiles t and builds t.Count packets.
func (f *Forger) Forge(t *config.Template) ([][]byte, error) {
	bp, err := Compile(t)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, t.Count)
	for i := 0; i < t.Count; i++ {
		pkt, err := bp.Build(f.gen)
		if err != nil {
			return nil, fmt.Errorf("template %q packet %d: %w", t.Name, i, err)
		}
		metrics.PacketsBuiltTotal.WithLabelValues(t.Name).Inc()
		metrics.BytesBuiltTotal.WithLabelValues(t.Name).Add(float64(len(pkt)))
		metrics.PacketSizeBytes.WithLabelValues("build").Observe(float64(len(pkt)))
		out = append(out, pkt)
	}
	f.log.Debug("template forged",
		"template", t.Name,
		"layers", len(t.Layers),
		"packets", len(out),
		"raw", t.Raw)
	return out, nil
}
