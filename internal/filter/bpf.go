package filter

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/pktforge/internal/core"
)

// ParseBPF reads a compiled filter in the decimal form printed by
// `tcpdump -ddd`: an instruction count, then one "code jt jf k" line per
// instruction. Lines may also be separated by commas.
func ParseBPF(text string) ([]bpf.RawInstruction, error) {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' })
	var fields [][]string
	for _, l := range lines {
		if f := strings.Fields(l); len(f) > 0 {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty bpf program: %w", core.ErrInvalidField)
	}
	if len(fields[0]) != 1 {
		return nil, fmt.Errorf("bpf program must start with an instruction count: %w", core.ErrInvalidField)
	}
	n, err := strconv.Atoi(fields[0][0])
	if err != nil || n != len(fields)-1 {
		return nil, fmt.Errorf("bpf instruction count %q does not match %d lines: %w",
			fields[0][0], len(fields)-1, core.ErrInvalidField)
	}

	raw := make([]bpf.RawInstruction, n)
	for i, f := range fields[1:] {
		if len(f) != 4 {
			return nil, fmt.Errorf("bpf line %d: want 4 fields, got %d: %w", i+1, len(f), core.ErrInvalidField)
		}
		var v [4]uint64
		for j, s := range f {
			bits := 8
			switch j {
			case 0:
				bits = 16
			case 3:
				bits = 32
			}
			v[j], err = strconv.ParseUint(s, 0, bits)
			if err != nil {
				return nil, fmt.Errorf("bpf line %d: %w: %v", i+1, core.ErrInvalidField, err)
			}
		}
		raw[i] = bpf.RawInstruction{Op: uint16(v[0]), Jt: uint8(v[1]), Jf: uint8(v[2]), K: uint32(v[3])}
	}
	return raw, nil
}

// BPFFilter runs a classic BPF program over the captured bytes and passes
// packets the program accepts.
type BPFFilter struct {
	vm *bpf.VM
}

func NewBPFFilter(raw []bpf.RawInstruction) (*BPFFilter, error) {
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("bpf program contains unknown instructions: %w", core.ErrInvalidField)
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("invalid bpf program: %w", err)
	}
	return &BPFFilter{vm: vm}, nil
}

func (f *BPFFilter) Filter(p *Packet, chain *Chain) {
	n, err := f.vm.Run(p.Raw.Data)
	if err != nil || n == 0 {
		return
	}
	chain.Filter(p)
}
