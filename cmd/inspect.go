package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/core/decoder"
	"firestige.xyz/pktforge/internal/filter"
	"firestige.xyz/pktforge/internal/pcapio"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pcap>",
	Short: "Decode a pcap file and verify checksums",
	Long: `Decode every packet of a pcap file and print a summary of decoded layers,
decode errors, truncated packets and checksum mismatches.

Examples:
  pktforge inspect capture.pcap
  pktforge inspect capture.pcap -v             # one line per packet
  pktforge inspect capture.pcap --strict       # exit 1 on checksum mismatches
  pktforge inspect capture.pcap -l vxlan       # only VXLAN encapsulated packets
  tcpdump -ddd udp > udp.bpf && pktforge inspect capture.pcap --bpf udp.bpf`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspectCommand(args[0]); err != nil {
			exitWithError("inspect failed", err)
		}
	},
}

var (
	inspectVerbose bool
	inspectStrict  bool
	inspectBPFFile string
	inspectLayers  []string
)

func init() {
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false,
		"print one line per packet")
	inspectCmd.Flags().BoolVar(&inspectStrict, "strict", false,
		"fail when any checksum does not verify")
	inspectCmd.Flags().StringVar(&inspectBPFFile, "bpf", "",
		"file with a compiled filter as printed by tcpdump -ddd")
	inspectCmd.Flags().StringSliceVarP(&inspectLayers, "layer", "l", nil,
		"only count packets containing these headers (e.g. -l vxlan,tcp)")
}

// inspectSummary aggregates the results of decoding a capture.
type inspectSummary struct {
	Packets        int            `json:"packets" yaml:"packets"`
	Matched        int            `json:"matched" yaml:"matched"`
	DecodeErrors   int            `json:"decode_errors" yaml:"decode_errors"`
	Truncated      int            `json:"truncated" yaml:"truncated"`
	Tunneled       int            `json:"tunneled" yaml:"tunneled"`
	ChecksumErrors int            `json:"checksum_errors" yaml:"checksum_errors"`
	Layers         map[string]int `json:"layers" yaml:"layers"`
	// Passed holds, per filter in chain order, how many packets got past it.
	Passed         []filterPass   `json:"passed,omitempty" yaml:"passed,omitempty"`
}

type filterPass struct {
	Filter  string `json:"filter" yaml:"filter"`
	Packets int    `json:"packets" yaml:"packets"`
}

func filterName(f filter.Filter) string {
	switch f.(type) {
	case *filter.BPFFilter:
		return "bpf"
	case *filter.LayerFilter:
		return "layer"
	}
	return fmt.Sprintf("%T", f)
}

// countedChain interleaves a CounterFilter after every filter so the
// summary can report where packets were dropped.
func countedChain(handler func(p *filter.Packet), filters []filter.Filter) *filter.Chain {
	staged := make([]filter.Filter, 0, 2*len(filters))
	for _, f := range filters {
		staged = append(staged, f, filter.NewCounterFilter())
	}
	return filter.NewChain(handler, staged)
}

func filterPasses(chain *filter.Chain) []filterPass {
	var passes []filterPass
	var prev filter.Filter
	for _, f := range chain.GetFilters() {
		if c, ok := f.(*filter.CounterFilter); ok && prev != nil {
			passes = append(passes, filterPass{Filter: filterName(prev), Packets: c.GetCount()})
			continue
		}
		prev = f
	}
	return passes
}

func runInspectCommand(path string) error {
	cfg := globalCfg
	defer flushMetrics(cfg.Metrics)

	filters, err := inspectFilters(inspectBPFFile, inspectLayers)
	if err != nil {
		return err
	}

	r, err := pcapio.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	dec := decoder.NewStandardDecoder(decoderConfig(cfg.Decoder))
	sum, err := runInspect(dec, r, filters, inspectVerbose, os.Stdout)
	if err != nil {
		return err
	}
	if err := writeSummary(os.Stdout, cfg.Output.Format, sum); err != nil {
		return err
	}
	slog.Debug("capture inspected", "path", path, "packets", sum.Packets, "matched", sum.Matched)
	if inspectStrict && sum.ChecksumErrors > 0 {
		return fmt.Errorf("%d checksum mismatch(es)", sum.ChecksumErrors)
	}
	return nil
}

func inspectFilters(bpfFile string, layerNames []string) ([]filter.Filter, error) {
	var filters []filter.Filter
	if bpfFile != "" {
		text, err := os.ReadFile(bpfFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read bpf file %s: %w", bpfFile, err)
		}
		raw, err := filter.ParseBPF(string(text))
		if err != nil {
			return nil, err
		}
		f, err := filter.NewBPFFilter(raw)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(layerNames) > 0 {
		f, err := filter.NewLayerFilter(layerNames...)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// runInspect decodes every packet from r and accounts for those passing
// filters. In verbose mode a line per matching packet is written to out.
func runInspect(dec decoder.Decoder, r *pcapio.Reader, filters []filter.Filter, verbose bool, out io.Writer) (inspectSummary, error) {
	sum := inspectSummary{Layers: make(map[string]int)}
	chain := countedChain(func(p *filter.Packet) {
		sum.Matched++
		if p.Frame == nil {
			sum.DecodeErrors++
			if verbose {
				fmt.Fprintf(out, "#%d %d bytes: decode failed\n", sum.Packets, len(p.Raw.Data))
			}
			return
		}
		frame := p.Frame
		bad := frame.ChecksumErrors()
		sum.ChecksumErrors += bad
		if frame.Truncated {
			sum.Truncated++
		}
		if frame.Tunneled {
			sum.Tunneled++
		}
		names := make([]string, len(frame.Layers))
		for i, l := range frame.Layers {
			names[i] = l.Header.Kind().String()
			sum.Layers[names[i]]++
		}
		if verbose {
			fmt.Fprintf(out, "#%d %d bytes %s", sum.Packets, len(p.Raw.Data), strings.Join(names, "/"))
			if bad > 0 {
				fmt.Fprintf(out, " checksum-errors=%d", bad)
			}
			if frame.Truncated {
				fmt.Fprint(out, " truncated")
			}
			fmt.Fprintln(out)
		}
	}, filters)

	for {
		raw, err := r.Next()
		if err != nil {
			sum.Passed = filterPasses(chain)
			if err == io.EOF {
				return sum, nil
			}
			return sum, err
		}
		sum.Packets++
		frame, err := dec.Decode(raw)
		observeDecode("pcap", raw, frame, err)
		p := &filter.Packet{Raw: raw}
		if err == nil {
			p.Frame = &frame
		} else {
			slog.Debug("packet decode failed", "index", sum.Packets, "error", err)
		}
		chain.Filter(p)
	}
}

func writeSummary(out io.Writer, format string, s inspectSummary) error {
	if format == "yaml" || format == "json" {
		return encode(out, format, s)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "packets:         %d\n", s.Packets)
	fmt.Fprintf(&b, "matched:         %d\n", s.Matched)
	fmt.Fprintf(&b, "decode errors:   %d\n", s.DecodeErrors)
	fmt.Fprintf(&b, "truncated:       %d\n", s.Truncated)
	fmt.Fprintf(&b, "tunneled:        %d\n", s.Tunneled)
	fmt.Fprintf(&b, "checksum errors: %d\n", s.ChecksumErrors)
	for _, p := range s.Passed {
		fmt.Fprintf(&b, "passed %-8s %d\n", p.Filter+":", p.Packets)
	}
	kinds := make([]string, 0, len(s.Layers))
	for k := range s.Layers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-10s %d\n", k, s.Layers[k])
	}
	_, err := io.WriteString(out, b.String())
	return err
}
