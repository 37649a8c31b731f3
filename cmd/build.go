package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/config"
	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
	"firestige.xyz/pktforge/internal/forge"
	"firestige.xyz/pktforge/internal/pcapio"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build packets from a template",
	Long: `Build packets from a YAML or JSON layer template.

Unset next-protocol fields are filled from the following layer, lengths and
checksums are computed unless the template sets raw: true, and explicit
values for computed fields are written as given.

Examples:
  pktforge build -f syn.yaml                  # hex, one packet per line
  pktforge build -f syn.yaml -o text          # hex dump
  pktforge build -f vxlan.json -n 100 -w out.pcap`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBuildCommand(); err != nil {
			exitWithError("build failed", err)
		}
	},
}

var (
	buildTemplateFile string
	buildPcapFile     string
	buildCount        int
)

func init() {
	buildCmd.Flags().StringVarP(&buildTemplateFile, "file", "f", "",
		"packet template file (required)")
	buildCmd.Flags().StringVarP(&buildPcapFile, "pcap", "w", "",
		"write packets to this pcap file instead of stdout")
	buildCmd.Flags().IntVarP(&buildCount, "count", "n", 0,
		"number of packets (overrides the template)")
	buildCmd.MarkFlagRequired("file")
}

func runBuildCommand() error {
	cfg := globalCfg
	defer flushMetrics(cfg.Metrics)

	tmpl, err := config.LoadTemplate(buildTemplateFile)
	if err != nil {
		return err
	}
	if buildCount > 0 {
		tmpl.Count = buildCount
	}

	var sink PacketSink
	if buildPcapFile != "" {
		lt, err := linkTypeOf(tmpl)
		if err != nil {
			return err
		}
		w, err := pcapio.Create(buildPcapFile, lt, uint32(cfg.Output.SnapLen))
		if err != nil {
			return err
		}
		sink = w
	} else {
		s, err := newStreamSink(os.Stdout, cfg.Output.Format, tmpl.Name)
		if err != nil {
			return err
		}
		sink = s
	}

	f := forge.New(newGenerator(cfg.Payload), slog.Default())
	n, err := runBuild(f, tmpl, sink, time.Now())
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Info("packets built", "template", tmpl.Name, "count", n, "pcap", buildPcapFile)
	return nil
}

// runBuild forges tmpl and hands every packet to sink, stamping them one
// microsecond apart from start.
func runBuild(f *forge.Forger, tmpl *config.Template, sink PacketSink, start time.Time) (int, error) {
	pkts, err := f.Forge(tmpl)
	if err != nil {
		return 0, err
	}
	for i, p := range pkts {
		if err := sink.WritePacket(start.Add(time.Duration(i)*time.Microsecond), p); err != nil {
			return i, fmt.Errorf("packet %d: %w", i, err)
		}
	}
	return len(pkts), nil
}

// linkTypeOf picks the pcap link type from the template's first layer.
func linkTypeOf(tmpl *config.Template) (core.LinkType, error) {
	if len(tmpl.Layers) == 0 {
		return 0, core.ErrEmptyTemplate
	}
	k, err := header.ParseKind(tmpl.Layers[0].Type)
	if err != nil {
		return 0, err
	}
	switch k {
	case header.KindEthernet:
		return core.LinkTypeEthernet, nil
	case header.KindIPv4, header.KindIPv6:
		return core.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("a %s first layer has no pcap link type: %w", k, core.ErrUnsupportedProto)
}
