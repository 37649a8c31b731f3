// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/config"
	"firestige.xyz/pktforge/internal/core/decoder"
	"firestige.xyz/pktforge/internal/log"
	"firestige.xyz/pktforge/internal/metrics"
	"firestige.xyz/pktforge/internal/payload"
)

var (
	// Global flags
	configFile   string
	logLevel     string
	outputFormat string

	globalCfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pktforge",
	Short: "pktforge - build, decode and verify protocol headers",
	Long: `pktforge builds network packets from layer templates and decodes raw frames
back into their headers.

Supported headers: Ethernet, 802.1Q VLAN, MPLS, ARP, IPv4, IPv6, TCP, UDP,
ICMPv4, ICMPv6, GRE and VXLAN. Lengths and checksums are computed on request,
so malformed packets can be built on purpose.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if outputFormat != "" {
			cfg.Output.Format = outputFormat
		}
		if err := log.Init(cfg.Log, os.Stderr); err != nil {
			return err
		}
		globalCfg = cfg
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "",
		"output format: hex, text, yaml or json")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(checksumCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func decoderConfig(c config.DecoderConfig) decoder.Config {
	return decoder.Config{
		Tunnel: decoder.TunnelConfig{
			VXLAN:     c.Tunnel.VXLAN,
			GRE:       c.Tunnel.GRE,
			IPIP:      c.Tunnel.IPIP,
			VXLANPort: c.Tunnel.VXLANPort,
		},
		VerifyChecksums: c.VerifyChecksums,
		MaxLayers:       c.MaxLayers,
	}
}

// newGenerator seeds from cfg, or randomly when the seed is 0.
func newGenerator(cfg config.PayloadConfig) *payload.Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	slog.Debug("payload generator seeded", "seed", seed)
	return payload.NewSeeded(seed)
}

// flushMetrics writes the metrics textfile when enabled.
func flushMetrics(cfg config.MetricsConfig) {
	if !cfg.Enabled {
		return
	}
	if err := metrics.Flush(cfg.Textfile); err != nil {
		slog.Warn("failed to write metrics textfile", "path", cfg.Textfile, "error", err)
	}
}
