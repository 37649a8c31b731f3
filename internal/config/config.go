// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/pktforge/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `pktforge:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Output  OutputConfig  `mapstructure:"output"`
	Payload PayloadConfig `mapstructure:"payload"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ─── Decoder ───

// DecoderConfig configures the L2-L4 decoder used by decode and inspect.
type DecoderConfig struct {
	Tunnel          TunnelConfig `mapstructure:"tunnel"`
	VerifyChecksums bool         `mapstructure:"verify_checksums"`
	MaxLayers       int          `mapstructure:"max_layers"`
}

// TunnelConfig controls tunnel decapsulation.
type TunnelConfig struct {
	VXLAN     bool   `mapstructure:"vxlan"`
	GRE       bool   `mapstructure:"gre"`
	IPIP      bool   `mapstructure:"ipip"`
	VXLANPort uint16 `mapstructure:"vxlan_port"`
}

// ─── Output ───

// OutputConfig controls how built and decoded packets are printed or saved.
type OutputConfig struct {
	Format  string `mapstructure:"format"`   // hex / text / yaml / json
	SnapLen int    `mapstructure:"snap_len"` // pcap snapshot length
}

// ─── Payload ───

// PayloadConfig seeds the payload generator. Seed 0 picks a random seed.
type PayloadConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings. Batch commands
// write the registry to Textfile on exit for the node exporter.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `pktforge: ...`.
type configRoot struct {
	PktForge GlobalConfig `mapstructure:"pktforge"`
}

// Load loads configuration from file. An empty path yields the defaults
// plus environment overrides. Env vars use the PKTFORGE_ prefix
// (e.g., PKTFORGE_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `pktforge.` key prefix maps to `PKTFORGE_` through the key replacer
	// (e.g., key "pktforge.log.level" → env "PKTFORGE_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PktForge

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "pktforge." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pktforge.log.level", "info")
	v.SetDefault("pktforge.log.format", "text")
	v.SetDefault("pktforge.log.outputs.file.enabled", false)
	v.SetDefault("pktforge.log.outputs.file.path", "/var/log/pktforge/pktforge.log")
	v.SetDefault("pktforge.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("pktforge.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("pktforge.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("pktforge.log.outputs.file.rotation.compress", true)

	// Decoder defaults
	v.SetDefault("pktforge.decoder.tunnel.vxlan", true)
	v.SetDefault("pktforge.decoder.tunnel.gre", true)
	v.SetDefault("pktforge.decoder.tunnel.ipip", true)
	v.SetDefault("pktforge.decoder.tunnel.vxlan_port", 4789)
	v.SetDefault("pktforge.decoder.verify_checksums", true)
	v.SetDefault("pktforge.decoder.max_layers", 16)

	// Output defaults
	v.SetDefault("pktforge.output.format", "text")
	v.SetDefault("pktforge.output.snap_len", 65535)

	v.SetDefault("pktforge.payload.seed", 0)

	// Metrics defaults
	v.SetDefault("pktforge.metrics.enabled", false)
	v.SetDefault("pktforge.metrics.textfile", "")
}

var validOutputFormats = map[string]bool{"hex": true, "text": true, "yaml": true, "json": true}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error): %w", cfg.Log.Level, core.ErrConfigInvalid)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text): %w", cfg.Log.Format, core.ErrConfigInvalid)
	}

	// ── Decoder ──
	if cfg.Decoder.MaxLayers < 0 {
		return fmt.Errorf("decoder.max_layers must not be negative: %w", core.ErrConfigInvalid)
	}
	if cfg.Decoder.MaxLayers == 0 {
		cfg.Decoder.MaxLayers = 16
	}
	if cfg.Decoder.Tunnel.VXLANPort == 0 {
		cfg.Decoder.Tunnel.VXLANPort = 4789
	}

	// ── Output ──
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)
	if !validOutputFormats[cfg.Output.Format] {
		return fmt.Errorf("invalid output format: %s (must be hex/text/yaml/json): %w", cfg.Output.Format, core.ErrConfigInvalid)
	}
	if cfg.Output.SnapLen <= 0 || cfg.Output.SnapLen > 262144 {
		cfg.Output.SnapLen = 65535
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Textfile == "" {
		return fmt.Errorf("metrics.textfile is required when metrics.enabled=true: %w", core.ErrConfigInvalid)
	}

	return nil
}
