package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/checksum"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Compute or verify Internet checksums",
	Long: `Compute or verify RFC 1071 Internet checksums over hex input.

Examples:
  pktforge checksum generic 0001f203f4f5f6f7
  pktforge checksum ipv4 450000730000400040110000c0a80001c0a800c7
  pktforge checksum verify 45000073000040004011b861c0a80001c0a800c7`,
}

func newChecksumSubcommand(use, short string, mode checksumMode) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <hex>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := parseHex(strings.Join(args, ""))
			if err != nil {
				exitWithError("checksum failed", err)
			}
			if err := runChecksum(mode, data, os.Stdout); err != nil {
				exitWithError("checksum failed", err)
			}
		},
	}
}

func init() {
	checksumCmd.AddCommand(
		newChecksumSubcommand("generic", "Checksum of the bytes as given", checksumGeneric),
		newChecksumSubcommand("ipv4", "IPv4 header checksum, ignoring the stored value", checksumIPv4),
		newChecksumSubcommand("verify", "Verify the checksum stored in an IPv4 header", checksumVerify),
	)
}

type checksumMode int

const (
	checksumGeneric checksumMode = iota
	checksumIPv4
	checksumVerify
)

func runChecksum(mode checksumMode, data []byte, out io.Writer) error {
	switch mode {
	case checksumGeneric:
		_, err := fmt.Fprintf(out, "0x%04x\n", checksum.Sum(data))
		return err
	case checksumIPv4:
		sum, err := checksum.IPv4Header(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "0x%04x\n", sum)
		return err
	case checksumVerify:
		want, err := checksum.IPv4Header(data)
		if err != nil {
			return err
		}
		if !checksum.VerifyIPv4(data) {
			fmt.Fprintf(out, "INVALID: stored 0x%02x%02x, computed 0x%04x\n", data[10], data[11], want)
			return fmt.Errorf("ipv4 checksum mismatch: %w", core.ErrInvalidHeader)
		}
		_, err = fmt.Fprintf(out, "VALID: 0x%04x\n", want)
		return err
	}
	return fmt.Errorf("unknown checksum mode %d", mode)
}
