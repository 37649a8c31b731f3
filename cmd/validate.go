package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/pktforge/internal/config"
	"firestige.xyz/pktforge/internal/forge"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a packet template",
	Long: `Validate a packet template (JSON or YAML) without building packets.

Layer types, field names and field values are all checked.
File format is auto-detected from extension (.json, .yaml, .yml).

Examples:
  pktforge validate -f syn.json
  pktforge validate -f vxlan.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(validateTemplateFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateTemplateFile string

func init() {
	validateCmd.Flags().StringVarP(&validateTemplateFile, "file", "f", "",
		"template file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	tmpl, err := config.LoadTemplate(path)
	if err != nil {
		return err
	}
	bp, err := forge.Compile(tmpl)
	if err != nil {
		return err
	}

	kinds := make([]string, len(bp.Headers()))
	for i, h := range bp.Headers() {
		kinds[i] = h.Kind().String()
	}
	_, err = fmt.Fprintf(out, "VALID: template %q: %d layer(s) [%s], %d packet(s)\n",
		tmpl.Name,
		len(kinds),
		strings.Join(kinds, " "),
		tmpl.Count,
	)
	return err
}
