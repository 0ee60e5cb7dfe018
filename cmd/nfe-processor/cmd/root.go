package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-processor/internal/model"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	purposeFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "nfe-processor",
	Short: "Process Brazilian fiscal documents (NFe and NFCe)",
	Long: `NFe Processor is a CLI tool for ingesting Brazilian fiscal XML documents.

Supports:
  - NFe (model 55) and NFCe (model 65) XML layouts
  - SEFAZ rule validation: access key, signature digest, totals formula,
    CFOP/NCM item checks, date ordering
  - Tax recalculation with declared-vs-calculated discrepancy reports

Examples:
  # Process a single XML file
  nfe-processor process nota.xml

  # Process as a consumption purchase
  nfe-processor process nota.xml --purpose CONSUMPTION

  # Validate files against SEFAZ rules
  nfe-processor validate *.xml

  # Recalculate totals and report divergences
  nfe-processor analyze nota.xml`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVarP(&purposeFlag, "purpose", "p", string(model.PurposeResale), "Acquisition purpose (RESALE or CONSUMPTION)")
}

func resolvePurpose() (model.Purpose, error) {
	switch purposeFlag {
	case string(model.PurposeResale):
		return model.PurposeResale, nil
	case string(model.PurposeConsumption):
		return model.PurposeConsumption, nil
	default:
		return "", fmt.Errorf("invalid purpose %q, expected RESALE or CONSUMPTION", purposeFlag)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
