package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-processor/internal/analysis"
	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/processor"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files...]",
	Short: "Recalculate taxes and report divergences",
	Long: `Recalculate item taxes and header totals from line items and
report where declared values diverge from the calculated ones.

Item ICMS and IPI values are corrected when they differ from
base x rate by more than the 0.05 tolerance. Header totals are
re-summed from items and compared field by field.

Examples:
  nfe-processor analyze nota.xml
  nfe-processor analyze *.xml -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	purpose, err := resolvePurpose()
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to analyze")
	}

	pipeline := processor.NewPipeline()
	reports := make([]*AnalysisReport, 0, len(files))

	for _, file := range files {
		reports = append(reports, analyzeFile(pipeline, file, purpose))
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}

	for _, r := range reports {
		if r.Error != "" {
			fmt.Printf("✗ %s: %s\n", r.File, r.Error)
			continue
		}
		if len(r.Discrepancies) == 0 {
			fmt.Printf("✓ %s: totals consistent\n", r.File)
			continue
		}
		fmt.Printf("⚠ %s: %d divergences\n", r.File, len(r.Discrepancies))
		for _, d := range r.Discrepancies {
			fmt.Printf("  - %s\n", d.Message)
		}
	}

	return nil
}

func analyzeFile(pipeline *processor.Pipeline, filePath string, purpose model.Purpose) *AnalysisReport {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := &AnalysisReport{File: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		report.Error = fmt.Sprintf("failed to read file: %v", err)
		return report
	}

	result := pipeline.Process(ctx, data, filepath.Base(filePath), purpose)
	if result.Error != nil {
		report.Error = result.Error.Error()
		return report
	}

	report.Invoice = result.Invoice
	if result.Analysis != nil {
		report.Calculated = result.Analysis.Calculated
		report.Discrepancies = result.Analysis.Discrepancies
		report.Findings = result.Analysis.Findings
	}

	return report
}

// AnalysisReport holds the recalculation result for a single file
type AnalysisReport struct {
	File          string                 `json:"file"`
	Invoice       *model.Invoice         `json:"invoice,omitempty"`
	Calculated    *model.Invoice         `json:"calculated,omitempty"`
	Discrepancies []analysis.Discrepancy `json:"discrepancies,omitempty"`
	Findings      model.FindingList      `json:"findings,omitempty"`
	Error         string                 `json:"error,omitempty"`
}
