package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/processor"
)

var (
	outputFile string
	timeout    time.Duration
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process fiscal XML files",
	Long: `Process one or more fiscal XML files and extract structured data.

The extraction flow:
  1. Parse the XML (NFe or NFCe layout, any namespace prefix)
  2. Validate against SEFAZ rules
  3. Recalculate taxes and totals from items

Examples:
  nfe-processor process nota.xml
  nfe-processor process *.xml -o results.json
  nfe-processor process notas/ -f table
  nfe-processor process nota.xml --purpose CONSUMPTION`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	processCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Processing timeout per file")
}

func runProcess(cmd *cobra.Command, args []string) error {
	purpose, err := resolvePurpose()
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to process")
	}

	printVerbose("Found %d files to process\n", len(files))

	pipeline := processor.NewPipeline()

	results := make([]*FileResult, 0, len(files))
	for _, file := range files {
		printVerbose("Processing: %s\n", file)

		result := processFile(pipeline, file, purpose)
		results = append(results, result)

		if result.Error != "" {
			printVerbose("  Error: %s\n", result.Error)
		} else {
			printVerbose("  Status: %s, Findings: %d\n", result.Status, len(result.Findings))
		}
	}

	return outputResults(results)
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}

			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
		} else {
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil {
					continue
				}
				if !info.IsDir() {
					files = append(files, match)
				}
			}
		}
	}

	return files, nil
}

func processFile(pipeline *processor.Pipeline, filePath string, purpose model.Purpose) *FileResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := &FileResult{
		File: filePath,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	pipelineResult := pipeline.Process(ctx, data, filepath.Base(filePath), purpose)
	if pipelineResult.Error != nil {
		result.Error = pipelineResult.Error.Error()
		result.Status = model.DocumentInvalid
		return result
	}

	result.Invoice = pipelineResult.Invoice
	result.Skipped = pipelineResult.Skipped
	result.SkipReason = pipelineResult.SkipReason
	result.MissingDuplicates = pipelineResult.MissingDuplicates
	result.Findings = pipelineResult.Findings
	result.Status = pipelineResult.Status
	if pipelineResult.Analysis != nil {
		result.Discrepancies = discrepancyMessages(pipelineResult)
	}

	return result
}

func discrepancyMessages(r *processor.Result) []string {
	msgs := make([]string, 0, len(r.Analysis.Discrepancies))
	for _, d := range r.Analysis.Discrepancies {
		msgs = append(msgs, d.Message)
	}
	return msgs
}

func outputResults(results []*FileResult) error {
	var writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case "table":
		return outputTable(writer, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputTable(w *os.File, results []*FileResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNUMBER\tSERIES\tDATE\tTOTAL\tSTATUS\tFINDINGS")
	fmt.Fprintln(tw, "----\t------\t------\t----\t-----\t------\t--------")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}

		if r.Invoice != nil {
			date := ""
			if !r.Invoice.IssueDate.IsZero() {
				date = r.Invoice.IssueDate.Format("2006-01-02")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				r.File,
				r.Invoice.Number,
				r.Invoice.Series,
				date,
				r.Invoice.TotalValue.String(),
				r.Status,
				len(r.Findings),
			)
		}
	}

	return tw.Flush()
}

// FileResult holds the result of processing a single file
type FileResult struct {
	File              string                     `json:"file"`
	Invoice           *model.Invoice             `json:"invoice,omitempty"`
	Skipped           bool                       `json:"skipped,omitempty"`
	SkipReason        string                     `json:"skip_reason,omitempty"`
	MissingDuplicates bool                       `json:"missing_duplicates,omitempty"`
	Findings          model.FindingList          `json:"findings,omitempty"`
	Discrepancies     []string                   `json:"discrepancies,omitempty"`
	Status            model.FiscalDocumentStatus `json:"status,omitempty"`
	Error             string                     `json:"error,omitempty"`
}
