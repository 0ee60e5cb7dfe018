package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/processor"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate fiscal XML files against SEFAZ rules",
	Long: `Validate one or more fiscal XML files.

Checks performed:
  - Access key presence, length and document model (55 or 65)
  - Digital signature digest consistency
  - SEFAZ totals formula (vProd - vDesc + vIPI + vST + vFrete + vSeg + vOutro)
  - CFOP direction against issuer/recipient states
  - NCM code length
  - Issue vs dispatch date ordering

Examples:
  nfe-processor validate nota.xml
  nfe-processor validate *.xml -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	purpose, err := resolvePurpose()
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	pipeline := processor.NewPipeline()
	docs := make([]*model.FiscalDocument, 0, len(files))
	allValid := true

	for _, file := range files {
		doc := validateFile(pipeline, file, purpose)
		docs = append(docs, doc)

		if doc.Status == model.DocumentInvalid {
			allValid = false
		}
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(docs); err != nil {
			return err
		}
	} else {
		for _, d := range docs {
			switch d.Status {
			case model.DocumentValid:
				fmt.Printf("✓ %s: VALID\n", d.FileName)
			case model.DocumentWarning:
				fmt.Printf("⚠ %s: WARNING\n", d.FileName)
			default:
				fmt.Printf("✗ %s: %s\n", d.FileName, d.Status)
			}
			for _, f := range d.Findings {
				fmt.Printf("  [%s] %s\n", f.Severity, f.Message)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}

	return nil
}

func validateFile(pipeline *processor.Pipeline, filePath string, purpose model.Purpose) *model.FiscalDocument {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return &model.FiscalDocument{
			FileName: filepath.Base(filePath),
			Status:   model.DocumentInvalid,
			Findings: model.FindingList{{
				Code:     model.CodeEmptyDocument,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("failed to read file: %v", err),
			}},
		}
	}

	return pipeline.Document(ctx, data, filepath.Base(filePath), purpose)
}
