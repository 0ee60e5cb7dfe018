package fiscallib

import (
	"context"
	"io"

	"github.com/rezonia/nfe-processor/internal/analysis"
	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/processor"
)

// ProcessResult represents the outcome of processing a single document
type ProcessResult struct {
	FileName          string
	Invoice           *model.Invoice
	Skipped           bool
	SkipReason        string
	MissingDuplicates bool
	Findings          model.FindingList
	Discrepancies     []analysis.Discrepancy
	Calculated        *model.Invoice
	Status            model.FiscalDocumentStatus
}

// BatchInput pairs a reader with its file name for batch processing
type BatchInput struct {
	Reader   io.Reader
	FileName string
}

// Processor processes fiscal documents through the full pipeline
type Processor struct {
	pipeline *processor.Pipeline
}

// NewProcessor creates a new fiscal document processor
func NewProcessor() *Processor {
	return &Processor{
		pipeline: processor.NewPipeline(),
	}
}

// Process parses, validates and analyzes a single XML document
func (p *Processor) Process(ctx context.Context, r io.Reader, fileName string, purpose Purpose) (*ProcessResult, error) {
	result := p.pipeline.ProcessReader(ctx, r, fileName, purpose)
	if result.Error != nil {
		return nil, result.Error
	}

	out := &ProcessResult{
		FileName:          result.FileName,
		Invoice:           result.Invoice,
		Skipped:           result.Skipped,
		SkipReason:        result.SkipReason,
		MissingDuplicates: result.MissingDuplicates,
		Findings:          result.Findings,
		Status:            result.Status,
	}
	if result.Analysis != nil {
		out.Discrepancies = result.Analysis.Discrepancies
		out.Calculated = result.Analysis.Calculated
	}
	return out, nil
}

// Validate parses the document and returns its validation record
func (p *Processor) Validate(ctx context.Context, r io.Reader, fileName string, purpose Purpose) (*FiscalDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &model.ParseError{Message: "failed to read input", Cause: err}
	}
	return p.pipeline.Document(ctx, data, fileName, purpose), nil
}

// ProcessBatch processes multiple documents concurrently
func (p *Processor) ProcessBatch(ctx context.Context, inputs []BatchInput, purpose Purpose) ([]*ProcessResult, error) {
	results := make([]*ProcessResult, len(inputs))
	errCh := make(chan error, len(inputs))

	for i, input := range inputs {
		go func(idx int, in BatchInput) {
			result, err := p.Process(ctx, in.Reader, in.FileName, purpose)
			if err != nil {
				errCh <- err
				return
			}
			results[idx] = result
			errCh <- nil
		}(i, input)
	}

	// Wait for all goroutines
	var firstErr error
	for range inputs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return results, firstErr
}
