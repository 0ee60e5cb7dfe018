package server

import (
	"github.com/rezonia/nfe-processor/internal/analysis"
	"github.com/rezonia/nfe-processor/internal/model"
)

// ProcessResponse is the response for the process endpoint.
type ProcessResponse struct {
	Invoice           *model.Invoice             `json:"invoice"`
	Skipped           bool                       `json:"skipped"`
	SkipReason        string                     `json:"skip_reason,omitempty"`
	MissingDuplicates bool                       `json:"missing_duplicates"`
	Findings          model.FindingList          `json:"findings"`
	Status            model.FiscalDocumentStatus `json:"status"`
}

// ValidationResponse is the response for the validate endpoint.
type ValidationResponse struct {
	Status   model.FiscalDocumentStatus `json:"status"`
	Findings model.FindingList          `json:"findings"`
}

// AnalyzeResponse is the response for the analyze endpoint.
type AnalyzeResponse struct {
	Invoice       *model.Invoice         `json:"invoice"`
	Calculated    *model.Invoice         `json:"calculated"`
	Discrepancies []analysis.Discrepancy `json:"discrepancies"`
	Findings      model.FindingList      `json:"findings"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
