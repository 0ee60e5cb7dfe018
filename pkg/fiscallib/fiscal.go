// Package fiscallib provides a public API for processing Brazilian
// fiscal documents (NFe and NFCe).
//
// This package exposes the core types and interfaces for parsing XML
// documents, validating them against SEFAZ rules, and comparing
// declared totals against recalculated values.
//
// Example usage:
//
//	proc := fiscallib.NewProcessor()
//	result, err := proc.Process(ctx, reader, "nota.xml", fiscallib.PurposeResale)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Invoice.TotalValue)
package fiscallib

import "github.com/rezonia/nfe-processor/internal/model"

// Re-export core types for public API
type (
	Invoice              = model.Invoice
	InvoiceItem          = model.InvoiceItem
	Installment          = model.Installment
	Finding              = model.Finding
	FindingList          = model.FindingList
	Severity             = model.Severity
	Purpose              = model.Purpose
	PaymentStatus        = model.PaymentStatus
	FiscalDocument       = model.FiscalDocument
	FiscalDocumentStatus = model.FiscalDocumentStatus
)

// Re-export acquisition purposes
const (
	PurposeResale      = model.PurposeResale
	PurposeConsumption = model.PurposeConsumption
)

// Re-export finding severities
const (
	SeverityInfo    = model.SeverityInfo
	SeverityWarning = model.SeverityWarning
	SeverityError   = model.SeverityError
)

// Re-export document statuses
const (
	DocumentPending = model.DocumentPending
	DocumentValid   = model.DocumentValid
	DocumentInvalid = model.DocumentInvalid
	DocumentWarning = model.DocumentWarning
)

// Re-export error types
type ParseError = model.ParseError
