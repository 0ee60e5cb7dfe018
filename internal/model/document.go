package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalDocumentStatus is the terminal state assigned to a document
// after validation. Pending is only the pre-validation placeholder.
type FiscalDocumentStatus string

const (
	DocumentPending FiscalDocumentStatus = "PENDING"
	DocumentValid   FiscalDocumentStatus = "VALID"
	DocumentInvalid FiscalDocumentStatus = "INVALID"
	DocumentWarning FiscalDocumentStatus = "WARNING"
)

// StatusFromFindings derives the document status from the maximum
// finding severity: error -> Invalid, anything at all -> Warning,
// nothing -> Valid.
func StatusFromFindings(findings FindingList) FiscalDocumentStatus {
	switch findings.MaxSeverity() {
	case SeverityError:
		return DocumentInvalid
	case SeverityWarning, SeverityInfo:
		return DocumentWarning
	default:
		return DocumentValid
	}
}

// FiscalDocument is the tracking record produced by the validation
// wrapper: raw content plus the extracted identity and outcome.
type FiscalDocument struct {
	ID          string               `json:"id"`
	XMLContent  string               `json:"xml_content"`
	AccessKey   string               `json:"access_key"`
	IssueDate   time.Time            `json:"issue_date"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Status      FiscalDocumentStatus `json:"status"`
	Findings    FindingList          `json:"findings"`
	FileName    string               `json:"file_name"`
	UploadedAt  time.Time            `json:"uploaded_at"`
}
