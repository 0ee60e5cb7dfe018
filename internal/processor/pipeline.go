// Package processor wires the parser, the validation engine and the
// analyzer into a single pipeline over one XML document.
package processor

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/nfe-processor/internal/analysis"
	"github.com/rezonia/nfe-processor/internal/model"
	xmlparser "github.com/rezonia/nfe-processor/internal/parser/xml"
	"github.com/rezonia/nfe-processor/internal/validation"
)

// Result is the combined outcome for one document: the parsed invoice,
// the validation findings, the discrepancy analysis and the derived
// status. FileName attributes the result back to its source.
type Result struct {
	FileName          string                     `json:"file_name"`
	Invoice           *model.Invoice             `json:"invoice,omitempty"`
	Error             error                      `json:"-"`
	Skipped           bool                       `json:"skipped"`
	SkipReason        string                     `json:"skip_reason,omitempty"`
	MissingDuplicates bool                       `json:"missing_duplicates"`
	RecipientTaxID    string                     `json:"recipient_tax_id,omitempty"`
	Findings          model.FindingList          `json:"findings"`
	Analysis          *analysis.Analysis         `json:"analysis,omitempty"`
	Status            model.FiscalDocumentStatus `json:"status"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParser replaces the default parser (e.g. to pin the clock).
func WithParser(p *xmlparser.Parser) Option {
	return func(pl *Pipeline) {
		pl.parser = p
	}
}

// Pipeline processes fiscal XML documents. It holds no per-document
// state: every invocation allocates its own entity graph, so one
// pipeline may be shared by concurrent workers.
type Pipeline struct {
	parser *xmlparser.Parser
	engine *validation.Engine
	now    func() time.Time
}

// NewPipeline creates a processing pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		parser: xmlparser.NewParser(),
		engine: validation.NewEngine(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses, validates and analyzes one buffered XML document.
func (p *Pipeline) Process(ctx context.Context, data []byte, fileName string, purpose model.Purpose) *Result {
	parsed := p.parser.ParseBytes(data, fileName, purpose)
	if parsed.Error != nil {
		return &Result{
			FileName: fileName,
			Error:    parsed.Error,
			Status:   model.DocumentInvalid,
		}
	}

	analyzed := analysis.Analyze(parsed.Invoice)

	findings := append(model.FindingList{}, parsed.Findings...)
	findings = append(findings, p.engine.ValidateBytes(data, purpose)...)
	findings = append(findings, analyzed.Findings...)
	findings = findings.Dedupe()

	return &Result{
		FileName:          fileName,
		Invoice:           parsed.Invoice,
		Skipped:           parsed.Skipped,
		SkipReason:        parsed.SkipReason,
		MissingDuplicates: parsed.MissingDuplicates,
		RecipientTaxID:    parsed.RecipientTaxID,
		Findings:          findings,
		Analysis:          analyzed,
		Status:            model.StatusFromFindings(findings),
	}
}

// ProcessReader fully consumes r and processes its content.
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader, fileName string, purpose model.Purpose) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{
			FileName: fileName,
			Error:    model.NewParseError("content", "failed to read input", err),
			Status:   model.DocumentInvalid,
		}
	}
	return p.Process(ctx, data, fileName, purpose)
}

// Document is the thin validation wrapper for document-tracking use
// cases: it keeps the raw content and produces the status record
// without the full analysis.
func (p *Pipeline) Document(ctx context.Context, data []byte, fileName string, purpose model.Purpose) *model.FiscalDocument {
	doc := &model.FiscalDocument{
		ID:         uuid.NewString(),
		XMLContent: string(data),
		FileName:   fileName,
		Status:     model.DocumentPending,
		UploadedAt: p.now().UTC(),
	}

	tree, err := xmlparser.Load(data)
	if err != nil {
		doc.Findings = model.FindingList{{
			Code:     model.CodeEmptyDocument,
			Severity: model.SeverityError,
			Message:  "Erro ao ler XML: " + err.Error(),
		}}
		doc.Status = model.DocumentInvalid
		return doc
	}

	root := tree.Root()
	if root.Tag != "nfeProc" && root.Tag != "NFe" {
		doc.Findings = model.FindingList{{
			Code:     model.CodeInvalidRoot,
			Severity: model.SeverityError,
			Message:  "XML inválido: Elemento raiz deve ser 'nfeProc' ou 'NFe'.",
		}}
		doc.Status = model.DocumentInvalid
		return doc
	}

	findings := p.engine.ValidateDocument(tree, purpose)

	doc.AccessKey = xmlparser.AccessKey(root)
	if raw := xmlparser.FirstOf(root, "dhEmi", "dEmi"); raw != "" {
		if d, err := xmlparser.ParseDate(raw); err == nil {
			doc.IssueDate = d
		}
	}
	if icmsTot := xmlparser.FindDescendant(root, "ICMSTot"); icmsTot != nil {
		doc.TotalAmount = xmlparser.Amount(icmsTot, "vNF")
	}
	if !doc.TotalAmount.IsPositive() {
		findings = append(findings, model.Finding{
			Code:     model.CodeTotalNotPositive,
			Severity: model.SeverityWarning,
			Message:  "Alerta: Valor total da nota é zero ou negativo.",
		})
	}

	doc.Findings = findings.Dedupe()
	doc.Status = model.StatusFromFindings(doc.Findings)
	return doc
}
