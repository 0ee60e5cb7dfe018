package xml

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internaldecimal "github.com/rezonia/nfe-processor/internal/decimal"
	"github.com/rezonia/nfe-processor/internal/model"
)

// skipNatures is the rejection vocabulary for the operation-nature
// field. A match marks the invoice as non-financial (warranty, return,
// repair, shipment) but parsing still completes: the skip is advisory.
var skipNatures = []string{
	"garantia",
	"devolucao",
	"devolução",
	"retorno",
	"conserto",
	"remessa",
}

// Result is the outcome of parsing one XML document. Error and Invoice
// are mutually exclusive on the happy path; a structural failure never
// propagates as a panic or a returned Go error.
type Result struct {
	Invoice           *model.Invoice    `json:"invoice,omitempty"`
	Error             error             `json:"-"`
	Skipped           bool              `json:"skipped"`
	SkipReason        string            `json:"skip_reason,omitempty"`
	MissingDuplicates bool              `json:"missing_duplicates"`
	RecipientTaxID    string            `json:"recipient_tax_id,omitempty"`
	Findings          model.FindingList `json:"findings,omitempty"`
}

// Option configures a Parser.
type Option func(*Parser)

// WithNow overrides the clock used for default issue dates and for
// seeding installment payment status.
func WithNow(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// Parser converts NFe/NFCe XML into an Invoice.
type Parser struct {
	now func() time.Time
}

// NewParser creates an NFe parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one XML document from r and parses it. The reader is
// fully consumed before any processing; a read failure is a structural
// error on the result.
func (p *Parser) Parse(ctx context.Context, r io.Reader, fileName string, purpose model.Purpose) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{Error: model.NewParseError("content", "failed to read input", err)}
	}
	if err := ctx.Err(); err != nil {
		return &Result{Error: model.NewParseError("content", "context canceled", err)}
	}
	return p.ParseBytes(data, fileName, purpose)
}

// ParseBytes parses one XML document already buffered in memory.
func (p *Parser) ParseBytes(data []byte, fileName string, purpose model.Purpose) *Result {
	doc, err := Load(data)
	if err != nil {
		return &Result{Error: err}
	}
	root := doc.Root()

	result := &Result{}

	number := FirstOf(root, "nNF", "nCFe", "nFat")
	if number == "" {
		number = "S/N"
	}

	issuerName := ""
	issuerTaxID := ""
	issuerState := ""
	if emit := FindDescendant(root, "emit"); emit != nil {
		issuerName = Text(emit, "xNome")
		issuerTaxID = FirstOf(emit, "CNPJ", "CPF")
		if ender := FindDescendant(emit, "enderEmit"); ender != nil {
			issuerState = Text(ender, "UF")
		}
	}
	if issuerName == "" {
		issuerName = "Consumidor / Desconhecido"
	}

	recipientName := ""
	recipientTaxID := ""
	recipientState := ""
	if dest := FindDescendant(root, "dest"); dest != nil {
		recipientName = Text(dest, "xNome")
		recipientTaxID = FirstOf(dest, "CNPJ", "CPF")
		if ender := FindDescendant(dest, "enderDest"); ender != nil {
			recipientState = Text(ender, "UF")
		}
	}
	result.RecipientTaxID = recipientTaxID

	issueDate := p.now()
	if raw := FirstOf(root, "dhEmi", "dEmi"); raw != "" {
		if d, err := ParseDate(raw); err == nil {
			issueDate = d
		}
	}

	natOp := Text(root, "natOp")
	if reason, skipped := matchSkipNature(natOp); skipped {
		result.Skipped = true
		result.SkipReason = reason
		result.Findings = append(result.Findings, model.Finding{
			Code:     model.CodeSkippedNature,
			Severity: model.SeverityInfo,
			Message:  reason,
		})
	}

	accessKey := AccessKey(root)

	inv := &model.Invoice{
		Number:            number,
		Series:            Text(root, "serie"),
		AccessKey:         accessKey,
		IssueDate:         issueDate,
		NatureOfOperation: natOp,
		Purpose:           purpose,
		IssuerName:        issuerName,
		IssuerTaxID:       issuerTaxID,
		IssuerState:       issuerState,
		RecipientName:     recipientName,
		RecipientTaxID:    recipientTaxID,
		RecipientState:    recipientState,
		FileName:          fileName,
	}

	// Header totals. vNF has legacy fallbacks for CFe and service notes.
	icmsTot := FindDescendant(root, "ICMSTot")
	totalRaw := FirstOf(icmsTot, "vNF")
	if totalRaw == "" {
		totalRaw = FirstOf(root, "vLiq", "vCFe", "vNF")
	}
	inv.TotalValue = internaldecimal.ParseAmount(totalRaw)
	if icmsTot != nil {
		inv.ProductsValue = Amount(icmsTot, "vProd")
		inv.FreightValue = Amount(icmsTot, "vFrete")
		inv.InsuranceValue = Amount(icmsTot, "vSeg")
		inv.DiscountValue = Amount(icmsTot, "vDesc")
		inv.OtherExpensesValue = Amount(icmsTot, "vOutro")
		inv.ICMSBase = Amount(icmsTot, "vBC")
		inv.ICMSValue = Amount(icmsTot, "vICMS")
		inv.ICMSSTBase = Amount(icmsTot, "vBCST")
		inv.ICMSSTValue = Amount(icmsTot, "vST")
		inv.IPIValue = Amount(icmsTot, "vIPI")
		inv.PISValue = Amount(icmsTot, "vPIS")
		inv.COFINSValue = Amount(icmsTot, "vCOFINS")
		inv.EmbeddedTaxValue = Amount(icmsTot, "vTotTrib")
	}

	// Canonical identity: the access key when present, otherwise the
	// number's digits plus a fresh token so two keyless documents never
	// collide.
	if len(accessKey) == 44 {
		inv.ID = accessKey
	} else {
		inv.ID = fmt.Sprintf("%s-%s", digitsOf(number), uuid.NewString())
	}

	for _, det := range FindDescendants(root, "det") {
		inv.Items = append(inv.Items, parseItem(det))
	}
	for i := range inv.Items {
		inv.Items[i].ComputeEffectiveUnitCost()
	}

	today := truncateDay(p.now())
	for _, dup := range FindDescendants(root, "dup") {
		inst, ok := parseInstallment(dup, inv.ID, today)
		if ok {
			inv.Installments = append(inv.Installments, inst)
		}
	}

	if len(inv.Installments) == 0 {
		if !inv.TotalValue.IsPositive() {
			return &Result{Error: model.NewParseError("invoice", "total value is not positive and no installments present", nil)}
		}
		result.MissingDuplicates = true
		inv.Installments = append(inv.Installments, model.Installment{
			ID:      inv.ID + "-single",
			Number:  "001",
			DueDate: issueDate,
			Value:   inv.TotalValue,
			Status:  installmentStatus(truncateDay(issueDate), today),
		})
	}

	result.Invoice = inv
	return result
}

// AccessKey resolves the 44-digit access key from the chNFe element or
// the infNFe Id attribute (stripping the "NFe" prefix). Returns "" when
// neither is present.
func AccessKey(root *etree.Element) string {
	if ch := Text(root, "chNFe"); ch != "" {
		return ch
	}
	infNFe := FindDescendant(root, "infNFe")
	if infNFe == nil {
		return ""
	}
	id := infNFe.SelectAttrValue("Id", "")
	return strings.TrimPrefix(id, "NFe")
}

func parseItem(det *etree.Element) model.InvoiceItem {
	item := model.InvoiceItem{}

	if prod := FindDescendant(det, "prod"); prod != nil {
		item.Code = Text(prod, "cProd")
		item.Name = Text(prod, "xProd")
		item.NCM = Text(prod, "NCM")
		item.CFOP = Text(prod, "CFOP")
		item.Unit = Text(prod, "uCom")
		item.Quantity = Amount(prod, "qCom")
		item.UnitPrice = Amount(prod, "vUnCom")
		item.TotalValue = Amount(prod, "vProd")
		item.FreightValue = Amount(prod, "vFrete")
		item.InsuranceValue = Amount(prod, "vSeg")
		item.DiscountValue = Amount(prod, "vDesc")
		item.OtherExpensesValue = Amount(prod, "vOutro")
	}

	// Each tax block is optional and parsed independently; an absent
	// block leaves its fields at zero.
	if icms := FindDescendant(det, "ICMS"); icms != nil {
		item.CST = Text(icms, "orig") + Text(icms, "CST")
		item.CSOSN = Text(icms, "CSOSN")
		item.ICMSBase = Amount(icms, "vBC")
		item.ICMSRate = Amount(icms, "pICMS")
		item.ICMSValue = Amount(icms, "vICMS")
		item.ICMSSTBase = Amount(icms, "vBCST")
		item.ICMSSTValue = Amount(icms, "vICMSST")
	}
	if ipi := FindDescendant(det, "IPI"); ipi != nil {
		item.IPIBase = Amount(ipi, "vBC")
		item.IPIRate = Amount(ipi, "pIPI")
		item.IPIValue = Amount(ipi, "vIPI")
	}
	if pis := FindDescendant(det, "PIS"); pis != nil {
		item.PISBase = Amount(pis, "vBC")
		item.PISRate = Amount(pis, "pPIS")
		item.PISValue = Amount(pis, "vPIS")
	}
	if cofins := FindDescendant(det, "COFINS"); cofins != nil {
		item.COFINSBase = Amount(cofins, "vBC")
		item.COFINSRate = Amount(cofins, "pCOFINS")
		item.COFINSValue = Amount(cofins, "vCOFINS")
	}

	return item
}

// parseInstallment converts a dup element. An installment only exists
// when both the due date and the value are parseable.
func parseInstallment(dup *etree.Element, invoiceID string, today time.Time) (model.Installment, bool) {
	nDup := Text(dup, "nDup")
	dVenc := Text(dup, "dVenc")
	vDup := Text(dup, "vDup")

	if dVenc == "" || vDup == "" {
		return model.Installment{}, false
	}
	dueDate, err := ParseDate(dVenc)
	if err != nil {
		return model.Installment{}, false
	}
	value, err := decimal.NewFromString(vDup)
	if err != nil {
		return model.Installment{}, false
	}

	return model.Installment{
		ID:      invoiceID + "-" + nDup,
		Number:  nDup,
		DueDate: dueDate,
		Value:   value,
		Status:  installmentStatus(truncateDay(dueDate), today),
	}, true
}

func installmentStatus(due, today time.Time) model.PaymentStatus {
	if due.Before(today) {
		return model.PaymentOverdue
	}
	return model.PaymentPending
}

func matchSkipNature(natOp string) (string, bool) {
	if natOp == "" {
		return "", false
	}
	lowered := strings.ToLower(natOp)
	for _, word := range skipNatures {
		if strings.Contains(lowered, word) {
			reason := fmt.Sprintf("Natureza da operação %q indica nota não financeira (garantia/devolução/conserto/remessa).", natOp)
			return reason, true
		}
	}
	return "", false
}

// ParseDate parses timestamps in the formats the NFe family actually
// emits: RFC3339 (dhEmi), bare date (legacy dEmi/dVenc), and a couple
// of sloppy variants seen in the wild.
func ParseDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
