package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purpose indicates why the goods were purchased. It changes which
// business rules apply: consumption purchases carry non-recoverable taxes.
type Purpose string

const (
	PurposeResale      Purpose = "RESALE"
	PurposeConsumption Purpose = "CONSUMPTION"
)

// PaymentStatus is the payment state of a single installment.
// The parser only seeds it from the due date; later transitions
// (e.g. marking an installment paid) belong to the caller.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentOverdue PaymentStatus = "OVERDUE"
	PaymentPaid    PaymentStatus = "PAID"
)

// Invoice is a parsed NFe/NFCe document.
type Invoice struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Series    string    `json:"series"`
	AccessKey string    `json:"access_key"`
	IssueDate time.Time `json:"issue_date"`

	NatureOfOperation string  `json:"nature_of_operation"`
	Purpose           Purpose `json:"purpose"`

	IssuerName  string `json:"issuer_name"`
	IssuerTaxID string `json:"issuer_tax_id"`
	IssuerState string `json:"issuer_state"`

	RecipientName  string `json:"recipient_name"`
	RecipientTaxID string `json:"recipient_tax_id"`
	RecipientState string `json:"recipient_state"`

	// Header totals from the ICMSTot block.
	ProductsValue      decimal.Decimal `json:"products_value"`
	FreightValue       decimal.Decimal `json:"freight_value"`
	InsuranceValue     decimal.Decimal `json:"insurance_value"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	OtherExpensesValue decimal.Decimal `json:"other_expenses_value"`
	ICMSBase           decimal.Decimal `json:"icms_base"`
	ICMSValue          decimal.Decimal `json:"icms_value"`
	ICMSSTBase         decimal.Decimal `json:"icms_st_base"`
	ICMSSTValue        decimal.Decimal `json:"icms_st_value"`
	IPIValue           decimal.Decimal `json:"ipi_value"`
	PISValue           decimal.Decimal `json:"pis_value"`
	COFINSValue        decimal.Decimal `json:"cofins_value"`
	// EmbeddedTaxValue is the approximate total tax burden (vTotTrib)
	// declared for consumer transparency.
	EmbeddedTaxValue decimal.Decimal `json:"embedded_tax_value"`
	TotalValue       decimal.Decimal `json:"total_value"`

	Items        []InvoiceItem `json:"items"`
	Installments []Installment `json:"installments"`

	FileName string `json:"file_name"`
}

// SEFAZTotal computes the note total the tax authority expects:
// vProd - vDesc + vIPI + vST + vFrete + vSeg + vOutro.
func (inv *Invoice) SEFAZTotal() decimal.Decimal {
	return inv.ProductsValue.
		Sub(inv.DiscountValue).
		Add(inv.IPIValue).
		Add(inv.ICMSSTValue).
		Add(inv.FreightValue).
		Add(inv.InsuranceValue).
		Add(inv.OtherExpensesValue)
}

// InvoiceItem is one line item (det element) of an invoice.
type InvoiceItem struct {
	Code string `json:"code"`
	Name string `json:"name"`
	NCM  string `json:"ncm"`
	CFOP string `json:"cfop"`
	Unit string `json:"unit"`

	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalValue decimal.Decimal `json:"total_value"`

	FreightValue       decimal.Decimal `json:"freight_value"`
	InsuranceValue     decimal.Decimal `json:"insurance_value"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	OtherExpensesValue decimal.Decimal `json:"other_expenses_value"`

	// CST carries origin + situation code (e.g. "000", "060").
	// CSOSN replaces it for issuers under Simples Nacional.
	CST   string `json:"cst"`
	CSOSN string `json:"csosn"`

	ICMSBase  decimal.Decimal `json:"icms_base"`
	ICMSRate  decimal.Decimal `json:"icms_rate"`
	ICMSValue decimal.Decimal `json:"icms_value"`

	ICMSSTBase  decimal.Decimal `json:"icms_st_base"`
	ICMSSTValue decimal.Decimal `json:"icms_st_value"`

	IPIBase  decimal.Decimal `json:"ipi_base"`
	IPIRate  decimal.Decimal `json:"ipi_rate"`
	IPIValue decimal.Decimal `json:"ipi_value"`

	PISBase  decimal.Decimal `json:"pis_base"`
	PISRate  decimal.Decimal `json:"pis_rate"`
	PISValue decimal.Decimal `json:"pis_value"`

	COFINSBase  decimal.Decimal `json:"cofins_base"`
	COFINSRate  decimal.Decimal `json:"cofins_rate"`
	COFINSValue decimal.Decimal `json:"cofins_value"`

	// EffectiveUnitCost is the per-unit cost including non-recoverable
	// taxes and accessory expenses. Zero when quantity is zero.
	EffectiveUnitCost decimal.Decimal `json:"effective_unit_cost"`
}

// ComputeEffectiveUnitCost derives the effective per-unit cost:
// (total + IPI + ICMS-ST + freight + insurance + other - discount) / quantity.
// Meaningful for consumption purchases, where these taxes are cost.
func (it *InvoiceItem) ComputeEffectiveUnitCost() {
	if !it.Quantity.IsPositive() {
		it.EffectiveUnitCost = decimal.Zero
		return
	}
	gross := it.TotalValue.
		Add(it.IPIValue).
		Add(it.ICMSSTValue).
		Add(it.FreightValue).
		Add(it.InsuranceValue).
		Add(it.OtherExpensesValue).
		Sub(it.DiscountValue)
	it.EffectiveUnitCost = gross.Div(it.Quantity).Round(2)
}

// Installment is one entry of the payment schedule (dup element).
type Installment struct {
	ID      string          `json:"id"`
	Number  string          `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Value   decimal.Decimal `json:"value"`
	Status  PaymentStatus   `json:"status"`
}
