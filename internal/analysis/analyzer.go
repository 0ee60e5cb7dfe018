// Package analysis recomputes an invoice's totals from its line items
// and reports where the declared figures drift beyond tolerance.
package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	internaldecimal "github.com/rezonia/nfe-processor/internal/decimal"
	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/validation"
)

// Discrepancy is one header field whose declared and recalculated
// values differ by more than the tolerance.
type Discrepancy struct {
	Label      string          `json:"label"`
	Original   decimal.Decimal `json:"original"`
	Calculated decimal.Decimal `json:"calculated"`
	Message    string          `json:"message"`
}

// Analysis is the result of recalculating one invoice. Original is
// never mutated; Calculated carries the corrected figures.
type Analysis struct {
	Original      *model.Invoice    `json:"original"`
	Calculated    *model.Invoice    `json:"calculated"`
	Discrepancies []Discrepancy     `json:"discrepancies"`
	Findings      model.FindingList `json:"findings"`
}

// Analyze derives a recomputed copy of the invoice, compares the two,
// and attaches the object-level validation findings. Running it twice
// on the same invoice yields identical results: there is no hidden
// state and the input is left untouched.
func Analyze(inv *model.Invoice) *Analysis {
	calculated := cloneInvoice(inv)
	recalculate(calculated)

	a := &Analysis{
		Original:   inv,
		Calculated: calculated,
		Findings:   validation.ValidateInvoice(inv),
	}
	a.compare()
	return a
}

// cloneInvoice copies the identity/header/recipient fields and deep
// copies the items. Installments are shared: they are not subject to
// recalculation.
func cloneInvoice(src *model.Invoice) *model.Invoice {
	clone := *src
	clone.Items = make([]model.InvoiceItem, len(src.Items))
	copy(clone.Items, src.Items)
	return &clone
}

func recalculate(inv *model.Invoice) {
	for i := range inv.Items {
		item := &inv.Items[i]

		// Item total (quantity x unit price) is deliberately not
		// corrected: unit prices are often truncated in the source XML,
		// which would make the "correction" wrong more often than right.

		if item.ICMSBase.IsPositive() && item.ICMSRate.IsPositive() {
			expected := internaldecimal.TaxFromBase(item.ICMSBase, item.ICMSRate)
			if !internaldecimal.WithinTolerance(item.ICMSValue, expected) {
				item.ICMSValue = expected
			}
		}

		if item.IPIBase.IsPositive() && item.IPIRate.IsPositive() {
			expected := internaldecimal.TaxFromBase(item.IPIBase, item.IPIRate)
			if !internaldecimal.WithinTolerance(item.IPIValue, expected) {
				item.IPIValue = expected
			}
		}
	}

	// Header totals re-derived from the (possibly corrected) items.
	products := decimal.Zero
	ipi := decimal.Zero
	icms := decimal.Zero
	icmsBase := decimal.Zero
	icmsST := decimal.Zero
	icmsSTBase := decimal.Zero
	pis := decimal.Zero
	cofins := decimal.Zero
	freight := decimal.Zero
	insurance := decimal.Zero
	discount := decimal.Zero
	other := decimal.Zero
	for _, item := range inv.Items {
		products = products.Add(item.TotalValue)
		ipi = ipi.Add(item.IPIValue)
		icms = icms.Add(item.ICMSValue)
		icmsBase = icmsBase.Add(item.ICMSBase)
		icmsST = icmsST.Add(item.ICMSSTValue)
		icmsSTBase = icmsSTBase.Add(item.ICMSSTBase)
		pis = pis.Add(item.PISValue)
		cofins = cofins.Add(item.COFINSValue)
		freight = freight.Add(item.FreightValue)
		insurance = insurance.Add(item.InsuranceValue)
		discount = discount.Add(item.DiscountValue)
		other = other.Add(item.OtherExpensesValue)
	}
	inv.ProductsValue = products
	inv.IPIValue = ipi
	inv.ICMSValue = icms
	inv.ICMSBase = icmsBase
	inv.ICMSSTValue = icmsST
	inv.ICMSSTBase = icmsSTBase
	inv.PISValue = pis
	inv.COFINSValue = cofins

	// Freight, insurance, discount and other expenses are header-level
	// figures; the item sum only takes over when the header is exactly
	// zero and the items carry values.
	if inv.FreightValue.IsZero() && freight.IsPositive() {
		inv.FreightValue = freight
	}
	if inv.InsuranceValue.IsZero() && insurance.IsPositive() {
		inv.InsuranceValue = insurance
	}
	if inv.DiscountValue.IsZero() && discount.IsPositive() {
		inv.DiscountValue = discount
	}
	if inv.OtherExpensesValue.IsZero() && other.IsPositive() {
		inv.OtherExpensesValue = other
	}

	inv.TotalValue = inv.SEFAZTotal()
}

func (a *Analysis) compare() {
	a.Discrepancies = nil
	a.diff("Total da Nota", a.Original.TotalValue, a.Calculated.TotalValue)
	a.diff("Total Produtos", a.Original.ProductsValue, a.Calculated.ProductsValue)
	a.diff("Total IPI", a.Original.IPIValue, a.Calculated.IPIValue)
	a.diff("Total ICMS", a.Original.ICMSValue, a.Calculated.ICMSValue)
	a.diff("Total ICMS ST", a.Original.ICMSSTValue, a.Calculated.ICMSSTValue)
}

func (a *Analysis) diff(label string, original, calculated decimal.Decimal) {
	if internaldecimal.WithinTolerance(original, calculated) {
		return
	}
	a.Discrepancies = append(a.Discrepancies, Discrepancy{
		Label:      label,
		Original:   original,
		Calculated: calculated,
		Message: fmt.Sprintf("%s: XML(%s) != Calc(%s)",
			label, internaldecimal.FormatBRL(original), internaldecimal.FormatBRL(calculated)),
	})
}
