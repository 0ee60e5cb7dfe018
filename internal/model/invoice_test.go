package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/nfe-processor/internal/model"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSEFAZTotal(t *testing.T) {
	inv := &model.Invoice{
		ProductsValue:      amount("1000.00"),
		DiscountValue:      amount("50.00"),
		IPIValue:           amount("100.00"),
		ICMSSTValue:        amount("75.00"),
		FreightValue:       amount("30.00"),
		InsuranceValue:     amount("10.00"),
		OtherExpensesValue: amount("5.00"),
	}

	assert.True(t, inv.SEFAZTotal().Equal(amount("1170.00")))
}

func TestSEFAZTotal_ZeroComponents(t *testing.T) {
	inv := &model.Invoice{ProductsValue: amount("500.00")}
	assert.True(t, inv.SEFAZTotal().Equal(amount("500.00")))
}

func TestComputeEffectiveUnitCost(t *testing.T) {
	tests := []struct {
		name     string
		item     model.InvoiceItem
		expected string
	}{
		{
			name: "plain item",
			item: model.InvoiceItem{
				Quantity:   amount("10"),
				TotalValue: amount("500.00"),
			},
			expected: "50",
		},
		{
			name: "taxes and expenses included",
			item: model.InvoiceItem{
				Quantity:           amount("4"),
				TotalValue:         amount("400.00"),
				IPIValue:           amount("40.00"),
				ICMSSTValue:        amount("20.00"),
				FreightValue:       amount("12.00"),
				InsuranceValue:     amount("4.00"),
				OtherExpensesValue: amount("8.00"),
				DiscountValue:      amount("24.00"),
			},
			// (400 + 40 + 20 + 12 + 4 + 8 - 24) / 4
			expected: "115",
		},
		{
			name: "fractional result rounds to cents",
			item: model.InvoiceItem{
				Quantity:   amount("3"),
				TotalValue: amount("100.00"),
			},
			expected: "33.33",
		},
		{
			name: "zero quantity yields zero",
			item: model.InvoiceItem{
				Quantity:   amount("0"),
				TotalValue: amount("100.00"),
			},
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.item.ComputeEffectiveUnitCost()
			assert.True(t, tt.item.EffectiveUnitCost.Equal(amount(tt.expected)),
				"got %s, want %s", tt.item.EffectiveUnitCost, tt.expected)
		})
	}
}

func TestStatusFromFindings(t *testing.T) {
	tests := []struct {
		name     string
		findings model.FindingList
		expected model.FiscalDocumentStatus
	}{
		{
			name:     "no findings",
			findings: nil,
			expected: model.DocumentValid,
		},
		{
			name: "info only",
			findings: model.FindingList{
				{Code: model.CodeSkippedNature, Severity: model.SeverityInfo},
			},
			expected: model.DocumentWarning,
		},
		{
			name: "warning",
			findings: model.FindingList{
				{Code: model.CodeSignatureMissing, Severity: model.SeverityWarning},
			},
			expected: model.DocumentWarning,
		},
		{
			name: "error dominates",
			findings: model.FindingList{
				{Code: model.CodeSignatureMissing, Severity: model.SeverityWarning},
				{Code: model.CodeTotalsFormula, Severity: model.SeverityError},
			},
			expected: model.DocumentInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, model.StatusFromFindings(tt.findings))
		})
	}
}

func TestFindingList_Dedupe(t *testing.T) {
	a := model.Finding{Code: model.CodeItemNCM, Severity: model.SeverityError, Message: "Item 1: NCM invalido."}
	b := model.Finding{Code: model.CodeItemNCM, Severity: model.SeverityError, Message: "Item 2: NCM invalido."}
	c := model.Finding{Code: model.CodeSignatureMissing, Severity: model.SeverityWarning, Message: "sem assinatura"}

	list := model.FindingList{a, b, a, c, b}
	deduped := list.Dedupe()

	assert.Equal(t, model.FindingList{a, b, c}, deduped)
}

func TestFindingList_MaxSeverity(t *testing.T) {
	assert.Equal(t, model.Severity(""), model.FindingList{}.MaxSeverity())

	list := model.FindingList{
		{Severity: model.SeverityInfo},
		{Severity: model.SeverityError},
		{Severity: model.SeverityWarning},
	}
	assert.Equal(t, model.SeverityError, list.MaxSeverity())
	assert.True(t, list.HasErrors())
	assert.False(t, model.FindingList{{Severity: model.SeverityWarning}}.HasErrors())
}
