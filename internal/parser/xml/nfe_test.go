package xml_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-processor/internal/model"
	xmlparser "github.com/rezonia/nfe-processor/internal/parser/xml"
)

const validAccessKey = "35240112345678000195550010000123451000543210"

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}

func TestParse_ValidNFe(t *testing.T) {
	content := readTestFile(t, "nfe_valid.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfe_valid.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	require.NotNil(t, result.Invoice)
	assert.False(t, result.Skipped)
	assert.False(t, result.MissingDuplicates)

	inv := result.Invoice
	assert.Equal(t, "12345", inv.Number)
	assert.Equal(t, "1", inv.Series)
	assert.Equal(t, validAccessKey, inv.AccessKey)
	assert.Equal(t, validAccessKey, inv.ID)
	assert.Equal(t, "Venda de mercadoria", inv.NatureOfOperation)
	assert.Equal(t, model.PurposeResale, inv.Purpose)
	assert.Equal(t, 2026, inv.IssueDate.Year())
	assert.Equal(t, time.January, inv.IssueDate.Month())
	assert.Equal(t, 15, inv.IssueDate.Day())

	assert.Equal(t, "Distribuidora Alfa Ltda", inv.IssuerName)
	assert.Equal(t, "12345678000195", inv.IssuerTaxID)
	assert.Equal(t, "SP", inv.IssuerState)
	assert.Equal(t, "Comercio Beta ME", inv.RecipientName)
	assert.Equal(t, "98765432000188", inv.RecipientTaxID)
	assert.Equal(t, "SP", inv.RecipientState)

	assert.True(t, inv.TotalValue.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, inv.ProductsValue.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, inv.ICMSValue.Equal(decimal.RequireFromString("180.00")))
	assert.True(t, inv.EmbeddedTaxValue.Equal(decimal.RequireFromString("272.50")))
}

func TestParse_ValidNFe_Items(t *testing.T) {
	content := readTestFile(t, "nfe_valid.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfe_valid.xml", model.PurposeResale)
	require.Nil(t, result.Error)
	require.Len(t, result.Invoice.Items, 2)

	first := result.Invoice.Items[0]
	assert.Equal(t, "P001", first.Code)
	assert.Equal(t, "Parafuso sextavado 10mm", first.Name)
	assert.Equal(t, "73181500", first.NCM)
	assert.Equal(t, "5102", first.CFOP)
	assert.Equal(t, "CX", first.Unit)
	assert.Equal(t, "000", first.CST)
	assert.True(t, first.Quantity.Equal(decimal.RequireFromString("10.0000")))
	assert.True(t, first.TotalValue.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, first.ICMSBase.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, first.ICMSRate.Equal(decimal.RequireFromString("18.00")))
	assert.True(t, first.ICMSValue.Equal(decimal.RequireFromString("90.00")))
	assert.True(t, first.PISValue.Equal(decimal.RequireFromString("8.25")))
	assert.True(t, first.COFINSValue.Equal(decimal.RequireFromString("38.00")))

	// (500 + 0 + 0 + 0 + 0 + 0 - 0) / 10
	assert.True(t, first.EffectiveUnitCost.Equal(decimal.RequireFromString("50")))
}

func TestParse_ValidNFe_Installments(t *testing.T) {
	content := readTestFile(t, "nfe_valid.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfe_valid.xml", model.PurposeResale)
	require.Nil(t, result.Error)
	require.Len(t, result.Invoice.Installments, 2)

	first := result.Invoice.Installments[0]
	assert.Equal(t, "001", first.Number)
	assert.Equal(t, validAccessKey+"-001", first.ID)
	assert.True(t, first.Value.Equal(decimal.RequireFromString("500.00")))
	// due 2026-02-15, clock at 2026-03-01
	assert.Equal(t, model.PaymentOverdue, first.Status)

	second := result.Invoice.Installments[1]
	assert.Equal(t, "002", second.Number)
	assert.Equal(t, model.PaymentPending, second.Status)
}

func TestParse_NFCe_SynthesizesInstallment(t *testing.T) {
	content := readTestFile(t, "nfce_no_dups.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfce_no_dups.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	require.NotNil(t, result.Invoice)
	assert.True(t, result.MissingDuplicates)

	inv := result.Invoice
	assert.Equal(t, "5432", inv.Number)
	assert.Equal(t, "65", inv.AccessKey[20:22])
	assert.True(t, inv.TotalValue.Equal(decimal.RequireFromString("500.00")))

	require.Len(t, inv.Installments, 1)
	inst := inv.Installments[0]
	assert.Equal(t, "001", inst.Number)
	assert.Equal(t, inv.ID+"-single", inst.ID)
	assert.True(t, inst.Value.Equal(inv.TotalValue))
	assert.Equal(t, inv.IssueDate, inst.DueDate)
	// issued 2026-02-01, clock at 2026-03-01
	assert.Equal(t, model.PaymentOverdue, inst.Status)
}

func TestParse_NamespacePrefixIgnored(t *testing.T) {
	// nfce_no_dups.xml binds every element to an explicit ns: prefix
	content := readTestFile(t, "nfce_no_dups.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfce_no_dups.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	assert.Equal(t, "Mercadinho Central", result.Invoice.IssuerName)
	require.Len(t, result.Invoice.Items, 1)
	assert.Equal(t, "Cafe torrado 500g", result.Invoice.Items[0].Name)
}

func TestParse_SkipNature(t *testing.T) {
	content := readTestFile(t, "nfe_skip_nature.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfe_skip_nature.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	require.NotNil(t, result.Invoice)
	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.SkipReason)

	// parsing still completes: the skip is advisory
	assert.True(t, result.Invoice.TotalValue.Equal(decimal.RequireFromString("1500.00")))

	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.CodeSkippedNature, result.Findings[0].Code)
	assert.Equal(t, model.SeverityInfo, result.Findings[0].Severity)
}

func TestParse_SkipNatureVariants(t *testing.T) {
	tests := []struct {
		natOp   string
		skipped bool
	}{
		{"Devolução de venda", true},
		{"DEVOLUCAO DE COMPRA", true},
		{"Retorno de mercadoria", true},
		{"Garantia de fabrica", true},
		{"Remessa em bonificação", true},
		{"Venda de mercadoria", false},
		{"Compra para revenda", false},
	}

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	for _, tt := range tests {
		t.Run(tt.natOp, func(t *testing.T) {
			xml := `<NFe><infNFe Id="NFe` + validAccessKey + `">
				<ide><natOp>` + tt.natOp + `</natOp><nNF>1</nNF></ide>
				<total><ICMSTot><vProd>10.00</vProd><vNF>10.00</vNF></ICMSTot></total>
			</infNFe></NFe>`
			result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)
			require.Nil(t, result.Error)
			assert.Equal(t, tt.skipped, result.Skipped)
		})
	}
}

func TestParse_NumberFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"nNF wins", "<nNF>101</nNF><nFat>202</nFat>", "101"},
		{"nCFe fallback", "<nCFe>303</nCFe>", "303"},
		{"nFat fallback", "<nFat>404</nFat>", "404"},
		{"no number", "", "S/N"},
	}

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xml := `<NFe><infNFe><ide>` + tt.body + `</ide>
				<total><ICMSTot><vProd>10.00</vProd><vNF>10.00</vNF></ICMSTot></total>
			</infNFe></NFe>`
			result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)
			require.Nil(t, result.Error)
			assert.Equal(t, tt.expected, result.Invoice.Number)
		})
	}
}

func TestParse_IssuerFallback(t *testing.T) {
	xml := `<NFe><infNFe><ide><nNF>1</nNF></ide>
		<total><ICMSTot><vProd>10.00</vProd><vNF>10.00</vNF></ICMSTot></total>
	</infNFe></NFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)
	require.Nil(t, result.Error)
	assert.Equal(t, "Consumidor / Desconhecido", result.Invoice.IssuerName)
}

func TestParse_TotalFallbackChain(t *testing.T) {
	// No ICMSTot: vLiq takes precedence over a stray vNF
	xml := `<CFe><infCFe><ide><nCFe>9</nCFe></ide>
		<fat><vLiq>123.45</vLiq></fat>
	</infCFe></CFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)
	require.Nil(t, result.Error)
	assert.True(t, result.Invoice.TotalValue.Equal(decimal.RequireFromString("123.45")))
}

func TestParse_KeylessIdentityIsUnique(t *testing.T) {
	xml := `<NFe><infNFe><ide><nNF>42</nNF></ide>
		<total><ICMSTot><vProd>10.00</vProd><vNF>10.00</vNF></ICMSTot></total>
	</infNFe></NFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	a := parser.ParseBytes([]byte(xml), "a.xml", model.PurposeResale)
	b := parser.ParseBytes([]byte(xml), "b.xml", model.PurposeResale)
	require.Nil(t, a.Error)
	require.Nil(t, b.Error)

	assert.True(t, strings.HasPrefix(a.Invoice.ID, "42-"))
	assert.True(t, strings.HasPrefix(b.Invoice.ID, "42-"))
	assert.NotEqual(t, a.Invoice.ID, b.Invoice.ID)
}

func TestParse_ZeroTotalWithoutInstallments(t *testing.T) {
	xml := `<NFe><infNFe><ide><nNF>1</nNF></ide>
		<total><ICMSTot><vProd>0.00</vProd><vNF>0.00</vNF></ICMSTot></total>
	</infNFe></NFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)

	require.Error(t, result.Error)
	var parseErr *model.ParseError
	require.ErrorAs(t, result.Error, &parseErr)
	assert.Nil(t, result.Invoice)
}

func TestParse_ZeroTotalWithInstallments(t *testing.T) {
	// explicit installments rescue a zero header total
	xml := `<NFe><infNFe><ide><nNF>1</nNF></ide>
		<total><ICMSTot><vProd>0.00</vProd><vNF>0.00</vNF></ICMSTot></total>
		<cobr><dup><nDup>001</nDup><dVenc>2026-04-01</dVenc><vDup>99.00</vDup></dup></cobr>
	</infNFe></NFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	assert.False(t, result.MissingDuplicates)
	require.Len(t, result.Invoice.Installments, 1)
}

func TestParse_MalformedInstallmentDropped(t *testing.T) {
	xml := `<NFe><infNFe><ide><nNF>1</nNF></ide>
		<total><ICMSTot><vProd>100.00</vProd><vNF>100.00</vNF></ICMSTot></total>
		<cobr>
			<dup><nDup>001</nDup><dVenc>not-a-date</dVenc><vDup>50.00</vDup></dup>
			<dup><nDup>002</nDup><dVenc>2026-04-01</dVenc><vDup>50.00</vDup></dup>
		</cobr>
	</infNFe></NFe>`

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes([]byte(xml), "test.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	require.Len(t, result.Invoice.Installments, 1)
	assert.Equal(t, "002", result.Invoice.Installments[0].Number)
}

func TestParse_EmptyInput(t *testing.T) {
	parser := xmlparser.NewParser()
	result := parser.ParseBytes(nil, "empty.xml", model.PurposeResale)

	require.Error(t, result.Error)
	var parseErr *model.ParseError
	require.ErrorAs(t, result.Error, &parseErr)
}

func TestParse_Reader(t *testing.T) {
	content := readTestFile(t, "nfe_valid.xml")

	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.Parse(context.Background(), strings.NewReader(string(content)), "nfe_valid.xml", model.PurposeConsumption)

	require.Nil(t, result.Error)
	assert.Equal(t, model.PurposeConsumption, result.Invoice.Purpose)
}

func TestAccessKey_FromIdAttribute(t *testing.T) {
	content := readTestFile(t, "nfce_no_dups.xml")
	parser := xmlparser.NewParser(xmlparser.WithNow(fixedClock()))
	result := parser.ParseBytes(content, "nfce_no_dups.xml", model.PurposeResale)

	require.Nil(t, result.Error)
	assert.Len(t, result.Invoice.AccessKey, 44)
	assert.Equal(t, result.Invoice.AccessKey, result.Invoice.ID)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
		day     int
	}{
		{"2026-01-15T10:30:00-03:00", false, 15},
		{"2026-01-15T10:30:00", false, 15},
		{"2026-01-15", false, 15},
		{"15/01/2026", false, 15},
		{"garbage", true, 0},
		{"", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := xmlparser.ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.day, d.Day())
		})
	}
}

func readTestFile(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join("testdata", filename)
	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read test file: %s", filename)
	return content
}
