package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	internaldecimal "github.com/rezonia/nfe-processor/internal/decimal"
	"github.com/rezonia/nfe-processor/internal/model"
)

// ValidateInvoice runs the object-level checks over a parsed invoice:
// item sums against header totals, the SEFAZ formula restated on the
// object, and the purpose-specific consumption advisories. It is pure
// and reusable outside the engine (the analyzer attaches its output).
func ValidateInvoice(inv *model.Invoice) model.FindingList {
	var findings model.FindingList

	sumItems := decimal.Zero
	sumICMS := decimal.Zero
	sumIPI := decimal.Zero
	for _, item := range inv.Items {
		sumItems = sumItems.Add(item.TotalValue)
		sumICMS = sumICMS.Add(item.ICMSValue)
		sumIPI = sumIPI.Add(item.IPIValue)
	}

	if !internaldecimal.WithinTolerance(sumItems, inv.ProductsValue) {
		findings = append(findings, model.Finding{
			Code:     model.CodeProductsSum,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("Divergência no Total de Produtos: Soma dos itens (%s) difere do total do cabeçalho (%s).",
				internaldecimal.FormatBRL(sumItems), internaldecimal.FormatBRL(inv.ProductsValue)),
		})
	}

	calculated := inv.SEFAZTotal()
	if !internaldecimal.WithinTolerance(calculated, inv.TotalValue) {
		findings = append(findings, model.Finding{
			Code:     model.CodeTotalsFormula,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("Divergência no Total da Nota (vNF): O valor %s difere do cálculo SEFAZ %s (Produtos - Desc + IPI + ST + Frete + Seg + Outros).",
				internaldecimal.FormatBRL(inv.TotalValue), internaldecimal.FormatBRL(calculated)),
		})
	}

	if !internaldecimal.WithinTolerance(sumICMS, inv.ICMSValue) {
		findings = append(findings, model.Finding{
			Code:     model.CodeICMSSum,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("Divergência no ICMS: Soma dos itens (%s) difere do total do cabeçalho (%s).",
				internaldecimal.FormatBRL(sumICMS), internaldecimal.FormatBRL(inv.ICMSValue)),
		})
	}

	if !internaldecimal.WithinTolerance(sumIPI, inv.IPIValue) {
		findings = append(findings, model.Finding{
			Code:     model.CodeIPISum,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("Divergência no IPI: Soma dos itens (%s) difere do total do cabeçalho (%s).",
				internaldecimal.FormatBRL(sumIPI), internaldecimal.FormatBRL(inv.IPIValue)),
		})
	}

	if inv.Purpose == model.PurposeConsumption {
		findings = append(findings, consumptionAdvisories(inv)...)
	}

	return findings
}

// consumptionAdvisories flags the hidden costs of consumption-purpose
// purchases: highlighted taxes that generate no credit and the DIFAL
// obligation on interstate inflows.
func consumptionAdvisories(inv *model.Invoice) model.FindingList {
	var findings model.FindingList

	if inv.ICMSValue.IsPositive() {
		findings = append(findings, model.Finding{
			Code:     model.CodeConsumptionICMS,
			Severity: model.SeverityInfo,
			Message:  "Atenção (Consumo): O ICMS destacado é um 'custo escondido' e geralmente não gera crédito para itens de consumo.",
		})
	}

	if inv.IPIValue.IsPositive() {
		findings = append(findings, model.Finding{
			Code:     model.CodeConsumptionIPI,
			Severity: model.SeverityInfo,
			Message: fmt.Sprintf("Atenção (Consumo): O IPI (%s) integra o custo da mercadoria e a base de cálculo do ICMS na entrada.",
				internaldecimal.FormatBRL(inv.IPIValue)),
		})
	}

	if inv.ICMSSTValue.IsPositive() {
		findings = append(findings, model.Finding{
			Code:     model.CodeConsumptionST,
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("Alerta ST (Consumo): ICMS-ST de %s detectado. O fornecedor já reteve o imposto, o que torna o item mais caro.",
				internaldecimal.FormatBRL(inv.ICMSSTValue)),
		})
	}

	if inv.RecipientState != "" && hasInterstateItem(inv) {
		findings = append(findings, model.Finding{
			Code:     model.CodeDIFAL,
			Severity: model.SeverityWarning,
			Message:  "DIFAL de Entrada: Operação interestadual p/ consumo detectada. Você deve calcular e pagar o diferencial de alíquota ao seu estado.",
		})
	}

	return findings
}

func hasInterstateItem(inv *model.Invoice) bool {
	for _, item := range inv.Items {
		if strings.HasPrefix(item.CFOP, "6") {
			return true
		}
	}
	return false
}
