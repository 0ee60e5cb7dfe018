// Package validation implements the SEFAZ structural and arithmetic
// checks for NFe/NFCe documents. Every check is a pure function from
// the document (or parsed invoice) to a list of findings; the engine
// concatenates them, so a missing element disables only its own check.
package validation

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	internaldecimal "github.com/rezonia/nfe-processor/internal/decimal"
	"github.com/rezonia/nfe-processor/internal/model"
	xmlparser "github.com/rezonia/nfe-processor/internal/parser/xml"
)

// Engine runs the document-level validation checks.
type Engine struct{}

// NewEngine creates a validation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ValidateBytes parses the raw XML and validates it. A document that
// cannot be parsed yields a single error finding, not a Go error.
func (e *Engine) ValidateBytes(data []byte, purpose model.Purpose) model.FindingList {
	doc, err := xmlparser.Load(data)
	if err != nil {
		return model.FindingList{{
			Code:     model.CodeEmptyDocument,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("Erro ao ler XML: %v", err),
		}}
	}
	return e.ValidateDocument(doc, purpose)
}

// ValidateDocument runs every document-level check and returns the
// de-duplicated findings in detection order.
func (e *Engine) ValidateDocument(doc *etree.Document, purpose model.Purpose) model.FindingList {
	root := doc.Root()
	if root == nil {
		return model.FindingList{{
			Code:     model.CodeEmptyDocument,
			Severity: model.SeverityError,
			Message:  "XML vazio.",
		}}
	}

	var findings model.FindingList
	findings = append(findings, checkAccessKey(root)...)
	findings = append(findings, checkSignatureDigest(root)...)
	findings = append(findings, checkTotals(root)...)
	findings = append(findings, checkItems(root, purpose)...)
	findings = append(findings, checkDates(root)...)
	return findings.Dedupe()
}

// checkAccessKey validates the 44-digit key's length and the document
// model substring (positions 20-21): 55 = NFe, 65 = NFCe.
func checkAccessKey(root *etree.Element) model.FindingList {
	key := xmlparser.AccessKey(root)

	if key == "" {
		return model.FindingList{{
			Code:     model.CodeAccessKeyMissing,
			Severity: model.SeverityError,
			Message:  "Chave de acesso não encontrada.",
		}}
	}

	if len(key) != 44 {
		return model.FindingList{{
			Code:     model.CodeAccessKeyLength,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("Chave de acesso inválida (tamanho %d, esperado 44).", len(key)),
		}}
	}

	mod := key[20:22]
	if mod != "55" && mod != "65" {
		return model.FindingList{{
			Code:     model.CodeAccessKeyModel,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("Modelo de nota na chave (%s) é desconhecido (esperado 55 ou 65).", mod),
		}}
	}

	return nil
}

// checkSignatureDigest compares the protocol digest with the signature
// digest when both are present. No cryptographic verification happens
// here; this is a plain string equality over two already-extracted
// digests. A missing signature block is an advisory, not an error.
func checkSignatureDigest(root *etree.Element) model.FindingList {
	var findings model.FindingList

	if xmlparser.FindDescendant(root, "Signature") == nil {
		findings = append(findings, model.Finding{
			Code:     model.CodeSignatureMissing,
			Severity: model.SeverityWarning,
			Message:  "Aviso: Assinatura digital não encontrada no XML.",
		})
	}

	if prot := xmlparser.FindDescendant(root, "protNFe"); prot != nil {
		protDigest := xmlparser.Text(prot, "digVal")
		sigDigest := ""
		if ref := xmlparser.FindDescendant(root, "Reference"); ref != nil {
			sigDigest = xmlparser.Text(ref, "DigestValue")
		}
		if protDigest != "" && sigDigest != "" && protDigest != sigDigest {
			findings = append(findings, model.Finding{
				Code:     model.CodeDigestMismatch,
				Severity: model.SeverityError,
				Message:  "Divergência: O DigestValue do protocolo não coincide com o da assinatura.",
			})
		}
	}

	return findings
}

// checkTotals verifies the SEFAZ formula over the ICMSTot block:
// vNF = vProd - vDesc + vIPI + vST + vFrete + vSeg + vOutro.
func checkTotals(root *etree.Element) model.FindingList {
	icmsTot := xmlparser.FindDescendant(root, "ICMSTot")
	if icmsTot == nil {
		return nil
	}

	vNF := xmlparser.Amount(icmsTot, "vNF")
	calculated := xmlparser.Amount(icmsTot, "vProd").
		Sub(xmlparser.Amount(icmsTot, "vDesc")).
		Add(xmlparser.Amount(icmsTot, "vIPI")).
		Add(xmlparser.Amount(icmsTot, "vST")).
		Add(xmlparser.Amount(icmsTot, "vFrete")).
		Add(xmlparser.Amount(icmsTot, "vSeg")).
		Add(xmlparser.Amount(icmsTot, "vOutro"))

	if !internaldecimal.WithinTolerance(calculated, vNF) {
		return model.FindingList{{
			Code:     model.CodeTotalsFormula,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("Divergência nos Totais da Nota: vNF (%s) != Cálculo SEFAZ (%s).",
				internaldecimal.FormatBRL(vNF), internaldecimal.FormatBRL(calculated)),
		}}
	}

	return nil
}

// checkItems validates every det element: CFOP first digit against the
// issuer/recipient state relation, consumption-only CFOPs under resale
// purpose, and the 8-digit NCM classification.
func checkItems(root *etree.Element, purpose model.Purpose) model.FindingList {
	var findings model.FindingList

	emitUF := ""
	if emit := xmlparser.FindDescendant(root, "emit"); emit != nil {
		if ender := xmlparser.FindDescendant(emit, "enderEmit"); ender != nil {
			emitUF = xmlparser.Text(ender, "UF")
		}
	}
	destUF := ""
	if dest := xmlparser.FindDescendant(root, "dest"); dest != nil {
		if ender := xmlparser.FindDescendant(dest, "enderDest"); ender != nil {
			destUF = xmlparser.Text(ender, "UF")
		}
	}

	for _, det := range xmlparser.FindDescendants(root, "det") {
		nItem := det.SelectAttrValue("nItem", "")
		prod := xmlparser.FindDescendant(det, "prod")
		if prod == nil {
			continue
		}
		cfop := xmlparser.Text(prod, "CFOP")
		ncm := xmlparser.Text(prod, "NCM")

		if cfop != "" && emitUF != "" && destUF != "" {
			internal := emitUF == destUF
			if internal && !strings.HasPrefix(cfop, "5") {
				findings = append(findings, model.Finding{
					Code:     model.CodeItemCFOPState,
					Severity: model.SeverityError,
					Message:  fmt.Sprintf("Item %s: CFOP %s incompatível com operação interna (UF %s).", nItem, cfop, emitUF),
				})
			} else if !internal && !strings.HasPrefix(cfop, "6") && destUF != "EX" {
				findings = append(findings, model.Finding{
					Code:     model.CodeItemCFOPState,
					Severity: model.SeverityError,
					Message:  fmt.Sprintf("Item %s: CFOP %s incompatível com operação interestadual.", nItem, cfop),
				})
			}
		}

		if purpose == model.PurposeResale && (cfop == "1556" || cfop == "2556") {
			findings = append(findings, model.Finding{
				Code:     model.CodeItemCFOPPurpose,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("Item %s: CFOP %s indica Consumo, mas a finalidade é Revenda.", nItem, cfop),
			})
		}

		if len(ncm) != 8 {
			findings = append(findings, model.Finding{
				Code:     model.CodeItemNCM,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("Item %s: NCM %s inválido (esperado 8 dígitos).", nItem, ncm),
			})
		}
	}

	return findings
}

// checkDates flags an exit/entry timestamp earlier than the issue
// timestamp. Both must be present and parseable for the check to run.
func checkDates(root *etree.Element) model.FindingList {
	ide := xmlparser.FindDescendant(root, "ide")
	if ide == nil {
		return nil
	}

	issueRaw := xmlparser.FirstOf(ide, "dhEmi", "dEmi")
	exitRaw := xmlparser.FirstOf(ide, "dhSaiEnt", "dSaiEnt")
	if issueRaw == "" || exitRaw == "" {
		return nil
	}

	issue, err1 := xmlparser.ParseDate(issueRaw)
	exit, err2 := xmlparser.ParseDate(exitRaw)
	if err1 != nil || err2 != nil {
		return nil
	}

	if exit.Before(issue) {
		return model.FindingList{{
			Code:     model.CodeDateOrder,
			Severity: model.SeverityWarning,
			Message:  "Atenção: Data de saída/entrada anterior à data de emissão.",
		}}
	}

	return nil
}
