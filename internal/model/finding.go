package model

// Severity classifies a validation finding. Document status is derived
// from the maximum severity present, never from the message text.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Finding codes. Stable identifiers for each check; messages are
// human-readable and may change wording without breaking callers.
const (
	CodeEmptyDocument    = "EMPTY_DOCUMENT"
	CodeInvalidRoot      = "INVALID_ROOT"
	CodeAccessKeyMissing = "ACCESS_KEY_MISSING"
	CodeAccessKeyLength  = "ACCESS_KEY_LENGTH"
	CodeAccessKeyModel   = "ACCESS_KEY_MODEL"
	CodeSignatureMissing = "SIGNATURE_MISSING"
	CodeDigestMismatch   = "DIGEST_MISMATCH"
	CodeTotalsFormula    = "TOTALS_FORMULA"
	CodeItemCFOPState    = "ITEM_CFOP_STATE"
	CodeItemCFOPPurpose  = "ITEM_CFOP_PURPOSE"
	CodeItemNCM          = "ITEM_NCM"
	CodeDateOrder        = "DATE_ORDER"
	CodeProductsSum      = "PRODUCTS_SUM"
	CodeICMSSum          = "ICMS_SUM"
	CodeIPISum           = "IPI_SUM"
	CodeConsumptionICMS  = "CONSUMPTION_ICMS"
	CodeConsumptionIPI   = "CONSUMPTION_IPI"
	CodeConsumptionST    = "CONSUMPTION_ST"
	CodeDIFAL            = "DIFAL"
	CodeTotalNotPositive = "TOTAL_NOT_POSITIVE"
	CodeSkippedNature    = "SKIPPED_NATURE"
)

// Finding is one validation outcome.
type Finding struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// FindingList is an ordered sequence of findings.
type FindingList []Finding

// Dedupe removes repeated findings, keeping the first occurrence order.
func (l FindingList) Dedupe() FindingList {
	if len(l) == 0 {
		return l
	}
	seen := make(map[Finding]struct{}, len(l))
	out := make(FindingList, 0, len(l))
	for _, f := range l {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Messages renders the finding texts in order.
func (l FindingList) Messages() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = f.Message
	}
	return out
}

// MaxSeverity returns the highest severity present, or "" for an empty list.
func (l FindingList) MaxSeverity() Severity {
	var max Severity
	for _, f := range l {
		if max == "" || f.Severity.rank() > max.rank() {
			max = f.Severity
		}
	}
	return max
}

// HasErrors reports whether any finding has error severity.
func (l FindingList) HasErrors() bool {
	return l.MaxSeverity() == SeverityError
}
