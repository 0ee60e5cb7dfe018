package xml

import (
	"bytes"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	internaldecimal "github.com/rezonia/nfe-processor/internal/decimal"
	"github.com/rezonia/nfe-processor/internal/model"
)

// Load parses XML bytes into an etree document. Documents carrying a
// DOCTYPE are rejected outright: NFe XML never has one, and inline or
// external entity definitions are the XXE vector.
func Load(data []byte) (*etree.Document, error) {
	if containsDoctype(data) {
		return nil, model.NewParseError("xml", "DOCTYPE declarations are not allowed", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, model.NewParseError("xml", "failed to parse XML", err)
	}
	if doc.Root() == nil {
		return nil, model.NewParseError("xml", "missing root element", nil)
	}
	return doc, nil
}

func containsDoctype(data []byte) bool {
	return bytes.Contains(bytes.ToUpper(data), []byte("<!DOCTYPE"))
}

// FindDescendant returns the first descendant (or the element itself)
// whose local tag name matches, ignoring any namespace prefix. Issuer
// software binds the NFe namespace inconsistently, so matching is
// always on the local name.
func FindDescendant(elem *etree.Element, localName string) *etree.Element {
	if elem == nil {
		return nil
	}
	if elem.Tag == localName {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := FindDescendant(child, localName); found != nil {
			return found
		}
	}
	return nil
}

// FindDescendants returns all descendants with the given local tag name,
// in document order.
func FindDescendants(elem *etree.Element, localName string) []*etree.Element {
	var out []*etree.Element
	if elem == nil {
		return out
	}
	if elem.Tag == localName {
		out = append(out, elem)
	}
	for _, child := range elem.ChildElements() {
		out = append(out, FindDescendants(child, localName)...)
	}
	return out
}

// Text returns the trimmed text of the first descendant with the given
// local name, or "" when absent.
func Text(elem *etree.Element, localName string) string {
	found := FindDescendant(elem, localName)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// FirstOf evaluates candidate tag names in order and returns the first
// non-empty text value. This is the fallback-chain combinator: legacy
// sub-formats expose the same semantic value under different tags.
func FirstOf(elem *etree.Element, localNames ...string) string {
	for _, name := range localNames {
		if v := Text(elem, name); v != "" {
			return v
		}
	}
	return ""
}

// Amount returns the first non-empty candidate parsed as a decimal,
// or zero when every candidate is absent or unparseable.
func Amount(elem *etree.Element, localNames ...string) decimal.Decimal {
	return internaldecimal.ParseAmount(FirstOf(elem, localNames...))
}
