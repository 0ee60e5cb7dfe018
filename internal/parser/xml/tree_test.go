package xml_test

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-processor/internal/model"
	xmlparser "github.com/rezonia/nfe-processor/internal/parser/xml"
)

func mustLoad(t *testing.T, raw string) *etree.Element {
	t.Helper()
	doc, err := xmlparser.Load([]byte(raw))
	require.NoError(t, err)
	return doc.Root()
}

func TestLoad_RejectsDoctype(t *testing.T) {
	tests := []string{
		`<!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]><NFe>&xxe;</NFe>`,
		`<!doctype html><NFe/>`,
	}

	for _, raw := range tests {
		_, err := xmlparser.Load([]byte(raw))
		require.Error(t, err)

		var parseErr *model.ParseError
		require.ErrorAs(t, err, &parseErr)
	}
}

func TestLoad_RejectsEmptyAndMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "<unclosed"} {
		_, err := xmlparser.Load([]byte(raw))
		require.Error(t, err, "input %q should fail", raw)
	}
}

func TestFindDescendant_IgnoresNamespacePrefix(t *testing.T) {
	root := mustLoad(t, `<a:root xmlns:a="urn:x"><a:mid><a:leaf>v</a:leaf></a:mid></a:root>`)

	leaf := xmlparser.FindDescendant(root, "leaf")
	require.NotNil(t, leaf)
	assert.Equal(t, "v", leaf.Text())

	assert.Nil(t, xmlparser.FindDescendant(root, "missing"))
	assert.Nil(t, xmlparser.FindDescendant(nil, "leaf"))
}

func TestFindDescendants_DocumentOrder(t *testing.T) {
	root := mustLoad(t, `<root><det n="1"/><sub><det n="2"/></sub><det n="3"/></root>`)

	dets := xmlparser.FindDescendants(root, "det")
	require.Len(t, dets, 3)
	assert.Equal(t, "1", dets[0].SelectAttrValue("n", ""))
	assert.Equal(t, "2", dets[1].SelectAttrValue("n", ""))
	assert.Equal(t, "3", dets[2].SelectAttrValue("n", ""))
}

func TestText_TrimsWhitespace(t *testing.T) {
	root := mustLoad(t, `<root><name>  Alfa Ltda  </name></root>`)
	assert.Equal(t, "Alfa Ltda", xmlparser.Text(root, "name"))
	assert.Equal(t, "", xmlparser.Text(root, "missing"))
}

func TestFirstOf_FallbackOrder(t *testing.T) {
	root := mustLoad(t, `<root><b>second</b><c>third</c></root>`)

	assert.Equal(t, "second", xmlparser.FirstOf(root, "a", "b", "c"))
	assert.Equal(t, "third", xmlparser.FirstOf(root, "a", "c"))
	assert.Equal(t, "", xmlparser.FirstOf(root, "a", "x"))
}

func TestAmount_ZeroOnAbsence(t *testing.T) {
	root := mustLoad(t, `<root><v>12.34</v><bad>abc</bad></root>`)

	assert.True(t, xmlparser.Amount(root, "v").Equal(decimal.RequireFromString("12.34")))
	assert.True(t, xmlparser.Amount(root, "missing").IsZero())
	assert.True(t, xmlparser.Amount(root, "bad").IsZero())
}
