package payroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapByCodeVariants(t *testing.T) {
	mapping := MapByCode([]Record{
		{Code: "00123", Name: "Ana", DNI: "11111111a"},
	})

	for _, key := range []string{"00123", "123"} {
		details, ok := Lookup(key, mapping)
		require.True(t, ok, "key %q should resolve", key)
		assert.Equal(t, "Ana", details.Name)
	}
}

func TestMapByCodeCanonicalBeatsVariant(t *testing.T) {
	// "123" is both a canonical code and the zero-stripped variant of
	// "00123"; the explicit record must win regardless of feed order.
	mapping := MapByCode([]Record{
		{Code: "00123", Name: "Variant Owner"},
		{Code: "123", Name: "Canonical Owner"},
	})

	details, ok := Lookup("123", mapping)
	require.True(t, ok)
	assert.Equal(t, "Canonical Owner", details.Name)

	details, ok = Lookup("00123", mapping)
	require.True(t, ok)
	assert.Equal(t, "Variant Owner", details.Name)
}

func TestMapByCodeSkipsEmptyCodes(t *testing.T) {
	mapping := MapByCode([]Record{{Code: "  ", Name: "Nameless"}})
	assert.Empty(t, mapping)
}

func TestLookupVariantOrder(t *testing.T) {
	mapping := Map{
		"ab1": {Name: "lower"},
		"AB1": {Name: "upper"},
		"07":  {Name: "padded"},
		"7":   {Name: "stripped"},
	}

	details, ok := Lookup("ab1", mapping)
	require.True(t, ok)
	assert.Equal(t, "lower", details.Name)

	// Upper-case variant tried before zero-stripping.
	details, ok = Lookup("aB1", mapping)
	require.True(t, ok)
	assert.Equal(t, "upper", details.Name)

	details, ok = Lookup("007", mapping)
	require.True(t, ok)
	assert.Equal(t, "stripped", details.Name)
}

func TestLookupMisses(t *testing.T) {
	mapping := Map{"1": {Name: "one"}}

	_, ok := Lookup("", mapping)
	assert.False(t, ok)
	_, ok = Lookup("   ", mapping)
	assert.False(t, ok)
	_, ok = Lookup("2", mapping)
	assert.False(t, ok)
	// An all-zero identifier has no non-empty stripped form.
	_, ok = Lookup("000", mapping)
	assert.False(t, ok)
}

func TestMapByDNI(t *testing.T) {
	mapping := MapByDNI([]Record{
		{DNI: "12345678z", Name: "Ana"},
		{DNI: "", Name: "Skipped"},
	})

	details, ok := Lookup("12345678Z", mapping)
	require.True(t, ok)
	assert.Equal(t, "Ana", details.Name)

	// DNIs are never zero-stripped on the indexing side.
	_, zeroStripped := mapping["12345678z"[1:]]
	assert.False(t, zeroStripped)
}
