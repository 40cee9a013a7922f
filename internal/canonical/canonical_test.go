package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"nil", nil, "null"},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"integer literal", json.Number("9223372036854775807"), "9223372036854775807"},
		{"decimal literal", json.Number("1.50"), "1.5"},
		{"exponent literal", json.Number("1.5e0"), "1.5"},
		{"float64", 2.5, "2.5"},
		{"empty array", []any{}, "[]"},
		{"array", []any{json.Number("1"), "two", nil}, `[1,"two",null]`},
		{"empty object", map[string]any{}, "{}"},
		{"object", map[string]any{"a": json.Number("1")}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": json.Number("1"),
		"alpha": json.Number("2"),
		"beta":  json.Number("3"),
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{
			"b": json.Number("1"),
			"a": json.Number("2"),
		},
		"a": json.Number("3"),
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	result, err := Marshal("a < b && c > d")
	require.NoError(t, err)
	assert.Equal(t, `"a < b && c > d"`, string(result))
}

func TestMarshalNFCNormalization(t *testing.T) {
	// "é" as a precomposed code point vs "e" + combining acute accent.
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	a, err := Marshal(composed)
	require.NoError(t, err)
	b, err := Marshal(decomposed)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalNumberLiteralsConverge(t *testing.T) {
	// Different producers may re-serialize the same value differently.
	a, err := Marshal(json.Number("1.50"))
	require.NoError(t, err)
	b, err := Marshal(json.Number("1.5"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalUnsupportedType(t *testing.T) {
	_, err := Marshal(struct{ X int }{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
