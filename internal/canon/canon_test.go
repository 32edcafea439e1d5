package canon

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
		{"number", json.Number("42"), "42"},
		{"decimal number", json.Number("66.7"), "66.7"},
		{"int", 7, "7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"a": []any{json.Number("1"), "x"}}, `{"a":[1,"x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	got, err := Marshal(map[string]any{"zebra": 1, "alpha": 2, "beta": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(got))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FFFD
	// in UTF-16 even though the UTF-8 bytes sort after.
	keys := SortedKeys(map[string]any{"\uFFFD": 1, "\U0001F600": 2, "a": 3})
	assert.Equal(t, []string{"a", "\U0001F600", "\uFFFD"}, keys)
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	got, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalNFC(t *testing.T) {
	got, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalLineSeparators(t *testing.T) {
	got, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	literal, err := Marshal(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(literal))
}

func TestMarshalRejectsFloats(t *testing.T) {
	_, err := Marshal(map[string]any{"rate": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestEncodeStructs(t *testing.T) {
	type stats struct {
		Rate  float64 `json:"rate"`
		Count int     `json:"count"`
		Name  string  `json:"name"`
	}
	got, err := Encode(stats{Rate: 66.7, Count: 3, Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"name":"n","rate":66.7}`, string(got))
}

func TestHashDeterministicAndDomainSeparated(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two"}
	b := map[string]any{"y": "two", "x": 1}

	h1, err := Hash(DomainState, a)
	require.NoError(t, err)
	h2, err := Hash(DomainState, b)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := Hash(DomainAction, a)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestMustHashPanicsOnUnmarshalable(t *testing.T) {
	assert.Panics(t, func() { MustHash(DomainState, make(chan int)) })
}
