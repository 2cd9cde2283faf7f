package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_NoHTMLEscape(t *testing.T) {
	out, err := MarshalJSON(map[string]string{"comparator": ">=", "value": "a&b"})
	require.NoError(t, err)
	assert.Equal(t, `{"comparator":">=","value":"a&b"}`, string(out), "output should keep raw characters")
}

func TestMarshalJSON_StructOrder(t *testing.T) {
	type doc struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	out, err := MarshalJSON(doc{B: "x", A: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"b":"x","a":1}`, string(out), "struct field order should be preserved")
}
