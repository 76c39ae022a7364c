package slonik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArrayLiteralScalar(t *testing.T) {
	out, err := parseArrayLiteral("{1,2,3}", parseInt)
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, out)
}

func TestParseArrayLiteralWithNullAndQuotedComma(t *testing.T) {
	out, err := parseArrayLiteral(`{NULL,"a,b","NULL"}`, parseText)
	require.NoError(t, err)
	require.Equal(t, []any{nil, "a,b", "NULL"}, out)
}

func TestParseArrayLiteralNested(t *testing.T) {
	out, err := parseArrayLiteral("{{1,2},{3,4}}", parseInt)
	require.NoError(t, err)
	require.Equal(t, []any{
		[]any{int64(1), int64(2)},
		[]any{int64(3), int64(4)},
	}, out)
}

func TestParseArrayLiteralEmpty(t *testing.T) {
	out, err := parseArrayLiteral("{}", parseText)
	require.NoError(t, err)
	require.Equal(t, []any{}, out)
}

func TestTypeRegistryParsesIntArrayColumn(t *testing.T) {
	registry := NewTypeRegistry()
	v, err := registry.parseColumn(FieldDescription{Name: "ids", DataTypeOID: OidInt4Array}, "{1,2,3}")
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, v)
}

func TestTypeRegistryParsesArrayColumnByName(t *testing.T) {
	registry := NewTypeRegistry()
	v, err := registry.parseColumn(FieldDescription{Name: "tags", DataTypeName: "_text"}, `{"a","b"}`)
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, v)
}
