package slonik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpretSimpleQuery(t *testing.T) {
	tok, err := SQL([]string{"SELECT * FROM users WHERE id = ", ""}, 42)
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users WHERE id = $1", query.SQL)
	require.Equal(t, []PrimitiveValue{IntValue(42)}, query.Values)
}

func TestInterpretNestedIdentifier(t *testing.T) {
	tok, err := SQL([]string{"SELECT ", " FROM ", ""}, Identifier("name"), Identifier("public", "users"))
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, `SELECT "name" FROM "public"."users"`, query.SQL)
	require.Empty(t, query.Values)
}

func TestInterpretArray(t *testing.T) {
	tok, err := SQL([]string{"SELECT * FROM users WHERE id = ANY(", ")"}, Array([]any{1, 2, 3}, "int4"))
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users WHERE id = ANY($1::int4[])", query.SQL)
	require.Len(t, query.Values, 1)
	require.IsType(t, ArrayValue{}, query.Values[0])
}

func TestInterpretJSONDeterministic(t *testing.T) {
	tok, err := SQL([]string{"SELECT ", "::jsonb"}, JSONB(map[string]any{"b": 1, "a": 2}))
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, `SELECT $1::jsonb::jsonb`, query.SQL)
	require.Equal(t, StringValue(`{"a":2,"b":1}`), query.Values[0])
}

func TestInterpretJSONRejectsCycles(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	tok, err := SQL([]string{"SELECT ", ""}, JSON(cyclic))
	require.NoError(t, err)

	_, err = Interpret(tok)
	require.Error(t, err)
}

func TestInterpretUnnest(t *testing.T) {
	tok, err := SQL(
		[]string{"INSERT INTO t (a, b) SELECT * FROM ", ""},
		Unnest([][]any{{1, "x"}, {2, "y"}}, []TypeName{"int4", "text"}),
	)
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO t (a, b) SELECT * FROM unnest($1::int4[], $2::text[])", query.SQL)
	require.Len(t, query.Values, 2)
}

func TestInterpretUnnestOfExprColumnType(t *testing.T) {
	schemaType, err := SQL([]string{"public.money_type"})
	require.NoError(t, err)

	tok, err := SQL(
		[]string{"INSERT INTO t (a, b) SELECT * FROM ", ""},
		UnnestOfExpr([][]any{{1, "x"}, {2, "y"}}, []UnnestColumnType{
			UnnestColumn("int4"),
			UnnestColumnExpr(schemaType),
		}),
	)
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO t (a, b) SELECT * FROM unnest($1::int4[], $2::public.money_type[])", query.SQL)
	require.Len(t, query.Values, 2)
}

func TestInterpretUnnestWidthMismatch(t *testing.T) {
	tok, err := SQL(
		[]string{"SELECT * FROM ", ""},
		Unnest([][]any{{1, "x"}, {2}}, []TypeName{"int4", "text"}),
	)
	require.NoError(t, err)

	_, err = Interpret(tok)
	require.Error(t, err)
	require.IsType(t, &InvalidInputError{}, err)
}

func TestInterpretJoin(t *testing.T) {
	glue, err := SQL([]string{", "})
	require.NoError(t, err)

	members := []any{1, 2, 3}
	joined, err := Join(toAny(members), glue)
	require.NoError(t, err)

	tok, err := SQL([]string{"SELECT * FROM t WHERE id IN (", ")"}, joined)
	require.NoError(t, err)

	query, err := Interpret(tok)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM t WHERE id IN ($1, $2, $3)", query.SQL)
	require.Len(t, query.Values, 3)
}

func toAny(vs []any) []any { return vs }
