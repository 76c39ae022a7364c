package slonik

import (
	"strconv"
	"strings"
)

// SQL is the builder's tagged-template entry point. fragments and values
// must satisfy len(fragments) == len(values)+1 -- the same shape a tagged
// template produces: literal, value, literal, value, ..., literal. Each
// value may be a PrimitiveValue-convertible Go value or another SqlToken;
// classification happens here so the interpreter never has to guess.
//
// Go has no tagged templates, so this is the documented stand-in: callers
// (or a thin generated call site) pass the fragment list and values
// explicitly instead of writing sql`...${x}...`.
func SQL(fragments []string, values ...any) (RawToken, error) {
	if len(fragments) != len(values)+1 {
		return RawToken{}, &InvalidInputError{Reason: "fragments must have exactly one more element than values"}
	}

	var b strings.Builder
	b.WriteString(fragments[0])
	for i := range values {
		b.WriteString(localPlaceholder(i + 1))
		b.WriteString(fragments[i+1])
	}

	return RawToken{SQL: b.String(), Values: values}, nil
}

// Type returns a builder whose SQL attaches schema to the produced
// RawToken, per the type(schema) combinator in spec §4.A.
func Type(schema RowSchema) func(fragments []string, values ...any) (RawToken, error) {
	return func(fragments []string, values ...any) (RawToken, error) {
		tok, err := SQL(fragments, values...)
		if err != nil {
			return RawToken{}, err
		}
		tok.RowSchema = schema
		return tok, nil
	}
}

// Identifier constructs an IdentifierToken from one or more dot-joined
// names, e.g. Identifier("public", "users") -> "public"."users".
func Identifier(names ...string) IdentifierToken {
	return IdentifierToken{Names: names}
}

// Array constructs an ArrayToken typed memberType[].
func Array(values []any, memberType TypeName) ArrayToken {
	return ArrayToken{MemberType: memberType, Values: values}
}

// ArrayOfExpr is Array's variant for a member type expressed as raw SQL
// (e.g. a schema-qualified composite type) rather than a bare name.
func ArrayOfExpr(values []any, memberType RawToken) ArrayToken {
	return ArrayToken{MemberExpr: &memberType, Values: values}
}

// Binary constructs a bytea bind parameter.
func Binary(data []byte) BinaryToken {
	return BinaryToken{Data: data}
}

// JSON constructs a ::json bind parameter with deterministic key ordering.
func JSON(value any) JSONToken {
	return JSONToken{Value: value, Binary: false}
}

// JSONB constructs a ::jsonb bind parameter with deterministic key ordering.
func JSONB(value any) JSONToken {
	return JSONToken{Value: value, Binary: true}
}

// Join concatenates members' rendered SQL with glue's SQL interleaved.
// glue must have no values.
func Join(members []any, glue RawToken) (ListToken, error) {
	if len(glue.Values) != 0 {
		return ListToken{}, &InvalidInputError{Reason: "glue must be a Raw token with zero values"}
	}

	lm := make([]ListMember, len(members))
	for i, m := range members {
		if raw, ok := m.(RawToken); ok {
			lm[i] = ListMember{Raw: &raw}
		} else {
			lm[i] = ListMember{Value: m}
		}
	}
	return ListToken{Members: lm, Glue: glue}, nil
}

// Unnest constructs an UnnestToken from bare column type names. Width
// validation (each tuple's length must equal len(columnTypes)) happens in
// the interpreter, where the transpose also happens.
func Unnest(tuples [][]any, columnTypes []TypeName) UnnestToken {
	cols := make([]UnnestColumnType, len(columnTypes))
	for i, t := range columnTypes {
		cols[i] = UnnestColumn(t)
	}
	return UnnestToken{Tuples: tuples, ColumnTypes: cols}
}

// UnnestOfExpr is Unnest's variant allowing any column's type to be
// expressed as raw SQL instead of a bare name, mirroring ArrayOfExpr.
func UnnestOfExpr(tuples [][]any, columnTypes []UnnestColumnType) UnnestToken {
	return UnnestToken{Tuples: tuples, ColumnTypes: columnTypes}
}

// UnnestColumn constructs the bare-type-name variant of UnnestColumnType.
func UnnestColumn(name TypeName) UnnestColumnType {
	return UnnestColumnType{Name: name}
}

// UnnestColumnExpr constructs the raw-SQL-expression variant of
// UnnestColumnType, for a column type expressed as a schema-qualified
// composite type rather than a bare name.
func UnnestColumnExpr(expr RawToken) UnnestColumnType {
	return UnnestColumnType{Expr: &expr}
}

// Literal wraps a Go value as a primitive, validating it eagerly so
// builder-time mistakes surface at the call site rather than deep inside
// the interpreter.
func Literal(v any) (PrimitiveValue, error) {
	return NewPrimitive(v)
}

func localPlaceholder(n int) string {
	return "$slonik_" + strconv.Itoa(n)
}
