package slonik

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Query is the flattened output of the interpreter: a single statement
// ready for the driver, plus its re-indexed bind values.
type Query struct {
	SQL    string
	Values []PrimitiveValue
}

var localPlaceholderPattern = regexp.MustCompile(`\$slonik_(\d+)`)

// interpretState accumulates the flat, globally-indexed value list across
// the whole recursive descent.
type interpretState struct {
	values []PrimitiveValue
}

// Interpret flattens a token tree rooted at a Raw token into a single
// parameterized statement. This is the entry point a query call (pipeline.go)
// uses to turn a user-supplied SqlToken into wire-ready SQL.
func Interpret(root RawToken) (Query, error) {
	state := &interpretState{}
	sql, err := interpretToken(root, state)
	if err != nil {
		return Query{}, err
	}
	return Query{SQL: sql, Values: state.values}, nil
}

func interpretToken(tok SqlToken, state *interpretState) (string, error) {
	switch t := tok.(type) {
	case RawToken:
		return interpretRaw(t, state)
	case IdentifierToken:
		return renderIdentifier(t), nil
	case ArrayToken:
		return interpretArray(t, state)
	case BinaryToken:
		return interpretBinary(t, state)
	case JSONToken:
		return interpretJSON(t, state)
	case ListToken:
		return interpretList(t, state)
	case UnnestToken:
		return interpretUnnest(t, state)
	default:
		return "", &UnexpectedStateError{Reason: fmt.Sprintf("unknown SqlToken implementation %T", tok)}
	}
}

func interpretRaw(t RawToken, state *interpretState) (string, error) {
	matches := localPlaceholderPattern.FindAllStringSubmatchIndex(t.SQL, -1)

	var out strings.Builder
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		groupStart, groupEnd := m[2], m[3]

		out.WriteString(t.SQL[prev:start])

		n, err := strconv.Atoi(t.SQL[groupStart:groupEnd])
		if err != nil || n < 1 || n > len(t.Values) {
			return "", &InvalidInputError{Reason: fmt.Sprintf("placeholder %s has no corresponding value", t.SQL[start:end])}
		}

		local := t.Values[n-1]
		rendered, err := interpretLocalValue(local, state)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)

		prev = end
	}
	out.WriteString(t.SQL[prev:])

	return out.String(), nil
}

func interpretLocalValue(local any, state *interpretState) (string, error) {
	if nested, ok := local.(SqlToken); ok {
		return interpretToken(nested, state)
	}

	pv, err := NewPrimitive(local)
	if err != nil {
		return "", err
	}
	return appendValue(state, pv), nil
}

func appendValue(state *interpretState, pv PrimitiveValue) string {
	state.values = append(state.values, pv)
	return "$" + strconv.Itoa(len(state.values))
}

func renderIdentifier(t IdentifierToken) string {
	parts := make([]string, len(t.Names))
	for i, name := range t.Names {
		parts[i] = `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func interpretArray(t ArrayToken, state *interpretState) (string, error) {
	elements, err := primitiveSlice(t.Values)
	if err != nil {
		return "", err
	}
	placeholder := appendValue(state, ArrayValue(elements))

	if t.MemberExpr != nil {
		exprSQL, err := interpretToken(*t.MemberExpr, state)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s::%s[]", placeholder, exprSQL), nil
	}
	return fmt.Sprintf("%s::%s[]", placeholder, t.MemberType), nil
}

func interpretBinary(t BinaryToken, state *interpretState) (string, error) {
	placeholder := appendValue(state, BytesValue(t.Data))
	return placeholder + "::bytea", nil
}

func interpretJSON(t JSONToken, state *interpretState) (string, error) {
	encoded, err := marshalJSONDeterministic(t.Value)
	if err != nil {
		return "", &InvalidInputError{Reason: "cannot serialize JSON value: " + err.Error()}
	}

	placeholder := appendValue(state, StringValue(encoded))
	if t.Binary {
		return placeholder + "::jsonb", nil
	}
	return placeholder + "::json", nil
}

func interpretList(t ListToken, state *interpretState) (string, error) {
	if len(t.Glue.Values) != 0 {
		return "", &InvalidInputError{Reason: "glue must be a Raw token with zero values"}
	}

	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		var rendered string
		var err error
		switch {
		case m.Raw != nil:
			rendered, err = interpretRaw(*m.Raw, state)
		default:
			rendered, err = interpretLocalValue(m.Value, state)
		}
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}

	return strings.Join(parts, t.Glue.SQL), nil
}

func interpretUnnest(t UnnestToken, state *interpretState) (string, error) {
	width := len(t.ColumnTypes)
	columns := make([][]PrimitiveValue, width)
	for i := range columns {
		columns[i] = make([]PrimitiveValue, 0, len(t.Tuples))
	}

	for rowIdx, tuple := range t.Tuples {
		if len(tuple) != width {
			return "", &InvalidInputError{Reason: fmt.Sprintf("unnest tuple %d has %d values, expected %d", rowIdx, len(tuple), width)}
		}
		for colIdx, v := range tuple {
			pv, err := NewPrimitive(v)
			if err != nil {
				return "", err
			}
			columns[colIdx] = append(columns[colIdx], pv)
		}
	}

	placeholders := make([]string, width)
	for i, col := range columns {
		ph := appendValue(state, ArrayValue(col))
		typeSQL, err := interpretUnnestColumnType(t.ColumnTypes[i], state)
		if err != nil {
			return "", err
		}
		placeholders[i] = fmt.Sprintf("%s::%s[]", ph, typeSQL)
	}

	return "unnest(" + strings.Join(placeholders, ", ") + ")", nil
}

// interpretUnnestColumnType renders one UnnestColumnType, recursing into
// state the same way ArrayToken.MemberExpr does for a raw expression.
func interpretUnnestColumnType(ct UnnestColumnType, state *interpretState) (string, error) {
	if ct.Expr != nil {
		return interpretToken(*ct.Expr, state)
	}
	return string(ct.Name), nil
}

// marshalJSONDeterministic serializes v with stable key ordering (Go's
// encoding/json already sorts map keys) and fails on cycles, detected up
// front by checkForCycles before encoding/json walks the value.
func marshalJSONDeterministic(v any) (string, error) {
	if err := checkForCycles(reflect.ValueOf(v), map[uintptr]bool{}); err != nil {
		return "", err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkForCycles(v reflect.Value, seen map[uintptr]bool) error {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return fmt.Errorf("circular reference detected")
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkForCycles(v.Elem(), seen)
	}

	switch v.Kind() {
	case reflect.Ptr:
		return checkForCycles(v.Elem(), seen)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkForCycles(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkForCycles(v.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			if err := checkForCycles(v.Field(i), seen); err != nil {
				return err
			}
		}
	}

	return nil
}
