package slonik

import (
	"fmt"
	"math"
)

// PrimitiveValue is a value that may appear in the flattened bind-value
// list produced by the interpreter. It is a closed set: every
// implementation lives in this file, so a type switch over PrimitiveValue
// is exhaustive.
type PrimitiveValue interface {
	isPrimitiveValue()
}

type NullValue struct{}

func (NullValue) isPrimitiveValue() {}

type BoolValue bool

func (BoolValue) isPrimitiveValue() {}

type IntValue int64

func (IntValue) isPrimitiveValue() {}

type FloatValue float64

func (FloatValue) isPrimitiveValue() {}

type StringValue string

func (StringValue) isPrimitiveValue() {}

type BytesValue []byte

func (BytesValue) isPrimitiveValue() {}

// ArrayValue is a nested, read-only array of primitives, used to represent
// multi-dimensional array bind values and the per-column arrays produced by
// UNNEST.
type ArrayValue []PrimitiveValue

func (ArrayValue) isPrimitiveValue() {}

// NewPrimitive validates and wraps a Go value as a PrimitiveValue. Every
// caller-supplied value passes through it before reaching the bind-value
// list; the interpreter builds BytesValue, StringValue and ArrayValue
// directly only from data it has already validated or produced itself.
// Rejects non-finite numbers, and any type outside the closed set (no
// objects, no functions).
func NewPrimitive(v any) (PrimitiveValue, error) {
	switch t := v.(type) {
	case nil:
		return NullValue{}, nil
	case PrimitiveValue:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float32:
		return newFloat(float64(t))
	case float64:
		return newFloat(t)
	case string:
		return StringValue(t), nil
	case []byte:
		return BytesValue(t), nil
	case []any:
		out := make(ArrayValue, len(t))
		for i, member := range t {
			pv, err := NewPrimitive(member)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	default:
		return nil, &InvalidInputError{baseError: baseError{}, Reason: fmt.Sprintf("value of type %T is not a valid PrimitiveValue", v)}
	}
}

func newFloat(f float64) (PrimitiveValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &InvalidInputError{baseError: baseError{}, Reason: "non-finite numbers (NaN, +Inf, -Inf) are not valid bind values"}
	}
	return FloatValue(f), nil
}

// primitiveSlice converts a slice of Go values into PrimitiveValues,
// returning the first validation error encountered.
func primitiveSlice(values []any) ([]PrimitiveValue, error) {
	out := make([]PrimitiveValue, len(values))
	for i, v := range values {
		pv, err := NewPrimitive(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = pv
	}
	return out, nil
}
