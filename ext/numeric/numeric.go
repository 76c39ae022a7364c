// Package numeric is an opt-in TypeParser that decodes PostgreSQL numeric
// columns as github.com/shopspring/decimal.Decimal instead of the core
// registry's default github.com/cockroachdb/apd.Decimal, for callers who
// already standardize on shopspring/decimal elsewhere in their codebase.
package numeric

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lorentzlasson/slonik"
)

// TypeParser returns a slonik.TypeParser for the numeric OID that yields
// decimal.Decimal values. Install it via
// ClientConfiguration.TypeParsers to override the built-in apd-backed
// parser.
func TypeParser() slonik.TypeParser {
	return slonik.TypeParser{
		Name: "numeric",
		OID:  slonik.OidNumeric,
		Parse: func(raw any) (any, error) {
			s, ok := textOf(raw)
			if !ok {
				return nil, fmt.Errorf("numeric: expected text-encoded column value, got %T", raw)
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("numeric: invalid value %q: %w", s, err)
			}
			return d, nil
		},
	}
}

func textOf(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
