// Package uuidext is an opt-in TypeParser that decodes PostgreSQL uuid
// columns as github.com/gofrs/uuid.UUID values.
package uuidext

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/lorentzlasson/slonik"
)

// TypeParser returns a slonik.TypeParser for the uuid OID. Install it via
// ClientConfiguration.TypeParsers; without it, uuid columns parse as
// plain strings (the registry's fallback for unregistered OIDs).
func TypeParser() slonik.TypeParser {
	return slonik.TypeParser{
		Name: "uuid",
		OID:  slonik.OidUUID,
		Parse: func(raw any) (any, error) {
			s, ok := textOf(raw)
			if !ok {
				return nil, fmt.Errorf("uuidext: expected text-encoded column value, got %T", raw)
			}
			id, err := uuid.FromString(s)
			if err != nil {
				return nil, fmt.Errorf("uuidext: invalid value %q: %w", s, err)
			}
			return id, nil
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
