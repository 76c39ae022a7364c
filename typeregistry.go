package slonik

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd"
)

// PostgreSQL OIDs for common built-in types, mirroring the teacher's own
// OID table (values.go). The registry parses all of them out of the box
// except date and uuid, which have no built-in parser.
const (
	OidBool        uint32 = 16
	OidBytea       uint32 = 17
	OidInt8        uint32 = 20
	OidInt2        uint32 = 21
	OidInt4        uint32 = 23
	OidText        uint32 = 25
	OidJSON        uint32 = 114
	OidFloat4      uint32 = 700
	OidFloat8      uint32 = 701
	OidVarchar     uint32 = 1043
	OidDate        uint32 = 1082
	OidTimestamp   uint32 = 1114
	OidTimestampTz uint32 = 1184
	OidInterval    uint32 = 1186
	OidNumeric     uint32 = 1700
	OidUUID        uint32 = 2950
	OidJSONB       uint32 = 3802
)

// PostgreSQL OIDs for the array variant of each scalar type above. The
// backend's naming convention prefixes the element type's name with "_"
// (e.g. "_int4" for an int4[] column); the array registrations in
// builtinTypeParsers follow that convention for name-based lookup too.
const (
	OidBoolArray        uint32 = 1000
	OidByteaArray       uint32 = 1001
	OidInt2Array        uint32 = 1005
	OidInt4Array        uint32 = 1007
	OidTextArray        uint32 = 1009
	OidJSONArray        uint32 = 199
	OidVarcharArray     uint32 = 1015
	OidInt8Array        uint32 = 1016
	OidFloat4Array      uint32 = 1021
	OidFloat8Array      uint32 = 1022
	OidTimestampArray   uint32 = 1115
	OidDateArray        uint32 = 1182
	OidTimestampTzArray uint32 = 1185
	OidIntervalArray    uint32 = 1187
	OidNumericArray     uint32 = 1231
	OidUUIDArray        uint32 = 2951
	OidJSONBArray       uint32 = 3807
)

// TypeParser converts a raw column value (as reported by the driver -- a
// string or []byte in the text protocol) into a Go value. Name is the
// PostgreSQL type name used for registration by name (e.g. for array
// element types); OID is used for registration by wire OID.
type TypeParser struct {
	Name  string
	OID   uint32
	Parse func(raw any) (any, error)
}

// TypeRegistry maps PostgreSQL OIDs and type names to parser functions.
// It is immutable after a pool is constructed: built-ins are installed at
// NewTypeRegistry time, and any caller-supplied TypeParsers (from
// ClientConfiguration.TypeParsers) are merged in at that point, never
// mutated afterward.
type TypeRegistry struct {
	byOID  map[uint32]TypeParser
	byName map[string]TypeParser
}

// NewTypeRegistry builds a registry with the built-in parsers installed,
// then overlays extra (typically from ClientConfiguration.TypeParsers),
// letting callers override or add entries.
func NewTypeRegistry(extra ...TypeParser) *TypeRegistry {
	r := &TypeRegistry{
		byOID:  map[uint32]TypeParser{},
		byName: map[string]TypeParser{},
	}
	for _, p := range builtinTypeParsers() {
		r.register(p)
	}
	for _, p := range extra {
		r.register(p)
	}
	return r
}

func (r *TypeRegistry) register(p TypeParser) {
	if p.OID != 0 {
		r.byOID[p.OID] = p
	}
	if p.Name != "" {
		r.byName[p.Name] = p
	}
}

// parseColumn dispatches on the field's declared OID, falling back to the
// type name, and finally to returning the raw value unparsed (a
// conservative default rather than an error, since an un-registered type
// is not itself a protocol violation).
func (r *TypeRegistry) parseColumn(field FieldDescription, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	if p, ok := r.byOID[field.DataTypeOID]; ok {
		return p.Parse(raw)
	}
	if p, ok := r.byName[field.DataTypeName]; ok {
		return p.Parse(raw)
	}
	return raw, nil
}

func builtinTypeParsers() []TypeParser {
	return []TypeParser{
		{Name: "bool", OID: OidBool, Parse: parseBool},
		{Name: "bytea", OID: OidBytea, Parse: parseBytea},
		{Name: "int2", OID: OidInt2, Parse: parseInt},
		{Name: "int4", OID: OidInt4, Parse: parseInt},
		{Name: "int8", OID: OidInt8, Parse: parseInt},
		{Name: "float4", OID: OidFloat4, Parse: parseFloat},
		{Name: "float8", OID: OidFloat8, Parse: parseFloat},
		{Name: "text", OID: OidText, Parse: parseText},
		{Name: "varchar", OID: OidVarchar, Parse: parseText},
		{Name: "json", OID: OidJSON, Parse: parseText},
		{Name: "jsonb", OID: OidJSONB, Parse: parseText},
		{Name: "numeric", OID: OidNumeric, Parse: parseNumeric},
		{Name: "timestamptz", OID: OidTimestampTz, Parse: parseTimestampTz},
		{Name: "timestamp", OID: OidTimestamp, Parse: parseTimestamp},
		{Name: "interval", OID: OidInterval, Parse: parseInterval},

		{Name: "_bool", OID: OidBoolArray, Parse: arrayParser(parseBool)},
		{Name: "_bytea", OID: OidByteaArray, Parse: arrayParser(parseBytea)},
		{Name: "_int2", OID: OidInt2Array, Parse: arrayParser(parseInt)},
		{Name: "_int4", OID: OidInt4Array, Parse: arrayParser(parseInt)},
		{Name: "_int8", OID: OidInt8Array, Parse: arrayParser(parseInt)},
		{Name: "_float4", OID: OidFloat4Array, Parse: arrayParser(parseFloat)},
		{Name: "_float8", OID: OidFloat8Array, Parse: arrayParser(parseFloat)},
		{Name: "_text", OID: OidTextArray, Parse: arrayParser(parseText)},
		{Name: "_varchar", OID: OidVarcharArray, Parse: arrayParser(parseText)},
		{Name: "_json", OID: OidJSONArray, Parse: arrayParser(parseText)},
		{Name: "_jsonb", OID: OidJSONBArray, Parse: arrayParser(parseText)},
		{Name: "_numeric", OID: OidNumericArray, Parse: arrayParser(parseNumeric)},
		{Name: "_timestamptz", OID: OidTimestampTzArray, Parse: arrayParser(parseTimestampTz)},
		{Name: "_timestamp", OID: OidTimestampArray, Parse: arrayParser(parseTimestamp)},
		{Name: "_interval", OID: OidIntervalArray, Parse: arrayParser(parseInterval)},
	}
}

func asText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected text-encoded column value, got %T", raw)
	}
}

func parseBool(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	return s == "t" || s == "true" || s == "1", nil
}

func parseBytea(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	s = strings.TrimPrefix(s, `\x`)
	out := make([]byte, len(s)/2)
	for i := range out {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid bytea encoding: %w", err)
		}
		out[i] = byte(b)
	}
	return out, nil
}

func parseInt(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	return strconv.ParseFloat(s, 64)
}

func parseText(raw any) (any, error) {
	return asText(raw)
}

// parseNumeric parses PostgreSQL's arbitrary-precision numeric using
// cockroachdb/apd, the same library the teacher uses internally for its
// own pgtype.Numeric. See ext/numeric for an opt-in shopspring/decimal view.
func parseNumeric(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	return d, nil
}

// parseTimestampTz parses PostgreSQL's timestamptz text output into a UTC
// time.Time, per spec §4.C ("ISO-8601 UTC").
func parseTimestampTz(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse("2006-01-02 15:04:05.999999Z07", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamptz value %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func parseTimestamp(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse("2006-01-02 15:04:05.999999", s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp value %q: %w", s, err)
	}
	return t, nil
}

// parseInterval parses PostgreSQL's interval output into a time.Duration,
// exposed to callers as an ISO-8601 duration string per spec §4.C. This
// covers the common case (no months/years component); intervals carrying
// a calendar component are returned as the raw text instead of silently
// truncated.
func parseInterval(raw any) (any, error) {
	s, err := asText(raw)
	if err != nil {
		return nil, err
	}
	if strings.Contains(s, "year") || strings.Contains(s, "mon") {
		return s, nil
	}

	d, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return s, nil
	}
	return d, nil
}

// arrayParser lifts a scalar TypeParser.Parse function into one decoding
// the backend's text-format array literal for that element type (e.g.
// "{1,2,3}" for int4[], "{NULL,\"a,b\"}" for text[]), per spec §4.C's
// "array variants" requirement.
func arrayParser(elementParse func(any) (any, error)) func(any) (any, error) {
	return func(raw any) (any, error) {
		s, err := asText(raw)
		if err != nil {
			return nil, err
		}
		return parseArrayLiteral(s, elementParse)
	}
}

// arrayElement is one comma-separated member of an array literal's body,
// tagged with whether it was double-quoted -- needed to distinguish the
// unquoted NULL keyword from the literal three-character string "NULL".
type arrayElement struct {
	text   string
	quoted bool
}

// parseArrayLiteral decodes one level of a PostgreSQL array literal into
// []any, recursing into nested "{...}" elements for multi-dimensional
// arrays and delegating every leaf element to elementParse.
func parseArrayLiteral(s string, elementParse func(any) (any, error)) ([]any, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("invalid array literal %q", s)
	}

	inner := s[1 : len(s)-1]
	if inner == "" {
		return []any{}, nil
	}

	elems := splitArrayElements(inner)
	out := make([]any, len(elems))
	for i, el := range elems {
		switch {
		case !el.quoted && el.text == "NULL":
			out[i] = nil
		case strings.HasPrefix(el.text, "{"):
			nested, err := parseArrayLiteral(el.text, elementParse)
			if err != nil {
				return nil, err
			}
			out[i] = nested
		default:
			v, err := elementParse(el.text)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	}
	return out, nil
}

// splitArrayElements splits the body of an array literal (already
// stripped of its enclosing braces) on top-level commas, honoring
// double-quoted elements (with backslash escaping) and nested braces so
// neither a quoted comma nor a nested array's commas are mistaken for a
// top-level separator.
func splitArrayElements(s string) []arrayElement {
	var elems []arrayElement
	var buf strings.Builder
	depth := 0
	inQuotes := false
	quoted := false
	escaped := false

	flush := func() {
		elems = append(elems, arrayElement{text: buf.String(), quoted: quoted})
		buf.Reset()
		quoted = false
	}

	for _, r := range s {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case inQuotes:
			switch r {
			case '\\':
				escaped = true
			case '"':
				inQuotes = false
			default:
				buf.WriteRune(r)
			}
		default:
			switch r {
			case '"':
				inQuotes = true
				quoted = true
			case '{':
				depth++
				buf.WriteRune(r)
			case '}':
				depth--
				buf.WriteRune(r)
			case ',':
				if depth == 0 {
					flush()
				} else {
					buf.WriteRune(r)
				}
			default:
				buf.WriteRune(r)
			}
		}
	}
	flush()

	return elems
}
