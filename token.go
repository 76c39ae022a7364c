package slonik

// SqlToken is a node in the SQL fragment tree. It is a sealed interface:
// every implementation lives in this file, so the interpreter (interpreter.go)
// can type-switch over it exhaustively. Tokens are immutable after
// construction.
type SqlToken interface {
	isSqlToken()
}

// RawToken is produced by SQL (the builder's tagged-template entry
// point). SQL contains positional local placeholders of the form
// $slonik_N, where N indexes into Values. A local value is either a
// PrimitiveValue (leaf) or another SqlToken (nested expression).
type RawToken struct {
	SQL       string
	Values    []any // each element is PrimitiveValue or SqlToken
	RowSchema RowSchema
}

func (RawToken) isSqlToken() {}

// IdentifierToken renders as "a"."b"... with embedded quotes doubled.
type IdentifierToken struct {
	Names []string
}

func (IdentifierToken) isSqlToken() {}

// TypeName is a bare PostgreSQL type name, e.g. "int4", "text".
type TypeName string

// ArrayToken renders as a single bind parameter typed memberType[]. The
// member type is either a bare TypeName or a nested raw SQL fragment (for
// e.g. a fully-qualified composite type).
type ArrayToken struct {
	MemberType TypeName
	MemberExpr *RawToken // alternative to MemberType; nil unless set via ArrayOfExpr
	Values     []any     // PrimitiveValue elements
}

func (ArrayToken) isSqlToken() {}

// BinaryToken is a single bytea bind parameter.
type BinaryToken struct {
	Data []byte
}

func (BinaryToken) isSqlToken() {}

// JSONToken serializes Value with stable key ordering. Binary selects
// between ::json (false) and ::jsonb (true).
type JSONToken struct {
	Value  any
	Binary bool
}

func (JSONToken) isSqlToken() {}

// ListMember is one element of a ListToken: a Raw fragment, a primitive
// value, or any other token.
type ListMember struct {
	Raw   *RawToken
	Value any // PrimitiveValue or SqlToken, set when Raw is nil
}

// ListToken renders each member joined by Glue's SQL. Glue must be a Raw
// token with no values.
type ListToken struct {
	Members []ListMember
	Glue    RawToken
}

func (ListToken) isSqlToken() {}

// UnnestColumnType is one column's type in an UnnestToken: either a bare
// TypeName or a raw SQL expression (e.g. a schema-qualified composite
// type), the same TypeName|Raw union spec §3 documents -- mirroring
// ArrayToken's MemberType/MemberExpr split, but per-column rather than
// once for the whole token.
type UnnestColumnType struct {
	Name TypeName
	Expr *RawToken // alternative to Name; nil unless set via UnnestColumnExpr
}

// UnnestToken renders unnest($1::T1[], ..., $k::Tk[]); each tuples row
// must have len(ColumnTypes) values.
type UnnestToken struct {
	Tuples      [][]any // each inner slice holds PrimitiveValue-convertible values
	ColumnTypes []UnnestColumnType
}

func (UnnestToken) isSqlToken() {}
