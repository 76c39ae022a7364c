package slonik

import "fmt"

// Row is one parsed result row: an ordered set of column names paired with
// already-parsed Go values (after the Type Registry and any transformRow
// interceptors have run, and after an optional RowSchema has validated
// it).
type Row struct {
	columns []string
	values  []any
}

// NewRow constructs a Row from parallel column/value slices. Used by the
// row-parsing pipeline and by RowSchema implementations that rewrite a
// row's shape.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string { return append([]string(nil), r.columns...) }

func (r Row) Values() []any { return append([]any(nil), r.values...) }

func (r Row) Len() int { return len(r.columns) }

// Get returns the value for a named column and whether it was found.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// RowSchema validates and optionally reshapes a parsed row. A failing
// parse must return a non-nil error; the pipeline wraps it in
// SchemaValidationError along with the offending row.
type RowSchema interface {
	Parse(row Row) (Row, error)
}

// RowSchemaFunc adapts a plain function to RowSchema.
type RowSchemaFunc func(row Row) (Row, error)

func (f RowSchemaFunc) Parse(row Row) (Row, error) { return f(row) }

// parseRows runs the C-component pipeline for every row in result: column
// parsing via registry, then each registered transformRow interceptor in
// order, then the originating token's RowSchema (if any).
func parseRows(registry *TypeRegistry, fields []FieldDescription, rawRows [][]any, transformers []func(Row) (Row, error), schema RowSchema) ([]Row, error) {
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	out := make([]Row, 0, len(rawRows))
	for _, raw := range rawRows {
		if len(raw) != len(fields) {
			return nil, &UnexpectedStateError{Reason: fmt.Sprintf("row has %d values, expected %d fields", len(raw), len(fields))}
		}

		values := make([]any, len(raw))
		for i, v := range raw {
			parsed, err := registry.parseColumn(fields[i], v)
			if err != nil {
				return nil, err
			}
			values[i] = parsed
		}

		row := NewRow(columns, values)

		for _, transform := range transformers {
			var err error
			row, err = transform(row)
			if err != nil {
				return nil, err
			}
		}

		if schema != nil {
			parsed, err := schema.Parse(row)
			if err != nil {
				return nil, &SchemaValidationError{Row: row, Report: err}
			}
			row = parsed
		}

		out = append(out, row)
	}

	return out, nil
}
