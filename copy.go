package slonik

import (
	"fmt"
	"strings"

	"context"
)

// CopyFromBinary builds a COPY ... FROM STDIN BINARY statement for table
// and columns and hands the already-typed tuples to the driver, which
// owns the actual binary wire encoding (component H, the Copy executor).
// slonik's job stops at validating and converting each cell to a
// PrimitiveValue; everything past that is the Driver's concern, same as
// Execute.
func CopyFromBinary(ctx context.Context, engine *Engine, connID ConnectionID, table string, columns []string, columnTypes []TypeName, rows [][]any) (CopyResult, error) {
	if len(columns) != len(columnTypes) {
		return CopyResult{}, &InvalidInputError{Reason: "copyFromBinary: columns and columnTypes must be the same length"}
	}

	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN BINARY", quoteIdentifierPath(table), strings.Join(quotedCols, ", "))

	tuples := make([][]PrimitiveValue, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return CopyResult{}, &InvalidInputError{Reason: fmt.Sprintf("copyFromBinary: row %d has %d values, expected %d", i, len(row), len(columns))}
		}
		values, err := primitiveSlice(row)
		if err != nil {
			return CopyResult{}, err
		}
		tuples[i] = values
	}

	types := make([]string, len(columnTypes))
	for i, t := range columnTypes {
		types[i] = string(t)
	}

	result, err := engine.Driver.CopyInBinary(ctx, connID, sql, types, tuples)
	if err != nil {
		return CopyResult{}, mapDriverError(&QueryContext{}, Query{SQL: sql}, err)
	}
	return result, nil
}

func quoteIdentifierPath(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
