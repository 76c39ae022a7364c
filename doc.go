// Package slonik is a PostgreSQL client core built around safe SQL
// composition and typed result parsing.
//
// It does not speak the PostgreSQL wire protocol itself. Callers supply a
// Driver (see driver.go) that does; slonik owns the parts that sit above
// that boundary: the SQL token algebra and interpreter, the row parser and
// type registry, the pool and transaction lifecycle, and the execution
// pipeline with its interceptor chain and retry policies.
package slonik
