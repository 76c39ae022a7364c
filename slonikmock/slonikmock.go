// Package slonikmock is the public-facing in-memory driver for testing
// code that consumes slonik, re-exporting internal/mockdriver the same
// way the teacher's pgxmock-adjacent testingadapter exposes an internal
// helper for external test use.
package slonikmock

import (
	"github.com/lorentzlasson/slonik"
	"github.com/lorentzlasson/slonik/internal/mockdriver"
)

// Driver is an in-memory slonik.Driver: register expected statements with
// Handle/HandleFunc, then build a Pool/Engine around it.
type Driver = mockdriver.Driver

// Responder computes a result or error for one registered statement.
type Responder = mockdriver.Responder

// New returns an empty Driver with no registered statements.
func New() *Driver { return mockdriver.New() }

// NewEngine wires a fresh Driver into a slonik.Engine under poolID "mock",
// using slonik.DefaultClientConfiguration() unless config is given.
func NewEngine(config *slonik.ClientConfiguration) (*Driver, *slonik.Engine) {
	d := New()
	cfg := slonik.DefaultClientConfiguration()
	if config != nil {
		cfg = *config
	}
	return d, slonik.NewEngine(d, cfg, slonik.PoolID("mock"))
}
