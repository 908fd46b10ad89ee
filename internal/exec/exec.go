// Package exec runs compiled plans against a relational engine. The engine
// package never touches a database; everything blocking lives here.
package exec

import (
	"context"

	"github.com/tablegate/tablegate/internal/engine"
)

// Executor is the minimal query-execution client the handlers need: run SQL
// and return rows keyed by output column name, plus dialect identification
// for the engine's feature gate.
type Executor interface {
	Dialect() engine.Dialect
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	// QueryValue returns the first column of the first row, or an error
	// when there is no row.
	QueryValue(ctx context.Context, sql string, args ...any) (any, error)
	Close()
}
