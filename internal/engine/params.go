package engine

import (
	"time"

	"github.com/tablegate/tablegate/internal/schema"
)

// Filter is one request-supplied condition on a named field.
type Filter struct {
	Operator Operator
	Value    any
}

// Params are the request-scoped inputs of a compile. They are allocated per
// request and never shared; URL parsing happens upstream.
type Params struct {
	Filters     map[string]Filter
	Expressions []schema.FilterExpression
	Search      string
	Sort        []schema.SortConfig

	// Page/PageSize and Cursor are mutually exclusive pagination modes;
	// a non-empty Cursor selects keyset pagination.
	Page     int
	PageSize int
	Cursor   string

	// Fields restricts the output columns; empty means all visible.
	Fields []string

	IncludeDeleted bool
	Roles          []string
	// Tenant is the caller's tenant key, applied when the config declares
	// tenant isolation.
	Tenant any

	// Now anchors date-preset expansion; zero means time.Now.
	Now time.Time
}

func (p *Params) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

// CursorMode reports whether keyset pagination is active.
func (p *Params) CursorMode() bool { return p.Cursor != "" }
