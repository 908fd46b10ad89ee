package engine

import (
	"encoding/base64"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

const (
	DefaultPageSize = 50
	DefaultMaxPage  = 500
	// unboundedLimit is the effective window when pagination is disabled.
	unboundedLimit = 1 << 31
)

// cursorKey is one sort-key boundary value. The token is an ordered array of
// pairs so multi-key sorts round-trip in declaration order.
type cursorKey struct {
	Field string `json:"f"`
	Value any    `json:"v"`
}

// EncodeCursor packs the boundary row's sort-key values into an opaque
// base64 token. The token is a resume point, nothing more.
func EncodeCursor(keys []CursorKey) string {
	pairs := make([]cursorKey, len(keys))
	for i, k := range keys {
		pairs[i] = cursorKey{Field: k.Field, Value: k.Value}
	}
	b, _ := json.Marshal(pairs)
	return base64.RawURLEncoding.EncodeToString(b)
}

// CursorKey is a (sort field, boundary value) pair.
type CursorKey struct {
	Field string
	Value any
}

// DecodeCursor reverses EncodeCursor. Malformed tokens are a validation
// error rather than a silent first page, so broken clients notice.
func DecodeCursor(raw string) ([]CursorKey, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, validationErrf("invalid cursor encoding")
	}
	var pairs []cursorKey
	if err := json.Unmarshal(b, &pairs); err != nil {
		return nil, validationErrf("invalid cursor format")
	}
	keys := make([]CursorKey, len(pairs))
	for i, p := range pairs {
		keys[i] = CursorKey{Field: p.Field, Value: p.Value}
	}
	return keys, nil
}

// cursorCondition builds the keyset continuation predicate for the active
// sort and decoded boundary values: the lexicographic OR-expansion
//
//	(f1 > v1) OR (f1 = v1 AND f2 > v2) OR (f1 = v1 AND f2 = v2 AND f3 > v3) ...
//
// with > flipped to < for descending terms. A flat AND of the comparisons
// would skip rows that tie on a leading key, so it is never emitted. Only
// sort terms with a boundary value in the token participate; none resolving
// means first-page semantics (nil condition).
func (e *Engine) cursorCondition(terms []OrderTerm, keys []CursorKey) (sq.Sqlizer, error) {
	boundary := make(map[string]any, len(keys))
	for _, k := range keys {
		boundary[k.Field] = k.Value
	}

	type part struct {
		expr string
		args []any
		val  any
		desc bool
	}
	var parts []part
	for _, t := range terms {
		val, ok := boundary[t.Field.Name]
		if !ok {
			continue
		}
		expr, args, err := e.fieldExpr(t.Field)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part{expr: expr, args: args, val: val, desc: t.Desc})
	}
	if len(parts) == 0 {
		return nil, nil
	}

	var branches sq.Or
	for i, p := range parts {
		var conj sq.And
		for _, q := range parts[:i] {
			conj = append(conj, prependArgs(sq.Expr(q.expr+" = ?", q.val), q.args))
		}
		cmp := " > ?"
		if p.desc {
			cmp = " < ?"
		}
		conj = append(conj, prependArgs(sq.Expr(p.expr+cmp, p.val), p.args))
		branches = append(branches, conj)
	}
	return branches, nil
}

// clampPageSize enforces [1, max] using the config's bounds.
func (e *Engine) clampPageSize(requested int) int {
	size := requested
	if size < 1 {
		size = e.cfg.Pagination.DefaultPageSize
	}
	if size < 1 {
		size = DefaultPageSize
	}
	max := e.cfg.Pagination.MaxPageSize
	if max < 1 {
		max = DefaultMaxPage
	}
	if size > max {
		size = max
	}
	return size
}

// offsetWindow computes limit/offset for page-number pagination.
func (e *Engine) offsetWindow(p *Params) (limit, offset uint64, pageSize int) {
	if e.cfg.Pagination.Disabled {
		return unboundedLimit, 0, unboundedLimit
	}
	pageSize = e.clampPageSize(p.PageSize)
	page := p.Page
	if page < 1 {
		page = 1
	}
	return uint64(pageSize), uint64(page-1) * uint64(pageSize), pageSize
}
