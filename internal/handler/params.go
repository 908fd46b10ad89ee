package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/tablegate/tablegate/internal/engine"
	"github.com/tablegate/tablegate/internal/schema"
)

var reservedParams = map[string]bool{
	"fields":         true,
	"sort":           true,
	"page":           true,
	"pageSize":       true,
	"cursor":         true,
	"search":         true,
	"where":          true,
	"includeDeleted": true,
}

// arrayOperators take comma-separated values.
var arrayOperators = map[engine.Operator]bool{
	engine.OpIn:      true,
	engine.OpNotIn:   true,
	engine.OpBetween: true,
}

// ParseParams maps the URL query onto engine params. Filter syntax follows
// "?field=op.value"; sort is "?sort=field.desc,other"; nested trees arrive
// as JSON in "?where=".
func ParseParams(r *http.Request) (*engine.Params, error) {
	q := r.URL.Query()
	p := &engine.Params{
		Filters: make(map[string]engine.Filter),
	}

	if sel := q.Get("fields"); sel != "" {
		for _, f := range strings.Split(sel, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Fields = append(p.Fields, f)
			}
		}
	}

	if sortRaw := q.Get("sort"); sortRaw != "" {
		for _, s := range strings.Split(sortRaw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			field, dir, _ := strings.Cut(s, ".")
			p.Sort = append(p.Sort, schema.SortConfig{Field: field, Direction: dir})
		}
	}

	if page := q.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return nil, badParamf("invalid page %q", page)
		}
		p.Page = n
	}
	if size := q.Get("pageSize"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 1 {
			return nil, badParamf("invalid pageSize %q", size)
		}
		p.PageSize = n
	}

	p.Cursor = q.Get("cursor")
	if p.Cursor != "" && (q.Get("page") != "" || q.Get("pageSize") != "") {
		// Cursor wins; page params are ignored rather than rejected so
		// clients can keep a pageSize preference alongside the token.
		p.Page = 0
	}

	p.Search = q.Get("search")

	if inc := q.Get("includeDeleted"); inc != "" {
		v, err := strconv.ParseBool(inc)
		if err != nil {
			return nil, badParamf("invalid includeDeleted %q", inc)
		}
		p.IncludeDeleted = v
	}

	if where := q.Get("where"); where != "" {
		var expr schema.FilterExpression
		if err := json.Unmarshal([]byte(where), &expr); err != nil {
			return nil, badParamf("invalid where expression: %v", err)
		}
		p.Expressions = append(p.Expressions, expr)
	}

	// Remaining params are flat filters: ?field=op.value
	for key, values := range q {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		op, value, err := parseFilterValue(values[0])
		if err != nil {
			return nil, err
		}
		p.Filters[key] = engine.Filter{Operator: op, Value: value}
	}

	if roles := r.Header.Get("X-Roles"); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				p.Roles = append(p.Roles, role)
			}
		}
	}
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		p.Tenant = tenant
	}

	return p, nil
}

// parseFilterValue splits "op.value" and shapes array operators' values.
func parseFilterValue(raw string) (engine.Operator, any, error) {
	before, after, ok := strings.Cut(raw, ".")
	if !ok {
		// Bare values are equality filters.
		return engine.OpEq, raw, nil
	}
	op, err := engine.ParseOperator(before)
	if err != nil {
		return engine.OpEq, raw, nil
	}
	if arrayOperators[op] {
		parts := strings.Split(after, ",")
		vals := make([]any, len(parts))
		for i, p := range parts {
			vals[i] = p
		}
		return op, vals, nil
	}
	if op == engine.OpIsNull || op == engine.OpIsNotNull {
		return op, nil, nil
	}
	return op, after, nil
}
