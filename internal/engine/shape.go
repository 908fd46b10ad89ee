package engine

import (
	"strings"
)

// Meta is the pagination metadata of a shaped response.
type Meta struct {
	Total      *int64  `json:"total,omitempty"`
	NextCursor *string `json:"nextCursor,omitempty"`
	PageSize   int     `json:"pageSize"`
	Page       int     `json:"page,omitempty"`
}

// Envelope is the result shape handed back to API clients.
type Envelope struct {
	Data         []map[string]any `json:"data"`
	Meta         Meta             `json:"meta"`
	Aggregations map[string]any   `json:"aggregations,omitempty"`
}

// ShapeRows post-processes executor rows against the plan: rows beyond the
// page window are trimmed (yielding the next cursor), hidden and
// role-dropped fields are stripped, declared transforms applied.
func (p *Plan) ShapeRows(rows []map[string]any, params *Params) ([]map[string]any, Meta) {
	meta := Meta{PageSize: p.PageSize}

	if p.CursorMode && len(rows) > p.PageSize {
		rows = rows[:p.PageSize]
		token := p.NextCursor(rows[len(rows)-1])
		meta.NextCursor = &token
	}
	if !p.CursorMode {
		meta.Page = maxInt(params.Page, 1)
	}

	keep := p.outputFields(params)
	shaped := make([]map[string]any, len(rows))
	for i, row := range rows {
		out := make(map[string]any, len(keep))
		for _, f := range keep {
			v, ok := row[f.Name]
			if !ok {
				continue
			}
			out[f.Name] = transformValue(f, v)
		}
		shaped[i] = out
	}
	return shaped, meta
}

// outputFields is the final output column set: selected fields minus hidden
// ones minus sort keys the client never asked for. Sort keys force-selected
// past role visibility never reach the output either.
func (p *Plan) outputFields(params *Params) []*Field {
	requested := make(map[string]bool, len(params.Fields))
	for _, n := range params.Fields {
		requested[n] = true
	}
	visible := make(map[string]bool, len(p.Visible))
	for _, f := range p.Visible {
		visible[f.Name] = true
	}
	out := make([]*Field, 0, len(p.Select))
	for _, f := range p.Select {
		if !visible[f.Name] {
			continue
		}
		if f.Col != nil && f.Col.Hidden {
			continue
		}
		if len(requested) > 0 && !requested[f.Name] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// transformValue applies the column's declared value transform.
func transformValue(f *Field, v any) any {
	if f.Col == nil || f.Col.Transform == "" {
		return v
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch f.Col.Transform {
	case "upper":
		return strings.ToUpper(s)
	case "lower":
		return strings.ToLower(s)
	case "trim":
		return strings.TrimSpace(s)
	case "maskEmail":
		return maskEmail(s)
	}
	return v
}

// maskEmail hides the local part of an address except its first character.
func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 1 {
		return s
	}
	return s[:1] + strings.Repeat("*", at-1) + s[at:]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
