package engine

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// compileSearch builds an OR-combined pattern match across the configured
// search fields. Fields that do not resolve or are not filterable are
// skipped; an empty result yields no condition.
func (e *Engine) compileSearch(p *Params) (sq.Sqlizer, error) {
	term := strings.TrimSpace(p.Search)
	if term == "" || e.cfg.Search == nil || len(e.cfg.Search.Fields) == 0 {
		return nil, nil
	}
	if min := e.cfg.Search.MinLength; min > 0 && len(term) < min {
		return nil, nil
	}

	pattern := "%" + escapeLike(term) + "%"

	var conds sq.Or
	for _, name := range e.cfg.Search.Fields {
		f, err := e.res.ResolveFor(name, OpSearch)
		if err != nil || f == nil {
			continue
		}
		expr, args, xerr := e.fieldExpr(f)
		if xerr != nil {
			return nil, xerr
		}
		cond, cerr := condition(expr, OpILike, pattern, e.dialect)
		if cerr != nil {
			return nil, cerr
		}
		conds = append(conds, prependArgs(cond, args))
	}
	if len(conds) == 0 {
		return nil, nil
	}
	return conds, nil
}

// escapeLike neutralizes LIKE metacharacters in a user search term.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
