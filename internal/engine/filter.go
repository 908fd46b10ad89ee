package engine

import (
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablegate/tablegate/internal/schema"
)

// compileFilters builds the single AND-combined WHERE tree: backend
// conditions (tenant isolation, soft delete), static config filters, dynamic
// config defaults, request filters, nested expression groups and search.
func (e *Engine) compileFilters(p *Params) (sq.Sqlizer, error) {
	var conds []sq.Sqlizer

	if e.cfg.Tenant != nil {
		if p.Tenant == nil {
			return nil, accessErrf("table %q requires a tenant", e.cfg.Name)
		}
		conds = append(conds, sq.Eq{mustColumn(e.cfg.Tenant.Column): p.Tenant})
	}

	if e.cfg.SoftDelete != nil && !p.IncludeDeleted {
		conds = append(conds, sq.Eq{mustColumn(e.cfg.SoftDelete.Column): nil})
	}

	for _, fc := range e.cfg.Filters {
		if !fc.Static {
			// Dynamic config filters are defaults the request may override.
			if _, overridden := p.Filters[fc.Field]; overridden {
				continue
			}
		}
		cond, err := e.compileLeaf(p, fc.Field, fc.Operator, fc.Value)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, configErrf("config filter references unknown field %q", fc.Field)
		}
		conds = append(conds, cond)
	}

	for _, name := range sortedFilterFields(p.Filters) {
		f := p.Filters[name]
		cond, err := e.compileLeaf(p, name, string(f.Operator), f.Value)
		if err != nil {
			return nil, err
		}
		// Unknown request fields are dropped to tolerate stale client UIs.
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	for i := range e.cfg.FilterGroups {
		cond, err := e.compileExpression(p, &e.cfg.FilterGroups[i])
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	for i := range p.Expressions {
		cond, err := e.compileExpression(p, &p.Expressions[i])
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	if cond, err := e.compileSearch(p); err != nil {
		return nil, err
	} else if cond != nil {
		conds = append(conds, cond)
	}

	if len(conds) == 0 {
		return nil, nil
	}
	return sq.And(conds), nil
}

func sortedFilterFields(filters map[string]Filter) []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compileExpression compiles a nested AND/OR tree, preserving the authored
// boolean structure exactly. Unresolvable leaves are dropped; groups left
// empty after dropping compile to nothing.
func (e *Engine) compileExpression(p *Params, expr *schema.FilterExpression) (sq.Sqlizer, error) {
	if !expr.IsGroup() {
		return e.compileLeaf(p, expr.Field, expr.Operator, expr.Value)
	}

	var children []sq.Sqlizer
	for i := range expr.Children {
		cond, err := e.compileExpression(p, &expr.Children[i])
		if err != nil {
			return nil, err
		}
		if cond != nil {
			children = append(children, cond)
		}
	}
	if len(children) == 0 {
		return nil, nil
	}

	switch strings.ToLower(expr.Op) {
	case "and":
		return sq.And(children), nil
	case "or":
		return sq.Or(children), nil
	}
	return nil, validationErrf("unknown boolean operator %q", expr.Op)
}

// compileLeaf builds one condition for field <op> value. Returns (nil, nil)
// when the field does not resolve.
func (e *Engine) compileLeaf(p *Params, field, rawOp string, value any) (sq.Sqlizer, error) {
	op, err := ParseOperator(rawOp)
	if err != nil {
		return nil, err
	}

	f, err := e.res.ResolveFor(field, OpFilter)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	if err := validateValue(f, op, value); err != nil {
		return nil, err
	}

	expr, args, err := e.fieldExpr(f)
	if err != nil {
		return nil, err
	}

	if f.Type() == schema.TypeDate {
		if s, ok := value.(string); ok && IsDatePreset(s) {
			return presetCondition(expr, args, op, DatePreset(s), p.now())
		}
	}

	cond, err := condition(expr, op, value, e.dialect)
	if err != nil {
		return nil, err
	}
	return prependArgs(cond, args), nil
}

// presetCondition expands a symbolic date range into a half-open interval
// predicate instead of passing the preset through as a literal.
func presetCondition(expr string, exprArgs []any, op Operator, preset DatePreset, now time.Time) (sq.Sqlizer, error) {
	start, end, ok := ResolvePreset(preset, now)
	if !ok {
		return nil, validationErrf("unknown date preset %q", preset)
	}

	var cond sq.Sqlizer
	switch op {
	case OpEq:
		cond = sq.And{
			sq.Expr(expr+" >= ?", start),
			sq.Expr(expr+" < ?", end),
		}
	case OpNeq:
		cond = sq.Or{
			sq.Expr(expr+" < ?", start),
			sq.Expr(expr+" >= ?", end),
		}
	case OpGt:
		cond = sq.Expr(expr+" >= ?", end)
	case OpGte:
		cond = sq.Expr(expr+" >= ?", start)
	case OpLt:
		cond = sq.Expr(expr+" < ?", start)
	case OpLte:
		cond = sq.Expr(expr+" < ?", end)
	default:
		return nil, validationErrf("operator %q cannot take a date preset", op)
	}
	return prependArgs(cond, exprArgs), nil
}

// fieldExpr returns the SQL expression for a field in WHERE/ORDER context.
// Subquery-backed fields embed their correlated scalar subquery.
func (e *Engine) fieldExpr(f *Field) (string, []any, error) {
	if f.Provenance == SourceSubquery {
		sql, args, err := e.compileSubquery(f.Sub)
		if err != nil {
			return "", nil, err
		}
		return "(" + sql + ")", args, nil
	}
	return f.Expr(), nil, nil
}

// prependArgs shifts extra leading arguments into a condition, used when the
// column expression itself carries placeholders (subquery correlations).
func prependArgs(cond sq.Sqlizer, args []any) sq.Sqlizer {
	if len(args) == 0 {
		return cond
	}
	return argPrefixed{cond: cond, args: args}
}

type argPrefixed struct {
	cond sq.Sqlizer
	args []any
}

func (a argPrefixed) ToSql() (string, []any, error) {
	sql, condArgs, err := a.cond.ToSql()
	if err != nil {
		return "", nil, err
	}
	return sql, append(append([]any{}, a.args...), condArgs...), nil
}
