package engine

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablegate/tablegate/internal/schema"
)

// subAlias is the inner alias of every correlated subquery.
const subAlias = "_s"

// outerRefPrefix marks a typed-expression value as a reference to an outer
// query field rather than a literal.
const outerRefPrefix = "$outer."

// compileSubquery builds the correlated scalar expression for one subquery
// config. The returned SQL excludes outer parentheses.
func (e *Engine) compileSubquery(sub *schema.SubqueryConfig) (string, []any, error) {
	corr, args, err := e.subqueryCorrelation(sub)
	if err != nil {
		return "", nil, err
	}

	table := schema.QualifiedTable(sub.Table) + " " + qi(subAlias)

	switch sub.Mode {
	case schema.SubCount:
		return fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", table, corr), args, nil

	case schema.SubExists:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", table, corr), args, nil

	case schema.SubFirst:
		if err := Require(e.dialect, FeatureRowPack); err != nil {
			return "", nil, err
		}
		return e.firstSubquery(sub, table, corr, args)
	}
	return "", nil, configErrf("subquery %q: unknown mode %q", sub.Alias, sub.Mode)
}

// firstSubquery packs the first matching row into a structured scalar. The
// packing construct is dialect-specific, which is why the mode is gated.
func (e *Engine) firstSubquery(sub *schema.SubqueryConfig, table, corr string, args []any) (string, []any, error) {
	order := ""
	if len(sub.OrderBy) > 0 {
		var terms []string
		for _, s := range sub.OrderBy {
			dir := "ASC"
			if s.Desc() {
				dir = "DESC"
			}
			terms = append(terms, fmt.Sprintf("%s.%s %s", qi(subAlias), qi(s.Field), dir))
		}
		order = " ORDER BY " + strings.Join(terms, ", ")
	}

	if e.dialect == DialectSQLite {
		if len(sub.Columns) == 0 {
			return "", nil, configErrf("subquery %q: first mode on sqlite requires an explicit column list", sub.Alias)
		}
		pairs := make([]string, 0, len(sub.Columns))
		for _, c := range sub.Columns {
			pairs = append(pairs, fmt.Sprintf("'%s', %s.%s", c, qi(subAlias), qi(c)))
		}
		return fmt.Sprintf("SELECT json_object(%s) FROM %s WHERE %s%s LIMIT 1",
			strings.Join(pairs, ", "), table, corr, order), args, nil
	}

	cols := qi(subAlias) + ".*"
	if len(sub.Columns) > 0 {
		quoted := make([]string, len(sub.Columns))
		for i, c := range sub.Columns {
			quoted[i] = fmt.Sprintf("%s.%s", qi(subAlias), qi(c))
		}
		cols = strings.Join(quoted, ", ")
	}
	return fmt.Sprintf("SELECT row_to_json(_row) FROM (SELECT %s FROM %s WHERE %s%s LIMIT 1) _row",
		cols, table, corr, order), args, nil
}

// subqueryCorrelation builds the WHERE of the subquery from, in priority
// order: a typed expression, the structured condition list, the deprecated
// raw string, or TRUE when uncorrelated.
func (e *Engine) subqueryCorrelation(sub *schema.SubqueryConfig) (string, []any, error) {
	switch {
	case sub.Expression != nil:
		cond, err := e.subExpression(sub, sub.Expression)
		if err != nil {
			return "", nil, err
		}
		if cond == nil {
			return "TRUE", nil, nil
		}
		return cond.ToSql()

	case len(sub.Conditions) > 0:
		var conds sq.And
		for i := range sub.Conditions {
			cond, err := e.subCondition(sub, &sub.Conditions[i])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
		}
		return conds.ToSql()

	case sub.Raw != "":
		// Deprecated developer-authored escape hatch.
		return string(sub.Raw), nil, nil
	}

	// Uncorrelated full scan: discouraged but legal.
	return "TRUE", nil, nil
}

// subCondition compiles one structured correlation condition: subquery
// column against an outer column or a parameterized literal.
func (e *Engine) subCondition(sub *schema.SubqueryConfig, c *schema.SubqueryCondition) (sq.Sqlizer, error) {
	rawOp := c.Operator
	if rawOp == "" {
		rawOp = string(OpEq)
	}
	op, err := ParseOperator(rawOp)
	if err != nil {
		return nil, err
	}
	left := fmt.Sprintf("%s.%s", qi(subAlias), qi(c.Column))

	if c.OuterColumn != "" {
		outer := e.res.Resolve(c.OuterColumn)
		if outer == nil || outer.Provenance == SourceSubquery {
			return nil, configErrf("subquery %q: unknown outer column %q", sub.Alias, c.OuterColumn)
		}
		right := outer.Expr()
		if op == OpILike && !Supports(e.dialect, FeatureILike) {
			return sq.Expr(fmt.Sprintf("lower(%s) = lower(%s)", left, right)), nil
		}
		return sq.Expr(fmt.Sprintf("%s %s %s", left, comparison(op), right)), nil
	}

	return condition(left, op, c.Value, e.dialect)
}

// subExpression compiles a typed correlation expression tree. Leaf fields
// name subquery columns; a string value prefixed "$outer." references an
// outer field resolved through the whitelist.
func (e *Engine) subExpression(sub *schema.SubqueryConfig, expr *schema.FilterExpression) (sq.Sqlizer, error) {
	if expr.IsGroup() {
		var children []sq.Sqlizer
		for i := range expr.Children {
			cond, err := e.subExpression(sub, &expr.Children[i])
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
		return nil, configErrf("subquery %q: unknown boolean operator %q", sub.Alias, expr.Op)
	}

	cond := schema.SubqueryCondition{Column: expr.Field, Operator: expr.Operator}
	if s, ok := expr.Value.(string); ok && strings.HasPrefix(s, outerRefPrefix) {
		cond.OuterColumn = strings.TrimPrefix(s, outerRefPrefix)
	} else {
		cond.Value = expr.Value
	}
	return e.subCondition(sub, &cond)
}
