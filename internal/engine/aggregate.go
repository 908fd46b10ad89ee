package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablegate/tablegate/internal/schema"
)

// aggregateExpr renders the aggregate function for one config entry. The
// aggregated column resolves through the whitelist like any other field.
func (e *Engine) aggregateExpr(agg *schema.AggregationConfig) (string, error) {
	if agg.Type == schema.AggCount && agg.Field == "" {
		return "count(*)", nil
	}
	f := e.res.Resolve(agg.Field)
	if f == nil || f.Provenance == SourceSubquery {
		return "", configErrf("aggregation %q references unknown field %q", agg.Alias, agg.Field)
	}
	switch agg.Type {
	case schema.AggCount:
		return fmt.Sprintf("count(%s)", f.Expr()), nil
	case schema.AggSum:
		return fmt.Sprintf("sum(%s)", f.Expr()), nil
	case schema.AggAvg:
		return fmt.Sprintf("avg(%s)", f.Expr()), nil
	case schema.AggMin:
		return fmt.Sprintf("min(%s)", f.Expr()), nil
	case schema.AggMax:
		return fmt.Sprintf("max(%s)", f.Expr()), nil
	}
	return "", configErrf("aggregation %q: unknown type %q", agg.Alias, agg.Type)
}

// aggregateColumns renders "expr AS alias" select entries for all configured
// aggregations.
func (e *Engine) aggregateColumns() ([]string, error) {
	cols := make([]string, 0, len(e.cfg.Aggregations))
	for i := range e.cfg.Aggregations {
		agg := &e.cfg.Aggregations[i]
		expr, err := e.aggregateExpr(agg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", expr, qi(agg.Alias)))
	}
	return cols, nil
}

// havingCondition translates a having entry back to the underlying aggregate
// expression. HAVING precedes alias binding in standard SQL, so the output
// alias must never appear here.
func (e *Engine) havingCondition(h *schema.HavingCondition) (sq.Sqlizer, error) {
	var agg *schema.AggregationConfig
	for i := range e.cfg.Aggregations {
		if e.cfg.Aggregations[i].Alias == h.Alias {
			agg = &e.cfg.Aggregations[i]
			break
		}
	}
	if agg == nil {
		return nil, configErrf("having references unknown aggregation alias %q", h.Alias)
	}
	expr, err := e.aggregateExpr(agg)
	if err != nil {
		return nil, err
	}
	op, err := ParseOperator(h.Operator)
	if err != nil {
		return nil, err
	}
	return condition(expr, op, h.Value, e.dialect)
}

// groupByColumns resolves the grouping fields to their expressions.
func (e *Engine) groupByColumns() ([]string, error) {
	if e.cfg.GroupBy == nil {
		return nil, nil
	}
	cols := make([]string, 0, len(e.cfg.GroupBy.Fields))
	for _, name := range e.cfg.GroupBy.Fields {
		f := e.res.Resolve(name)
		if f == nil || f.Provenance == SourceSubquery {
			return nil, configErrf("groupBy references unknown field %q", name)
		}
		cols = append(cols, f.Expr())
	}
	return cols, nil
}
