package engine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablegate/tablegate/internal/schema"
)

// Engine compiles request params against one immutable table config. It is
// purely functional per request: no I/O, no locks, safe for concurrent use.
type Engine struct {
	cfg     *schema.TableConfig
	res     *Resolver
	dialect Dialect
}

// New builds an engine for a validated config and the executor's dialect.
func New(cfg *schema.TableConfig, dialect Dialect) (*Engine, error) {
	res, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, res: res, dialect: dialect}, nil
}

// Config returns the engine's table config.
func (e *Engine) Config() *schema.TableConfig { return e.cfg }

// Resolver exposes the field resolver, mainly for adapters and tests.
func (e *Engine) Resolver() *Resolver { return e.res }

// ValidateConfig checks every field reference in the config against the
// resolver namespace. It runs once at startup so static misconfiguration
// fails fast, never at request time.
func ValidateConfig(cfg *schema.TableConfig) error {
	e, err := New(cfg, DialectUnknown)
	if err != nil {
		return err
	}

	for i := range cfg.Columns {
		col := &cfg.Columns[i]
		if tbl, _, ok := cutQualifier(col.Source); ok && !col.Computed {
			if !e.joinAliasExists(tbl) {
				return configErrf("column %q: source qualifier %q is not a join alias", col.Name, tbl)
			}
		}
	}

	for _, fc := range cfg.Filters {
		f, err := e.res.ResolveFor(fc.Field, OpFilter)
		if err != nil {
			return err
		}
		if f == nil {
			return configErrf("config filter references unknown field %q", fc.Field)
		}
		if _, err := ParseOperator(fc.Operator); err != nil {
			return configErrf("config filter on %q: %v", fc.Field, err)
		}
	}

	for i := range cfg.FilterGroups {
		if err := e.checkExpression(&cfg.FilterGroups[i]); err != nil {
			return err
		}
	}

	for _, s := range cfg.DefaultSort {
		f, err := e.res.ResolveFor(s.Field, OpSort)
		if err != nil {
			return err
		}
		if f == nil {
			return configErrf("default sort references unknown field %q", s.Field)
		}
	}

	if cfg.Search != nil {
		for _, name := range cfg.Search.Fields {
			if e.res.Resolve(name) == nil {
				return configErrf("search references unknown field %q", name)
			}
		}
	}

	if _, err := e.aggregateColumns(); err != nil {
		return err
	}
	if _, err := e.groupByColumns(); err != nil {
		return err
	}
	if cfg.GroupBy != nil {
		for i := range cfg.GroupBy.Having {
			if _, err := e.havingCondition(&cfg.GroupBy.Having[i]); err != nil {
				return err
			}
		}
	}

	for i := range cfg.Subqueries {
		if _, _, err := e.compileSubquery(&cfg.Subqueries[i]); err != nil {
			return err
		}
	}

	if cfg.Recursive != nil && cfg.Recursive.StartWith != nil {
		if err := e.checkExpression(cfg.Recursive.StartWith); err != nil {
			return err
		}
	}

	if cfg.DateRangeColumn != "" && e.res.Resolve(cfg.DateRangeColumn) == nil {
		return configErrf("dateRangeColumn %q does not resolve", cfg.DateRangeColumn)
	}

	return nil
}

// checkExpression hard-fails on unknown fields: config-authored trees are
// static, so an unresolvable leaf is a config defect, not client drift.
func (e *Engine) checkExpression(expr *schema.FilterExpression) error {
	if expr.IsGroup() {
		for i := range expr.Children {
			if err := e.checkExpression(&expr.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	f, err := e.res.ResolveFor(expr.Field, OpFilter)
	if err != nil {
		return err
	}
	if f == nil {
		return configErrf("filter expression references unknown field %q", expr.Field)
	}
	_, err = ParseOperator(expr.Operator)
	return err
}

func (e *Engine) joinAliasExists(alias string) bool {
	var walk func(js []schema.JoinConfig) bool
	walk = func(js []schema.JoinConfig) bool {
		for i := range js {
			if js[i].AliasOrTable() == alias || walk(js[i].Joins) {
				return true
			}
		}
		return false
	}
	return walk(e.cfg.Joins)
}

func cutQualifier(source string) (string, string, bool) {
	for i := 0; i < len(source); i++ {
		if source[i] == '.' {
			return source[:i], source[i+1:], true
		}
	}
	return "", source, false
}

// selCol is one precompiled SELECT column.
type selCol struct {
	SQL  string
	Args []any
}

// Plan is a compiled, executable query plan: condition tree, sort terms,
// pagination window, join operations and select columns. It performs no I/O;
// the executor runs what it builds.
type Plan struct {
	eng *Engine

	Where   sq.Sqlizer
	Order   []OrderTerm
	Joins   []JoinClause
	Select  []*Field
	Visible []*Field

	selectCols []selCol

	CursorMode bool
	PageSize   int
	Limit      uint64
	Offset     uint64
	unbounded  bool
}

// Compile is the orchestrator: it composes access control, role visibility,
// filter/search/sort compilation, joins and pagination into one plan.
func (e *Engine) Compile(p *Params) (*Plan, error) {
	if err := e.checkAccess(p.Roles); err != nil {
		return nil, err
	}

	plan := &Plan{eng: e}
	plan.Visible = e.visibleFields(p.Roles)
	plan.Select = selectFields(plan.Visible, p.Fields)

	where, err := e.compileFilters(p)
	if err != nil {
		return nil, err
	}
	plan.Where = where

	plan.Joins, err = e.compileJoins()
	if err != nil {
		return nil, err
	}

	plan.Order = e.resolveSort(p.Sort)

	// Sort-key fields must be selected so the boundary row can seed the
	// next cursor token; the shaper strips any the client did not ask for.
	plan.Select = ensureSortFields(plan.Select, plan.Order)

	if p.CursorMode() {
		keys, err := DecodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		cond, err := e.cursorCondition(plan.Order, keys)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			if plan.Where == nil {
				plan.Where = cond
			} else {
				plan.Where = sq.And{plan.Where, cond}
			}
		}
		plan.CursorMode = true
		plan.PageSize = e.clampPageSize(p.PageSize)
		plan.Limit = uint64(plan.PageSize)
	} else {
		plan.Limit, plan.Offset, plan.PageSize = e.offsetWindow(p)
		plan.unbounded = e.cfg.Pagination.Disabled
	}

	// Precompile select columns so dialect gating (first-mode subqueries)
	// surfaces here, before anything reaches the database.
	plan.selectCols = make([]selCol, 0, len(plan.Select))
	for _, f := range plan.Select {
		expr, args, err := e.fieldExpr(f)
		if err != nil {
			return nil, err
		}
		plan.selectCols = append(plan.selectCols, selCol{
			SQL:  fmt.Sprintf("%s AS %s", expr, qi(f.Name)),
			Args: args,
		})
	}

	return plan, nil
}

// selectFields applies the requested field subset to the visible set.
// Unknown requested names are silently dropped.
func selectFields(visible []*Field, requested []string) []*Field {
	if len(requested) == 0 {
		return visible
	}
	byName := make(map[string]*Field, len(visible))
	for _, f := range visible {
		byName[f.Name] = f
	}
	out := make([]*Field, 0, len(requested))
	for _, name := range requested {
		if f, ok := byName[name]; ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return visible
	}
	return out
}

func ensureSortFields(selected []*Field, order []OrderTerm) []*Field {
	have := make(map[string]bool, len(selected))
	for _, f := range selected {
		have[f.Name] = true
	}
	for _, t := range order {
		if !have[t.Field.Name] {
			selected = append(selected, t.Field)
			have[t.Field.Name] = true
		}
	}
	return selected
}

func (p *Plan) base() sq.SelectBuilder {
	e := p.eng
	qb := sq.Select().
		From(e.cfg.TableName() + " " + qi(baseAlias)).
		PlaceholderFormat(Placeholders(e.dialect))
	for _, j := range p.Joins {
		qb = qb.JoinClause(j.SQL, j.Args...)
	}
	if p.Where != nil {
		qb = qb.Where(p.Where)
	}
	return qb
}

// BuildList renders the row-fetching query. In cursor mode the window is
// pageSize+1 rows: the extra row signals a next page and seeds its token.
func (p *Plan) BuildList() (string, []any, error) {
	qb := p.base()
	for _, c := range p.selectCols {
		qb = qb.Column(sq.Expr(c.SQL, c.Args...))
	}
	for _, t := range p.Order {
		clause, args, err := p.eng.orderClause(t)
		if err != nil {
			return "", nil, err
		}
		qb = qb.OrderByClause(clause, args...)
	}
	if p.CursorMode {
		qb = qb.Limit(p.Limit + 1)
	} else if !p.unbounded {
		qb = qb.Limit(p.Limit).Offset(p.Offset)
	}
	return qb.ToSql()
}

// BuildGet renders a single-row fetch by primary key.
func (p *Plan) BuildGet(id any) (string, []any, error) {
	qb := p.base()
	for _, c := range p.selectCols {
		qb = qb.Column(sq.Expr(c.SQL, c.Args...))
	}
	qb = qb.Where(sq.Eq{mustColumn(p.eng.cfg.PK()): id}).Limit(1)
	return qb.ToSql()
}

// BuildCount renders the exact total count under the same conditions.
func (p *Plan) BuildCount() (string, []any, error) {
	return p.base().Column("count(*)").ToSql()
}

// BuildEstimate renders SELECT 1 ... for planner-estimate counting via
// EXPLAIN. Gated: only dialects with estimatedCount support use it.
func (p *Plan) BuildEstimate() (string, []any, error) {
	if err := Require(p.eng.dialect, FeatureEstimatedCount); err != nil {
		return "", nil, err
	}
	return p.base().Column("1").ToSql()
}

// BuildAggregate renders the configured aggregations under the plan's
// conditions, one select column per entry.
func (p *Plan) BuildAggregate() (string, []any, error) {
	cols, err := p.eng.aggregateColumns()
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, configErrf("table %q has no aggregations", p.eng.cfg.Name)
	}
	qb := p.base()
	for _, c := range cols {
		qb = qb.Column(c)
	}
	return qb.ToSql()
}

// BuildGrouped renders {grouped fields} ∪ {aggregate expressions} with
// GROUP BY and HAVING. HAVING predicates are built from the aggregate
// expressions, never from output aliases.
func (p *Plan) BuildGrouped() (string, []any, error) {
	e := p.eng
	if e.cfg.GroupBy == nil {
		return "", nil, configErrf("table %q has no groupBy", e.cfg.Name)
	}
	groups, err := e.groupByColumns()
	if err != nil {
		return "", nil, err
	}
	aggs, err := e.aggregateColumns()
	if err != nil {
		return "", nil, err
	}

	qb := p.base()
	for i, g := range groups {
		qb = qb.Column(fmt.Sprintf("%s AS %s", g, qi(e.cfg.GroupBy.Fields[i])))
	}
	for _, a := range aggs {
		qb = qb.Column(a)
	}
	qb = qb.GroupBy(groups...)
	for i := range e.cfg.GroupBy.Having {
		cond, err := e.havingCondition(&e.cfg.GroupBy.Having[i])
		if err != nil {
			return "", nil, err
		}
		qb = qb.Having(cond)
	}
	return qb.ToSql()
}

// NextCursor encodes the continuation token from the boundary row's sort-key
// values. Rows are keyed by output field name.
func (p *Plan) NextCursor(boundary map[string]any) string {
	keys := make([]CursorKey, 0, len(p.Order))
	for _, t := range p.Order {
		keys = append(keys, CursorKey{Field: t.Field.Name, Value: boundary[t.Field.Name]})
	}
	return EncodeCursor(keys)
}
