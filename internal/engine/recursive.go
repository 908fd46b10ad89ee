package engine

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablegate/tablegate/internal/schema"
)

const (
	treeCTE         = "_tree"
	treeChildAlias  = "_c"
	treeParentAlias = "_p"
)

// BuildTree compiles the bounded self-referencing tree query. The base case
// selects root rows at depth 0; the recursive step joins children on
// child.parentKey = parent.childKey and is cut off at depth < maxDepth, so
// cyclic or malformed data can never recurse unboundedly.
func (e *Engine) BuildTree(p *Params) (string, []any, error) {
	rc := e.cfg.Recursive
	if rc == nil {
		return "", nil, configErrf("table %q has no recursive config", e.cfg.Name)
	}
	if err := Require(e.dialect, FeatureRecursive); err != nil {
		return "", nil, err
	}

	depthAlias := rc.DepthAlias
	if depthAlias == "" {
		depthAlias = "depth"
	}

	rootSQL, rootArgs, err := e.treeRoot(p, rc)
	if err != nil {
		return "", nil, err
	}

	table := e.cfg.TableName()
	var b strings.Builder
	args := make([]any, 0, len(rootArgs)+1)

	fmt.Fprintf(&b, "WITH RECURSIVE %s AS (", qi(treeCTE))
	fmt.Fprintf(&b, "SELECT %s.*, 0 AS %s", qi(baseAlias), qi(depthAlias))
	if rc.PathAlias != "" {
		fmt.Fprintf(&b, ", CAST(%s.%s AS text) AS %s", qi(baseAlias), qi(rc.ChildKey), qi(rc.PathAlias))
	}
	fmt.Fprintf(&b, " FROM %s %s WHERE %s", table, qi(baseAlias), rootSQL)
	args = append(args, rootArgs...)

	b.WriteString(" UNION ALL ")
	fmt.Fprintf(&b, "SELECT %s.*, %s.%s + 1", qi(treeChildAlias), qi(treeParentAlias), qi(depthAlias))
	if rc.PathAlias != "" {
		fmt.Fprintf(&b, ", %s", e.pathConcat(rc))
	}
	fmt.Fprintf(&b, " FROM %s %s JOIN %s %s ON %s.%s = %s.%s WHERE %s.%s < ?",
		table, qi(treeChildAlias),
		qi(treeCTE), qi(treeParentAlias),
		qi(treeChildAlias), qi(rc.ParentKey),
		qi(treeParentAlias), qi(rc.ChildKey),
		qi(treeParentAlias), qi(depthAlias))
	args = append(args, rc.MaxDepth)

	fmt.Fprintf(&b, ") SELECT * FROM %s ORDER BY %s, %s",
		qi(treeCTE), qi(depthAlias), qi(rc.ChildKey))

	sql, err := Placeholders(e.dialect).ReplacePlaceholders(b.String())
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// treeRoot renders the base-case predicate: an explicit startWith condition,
// or "parent key IS NULL" by default.
func (e *Engine) treeRoot(p *Params, rc *schema.RecursiveConfig) (string, []any, error) {
	if rc.StartWith != nil {
		cond, err := e.compileExpression(p, rc.StartWith)
		if err != nil {
			return "", nil, err
		}
		if cond != nil {
			return cond.ToSql()
		}
	}
	return sq.Eq{mustColumn(rc.ParentKey): nil}.ToSql()
}

// pathConcat extends the materialized path with the child key, per dialect.
func (e *Engine) pathConcat(rc *schema.RecursiveConfig) string {
	child := fmt.Sprintf("CAST(%s.%s AS text)", qi(treeChildAlias), qi(rc.ChildKey))
	parent := fmt.Sprintf("%s.%s", qi(treeParentAlias), qi(rc.PathAlias))
	if e.dialect == DialectMySQL {
		return fmt.Sprintf("CONCAT(%s, '/', %s) AS %s", parent, child, qi(rc.PathAlias))
	}
	return fmt.Sprintf("%s || '/' || %s AS %s", parent, child, qi(rc.PathAlias))
}
