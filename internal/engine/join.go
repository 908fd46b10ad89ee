package engine

import (
	"fmt"

	"github.com/tablegate/tablegate/internal/schema"
)

// JoinClause is one emitted join operation, ready for the query builder.
type JoinClause struct {
	SQL  string
	Args []any
}

// compileJoins walks the join forest depth-first and emits one clause per
// node. Column namespace folding and collision detection already happened in
// the resolver; this pass only renders the join operations.
func (e *Engine) compileJoins() ([]JoinClause, error) {
	var clauses []JoinClause
	for i := range e.cfg.Joins {
		if err := e.walkJoin(&e.cfg.Joins[i], baseAlias, &clauses); err != nil {
			return nil, err
		}
	}
	return clauses, nil
}

func (e *Engine) walkJoin(j *schema.JoinConfig, parentAlias string, out *[]JoinClause) error {
	alias := j.AliasOrTable()

	on, err := joinOn(j, parentAlias, alias)
	if err != nil {
		return err
	}

	*out = append(*out, JoinClause{
		SQL: fmt.Sprintf("%s %s %s ON %s",
			joinKeyword(j.Kind), schema.QualifiedTable(j.Table), qi(alias), on),
	})

	// Nested children join against this node, so multi-hop joins expose
	// their columns exactly like first-level ones.
	for i := range j.Joins {
		if err := e.walkJoin(&j.Joins[i], alias, out); err != nil {
			return err
		}
	}
	return nil
}

// joinOn renders the ON predicate. The structured column pair is preferred;
// the raw form is a developer-only escape hatch that request input can never
// reach (RawExpr is only produced by config decoding).
func joinOn(j *schema.JoinConfig, parentAlias, alias string) (string, error) {
	if j.On.Local != "" && j.On.Foreign != "" {
		return fmt.Sprintf("%s.%s = %s.%s",
			qi(parentAlias), qi(j.On.Local), qi(alias), qi(j.On.Foreign)), nil
	}
	if j.On.Raw != "" {
		return string(j.On.Raw), nil
	}
	return "", configErrf("join %q has no ON predicate", j.Table)
}

func joinKeyword(k schema.JoinKind) string {
	switch k {
	case schema.JoinRight:
		return "RIGHT JOIN"
	case schema.JoinInner:
		return "INNER JOIN"
	case schema.JoinFull:
		return "FULL JOIN"
	case schema.JoinLeft, "":
		return "LEFT JOIN"
	}
	return "LEFT JOIN"
}
