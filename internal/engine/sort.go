package engine

import (
	"fmt"

	"github.com/tablegate/tablegate/internal/schema"
)

// OrderTerm is one resolved ORDER BY term.
type OrderTerm struct {
	Field *Field
	Desc  bool
}

func (t OrderTerm) dir() string {
	if t.Desc {
		return "DESC"
	}
	return "ASC"
}

// orderClause returns the ORDER BY text and arguments for a term. Scalar
// subquery terms carry correlation arguments.
func (e *Engine) orderClause(t OrderTerm) (string, []any, error) {
	expr, args, err := e.fieldExpr(t.Field)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s", expr, t.dir()), args, nil
}

// resolveSort turns the requested sort list into ordered terms. Fields that
// do not resolve, are not sortable, or are backed by a row-shaped first-mode
// subquery are silently dropped; when nothing valid remains the configured
// default sort applies. The primary key is appended as a tie-break so the
// order is total, which cursor pagination depends on.
func (e *Engine) resolveSort(requested []schema.SortConfig) []OrderTerm {
	terms := e.sortTerms(requested)
	if len(terms) == 0 {
		terms = e.sortTerms(e.cfg.DefaultSort)
	}

	pk := e.cfg.PK()
	pkField := e.res.Resolve(pk)
	if pkField == nil {
		pkField = &Field{
			Name:       pk,
			Provenance: SourceBase,
			Qualifier:  baseAlias,
			Col:        &schema.ColumnConfig{Name: pk, Type: schema.TypeUUID},
		}
	}
	for _, t := range terms {
		if t.Field.Name == pkField.Name {
			return terms
		}
	}
	desc := len(terms) > 0 && terms[len(terms)-1].Desc
	return append(terms, OrderTerm{Field: pkField, Desc: desc})
}

func (e *Engine) sortTerms(list []schema.SortConfig) []OrderTerm {
	var terms []OrderTerm
	for _, s := range list {
		// ResolveFor rejects sortable:false and first-mode subqueries;
		// sorts are the one place where that rejection stays silent.
		f, err := e.res.ResolveFor(s.Field, OpSort)
		if err != nil || f == nil {
			continue
		}
		terms = append(terms, OrderTerm{Field: f, Desc: s.Desc()})
	}
	return terms
}
