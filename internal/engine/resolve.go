package engine

import (
	"fmt"
	"strings"

	"github.com/tablegate/tablegate/internal/schema"
)

// baseAlias is the SQL alias of the base table in all generated queries.
const baseAlias = "_e"

// qi is shorthand for schema.QuoteIdent.
func qi(name string) string { return schema.QuoteIdent(name) }

// Provenance records where a resolved field comes from.
type Provenance int

const (
	SourceBase Provenance = iota
	SourceJoin
	SourceComputed
	SourceSubquery
)

func (p Provenance) String() string {
	switch p {
	case SourceBase:
		return "base"
	case SourceJoin:
		return "join"
	case SourceComputed:
		return "computed"
	case SourceSubquery:
		return "subquery"
	}
	return "unknown"
}

// OpKind is the operation a field is being resolved for.
type OpKind int

const (
	OpFilter OpKind = iota
	OpSort
	OpSelect
	OpSearch
)

func (o OpKind) String() string {
	switch o {
	case OpFilter:
		return "filter"
	case OpSort:
		return "sort"
	case OpSelect:
		return "select"
	case OpSearch:
		return "search"
	}
	return "unknown"
}

// Field is a resolved output field: its source reference plus capability
// flags. Sub is set only for subquery-backed fields.
type Field struct {
	Name       string
	Provenance Provenance
	// Qualifier is the SQL alias of the owning source (base or join alias).
	Qualifier string
	Col       *schema.ColumnConfig
	Sub       *schema.SubqueryConfig
}

// Expr returns the SQL expression for column-backed fields. Subquery-backed
// fields have no standalone expression; the subquery compiler builds theirs.
func (f *Field) Expr() string {
	switch f.Provenance {
	case SourceComputed:
		return "(" + string(f.Col.Expression) + ")"
	case SourceSubquery:
		return ""
	default:
		src := f.Col.Source
		if src == "" {
			src = f.Col.Name
		}
		if _, col, ok := strings.Cut(src, "."); ok {
			src = col
		}
		return qi(f.Qualifier) + "." + qi(src)
	}
}

// Type returns the declared value type, defaulting to string.
func (f *Field) Type() schema.ValueType {
	if f.Col != nil && f.Col.Type != "" {
		return f.Col.Type
	}
	return schema.TypeString
}

func (f *Field) filterable() bool {
	if f.Sub != nil {
		if f.Sub.Mode == schema.SubFirst {
			return false
		}
		return f.Sub.Filterable == nil || *f.Sub.Filterable
	}
	return f.Col.IsFilterable()
}

func (f *Field) sortable() bool {
	if f.Sub != nil {
		// first mode yields a row-shaped value; ordering by it is undefined.
		if f.Sub.Mode == schema.SubFirst {
			return false
		}
		return f.Sub.Sortable == nil || *f.Sub.Sortable
	}
	return f.Col.IsSortable()
}

// Resolver is the single authority mapping output field names to sources.
// It is built once per config and shared read-only.
type Resolver struct {
	cfg    *schema.TableConfig
	fields map[string]*Field
	order  []string
}

// NewResolver indexes base columns, the whole join forest, computed columns
// and subquery aliases into one namespace. Collisions between sibling
// sources are a config error.
func NewResolver(cfg *schema.TableConfig) (*Resolver, error) {
	r := &Resolver{
		cfg:    cfg,
		fields: make(map[string]*Field),
	}

	for i := range cfg.Columns {
		col := &cfg.Columns[i]
		prov := SourceBase
		qual := baseAlias
		if col.Computed {
			prov = SourceComputed
			qual = ""
		} else if tbl, _, ok := strings.Cut(col.Source, "."); ok {
			// Dot-qualified base declaration points at a join source.
			prov = SourceJoin
			qual = tbl
		}
		if err := r.add(col.Name, &Field{Name: col.Name, Provenance: prov, Qualifier: qual, Col: col}); err != nil {
			return nil, err
		}
	}

	for i := range cfg.Joins {
		if err := r.addJoin(&cfg.Joins[i]); err != nil {
			return nil, err
		}
	}

	for i := range cfg.Subqueries {
		sub := &cfg.Subqueries[i]
		if err := r.add(sub.Alias, &Field{Name: sub.Alias, Provenance: SourceSubquery, Sub: sub}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Resolver) addJoin(j *schema.JoinConfig) error {
	alias := j.AliasOrTable()
	for i := range j.Columns {
		col := &j.Columns[i]
		f := &Field{Name: col.Name, Provenance: SourceJoin, Qualifier: alias, Col: col}
		if existing, ok := r.fields[col.Name]; ok {
			// An explicitly declared base column keeps the plain name; the
			// join column stays reachable dot-qualified. Two join sources
			// claiming the same name is ambiguous and fails the config.
			if existing.Provenance == SourceJoin {
				return configErrf("field %q declared by both %q and %q", col.Name, existing.Qualifier, alias)
			}
		} else {
			if err := r.add(col.Name, f); err != nil {
				return err
			}
		}
		if err := r.add(alias+"."+col.Name, f); err != nil {
			return err
		}
	}
	for i := range j.Joins {
		if err := r.addJoin(&j.Joins[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) add(name string, f *Field) error {
	if _, dup := r.fields[name]; dup {
		return configErrf("duplicate field %q in table %q", name, r.cfg.Name)
	}
	r.fields[name] = f
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the field registered under name, or nil when unknown.
func (r *Resolver) Resolve(name string) *Field {
	return r.fields[name]
}

// ResolveFor resolves name for the given operation. Unknown names return
// (nil, nil): request-supplied unknowns are silently omitted by callers.
// A field that resolves but lacks the capability is a hard typed error.
func (r *Resolver) ResolveFor(name string, op OpKind) (*Field, error) {
	f := r.fields[name]
	if f == nil {
		return nil, nil
	}
	switch op {
	case OpFilter, OpSearch:
		if !f.filterable() {
			return nil, fieldErrf("field %q is not filterable", name)
		}
	case OpSort:
		if !f.sortable() {
			return nil, fieldErrf("field %q is not sortable", name)
		}
	case OpSelect:
		// Visibility is enforced by the role filter and response shaper.
	}
	return f, nil
}

// Fields returns all distinct resolved fields in declaration order,
// excluding dot-qualified duplicates.
func (r *Resolver) Fields() []*Field {
	out := make([]*Field, 0, len(r.order))
	for _, name := range r.order {
		if strings.Contains(name, ".") {
			continue
		}
		out = append(out, r.fields[name])
	}
	return out
}

// mustColumn resolves a raw base-table column reference used by backend
// conditions (tenant, soft delete, recursive keys).
func mustColumn(name string) string {
	return fmt.Sprintf("%s.%s", qi(baseAlias), qi(name))
}
