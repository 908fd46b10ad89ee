package schema

import (
	"fmt"
	"strings"
)

var validTypes = map[ValueType]bool{
	TypeString: true, TypeNumber: true, TypeBoolean: true,
	TypeDate: true, TypeJSON: true, TypeUUID: true,
}

var validJoinKinds = map[JoinKind]bool{
	JoinLeft: true, JoinRight: true, JoinInner: true, JoinFull: true,
}

// Validate checks the structural invariants of a table config: required
// identifiers present, enumerations within range, recursion bounded. Field
// reference checks against the resolver namespace belong to the engine and
// run separately at startup.
func (t *TableConfig) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table config: name is required")
	}
	if t.Table == "" {
		return fmt.Errorf("table config %q: base table is required", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table config %q: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		if err := validateColumn(c); err != nil {
			return fmt.Errorf("table config %q: %w", t.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("table config %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
	}

	for i := range t.Joins {
		if err := validateJoin(&t.Joins[i]); err != nil {
			return fmt.Errorf("table config %q: %w", t.Name, err)
		}
	}

	for _, s := range t.Subqueries {
		if s.Alias == "" || s.Table == "" {
			return fmt.Errorf("table config %q: subquery needs alias and table", t.Name)
		}
		switch s.Mode {
		case SubCount, SubExists, SubFirst:
		default:
			return fmt.Errorf("table config %q: subquery %q: unknown mode %q", t.Name, s.Alias, s.Mode)
		}
		if s.Mode == SubFirst {
			if s.Sortable != nil && *s.Sortable {
				return fmt.Errorf("table config %q: subquery %q: first mode is never sortable", t.Name, s.Alias)
			}
			if s.Filterable != nil && *s.Filterable {
				return fmt.Errorf("table config %q: subquery %q: first mode is never filterable", t.Name, s.Alias)
			}
		}
	}

	aggAliases := make(map[string]bool, len(t.Aggregations))
	for _, a := range t.Aggregations {
		if a.Alias == "" {
			return fmt.Errorf("table config %q: aggregation alias is required", t.Name)
		}
		switch a.Type {
		case AggCount, AggSum, AggAvg, AggMin, AggMax:
		default:
			return fmt.Errorf("table config %q: aggregation %q: unknown type %q", t.Name, a.Alias, a.Type)
		}
		if a.Type != AggCount && a.Field == "" {
			return fmt.Errorf("table config %q: aggregation %q: %s requires a field", t.Name, a.Alias, a.Type)
		}
		if aggAliases[a.Alias] {
			return fmt.Errorf("table config %q: duplicate aggregation alias %q", t.Name, a.Alias)
		}
		aggAliases[a.Alias] = true
	}

	if t.GroupBy != nil {
		if len(t.GroupBy.Fields) == 0 {
			return fmt.Errorf("table config %q: groupBy needs at least one field", t.Name)
		}
		for _, h := range t.GroupBy.Having {
			if !aggAliases[h.Alias] {
				return fmt.Errorf("table config %q: having references unknown aggregation alias %q", t.Name, h.Alias)
			}
		}
	}

	if t.Recursive != nil {
		r := t.Recursive
		if r.ParentKey == "" || r.ChildKey == "" {
			return fmt.Errorf("table config %q: recursive needs parentKey and childKey", t.Name)
		}
		if r.MaxDepth < 1 {
			return fmt.Errorf("table config %q: recursive maxDepth must be >= 1", t.Name)
		}
	}

	if t.Pagination.DefaultPageSize < 0 || t.Pagination.MaxPageSize < 0 {
		return fmt.Errorf("table config %q: negative page size", t.Name)
	}

	return nil
}

func validateColumn(c *ColumnConfig) error {
	if c.Name == "" {
		return fmt.Errorf("column name is required")
	}
	if c.Type != "" && !validTypes[c.Type] {
		return fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
	}
	if c.Computed && c.Expression == "" {
		return fmt.Errorf("column %q: computed column needs an expression", c.Name)
	}
	if !c.Computed && c.Expression != "" {
		return fmt.Errorf("column %q: expression requires computed: true", c.Name)
	}
	if c.Computed && strings.Contains(c.Source, ".") {
		return fmt.Errorf("column %q: computed column cannot have a joined source", c.Name)
	}
	return nil
}

func validateJoin(j *JoinConfig) error {
	if j.Table == "" {
		return fmt.Errorf("join: table is required")
	}
	if j.Kind != "" && !validJoinKinds[j.Kind] {
		return fmt.Errorf("join %q: unknown kind %q", j.Table, j.Kind)
	}
	structured := j.On.Local != "" && j.On.Foreign != ""
	if !structured && j.On.Raw == "" {
		return fmt.Errorf("join %q: on requires local+foreign or raw", j.Table)
	}
	if structured && j.On.Raw != "" {
		return fmt.Errorf("join %q: on accepts either local+foreign or raw, not both", j.Table)
	}
	for i := range j.Columns {
		if err := validateColumn(&j.Columns[i]); err != nil {
			return fmt.Errorf("join %q: %w", j.Table, err)
		}
	}
	for i := range j.Joins {
		if err := validateJoin(&j.Joins[i]); err != nil {
			return err
		}
	}
	return nil
}
