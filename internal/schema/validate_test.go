package schema

import (
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func validConfig() *TableConfig {
	return &TableConfig{
		Name:  "orders",
		Table: "orders",
		Columns: []ColumnConfig{
			{Name: "id", Type: TypeUUID},
			{Name: "status", Type: TypeString},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TableConfig)
		want   string
	}{
		{"missing name", func(c *TableConfig) { c.Name = "" }, "name is required"},
		{"missing table", func(c *TableConfig) { c.Table = "" }, "base table is required"},
		{"no columns", func(c *TableConfig) { c.Columns = nil }, "at least one column"},
		{"duplicate column", func(c *TableConfig) {
			c.Columns = append(c.Columns, ColumnConfig{Name: "status"})
		}, "duplicate column"},
		{"unknown type", func(c *TableConfig) {
			c.Columns[0].Type = "decimal"
		}, "unknown type"},
		{"computed without expression", func(c *TableConfig) {
			c.Columns = append(c.Columns, ColumnConfig{Name: "x", Computed: true})
		}, "needs an expression"},
		{"expression without computed", func(c *TableConfig) {
			c.Columns = append(c.Columns, ColumnConfig{Name: "x", Expression: "1 + 1"})
		}, "requires computed"},
		{"computed with joined source", func(c *TableConfig) {
			c.Columns = append(c.Columns, ColumnConfig{Name: "x", Computed: true, Expression: "1", Source: "a.b"})
		}, "cannot have a joined source"},
		{"join without table", func(c *TableConfig) {
			c.Joins = []JoinConfig{{On: JoinOn{Local: "a", Foreign: "b"}}}
		}, "table is required"},
		{"join unknown kind", func(c *TableConfig) {
			c.Joins = []JoinConfig{{Table: "t", Kind: "cross", On: JoinOn{Local: "a", Foreign: "b"}}}
		}, "unknown kind"},
		{"join without on", func(c *TableConfig) {
			c.Joins = []JoinConfig{{Table: "t"}}
		}, "on requires"},
		{"join with both on forms", func(c *TableConfig) {
			c.Joins = []JoinConfig{{Table: "t", On: JoinOn{Local: "a", Foreign: "b", Raw: "x = y"}}}
		}, "not both"},
		{"nested join invalid", func(c *TableConfig) {
			c.Joins = []JoinConfig{{Table: "t", On: JoinOn{Local: "a", Foreign: "b"},
				Joins: []JoinConfig{{Table: "u"}}}}
		}, "on requires"},
		{"subquery unknown mode", func(c *TableConfig) {
			c.Subqueries = []SubqueryConfig{{Alias: "s", Table: "t", Mode: "sum"}}
		}, "unknown mode"},
		{"subquery without alias", func(c *TableConfig) {
			c.Subqueries = []SubqueryConfig{{Table: "t", Mode: SubCount}}
		}, "needs alias and table"},
		{"first mode sortable", func(c *TableConfig) {
			c.Subqueries = []SubqueryConfig{{Alias: "s", Table: "t", Mode: SubFirst, Sortable: boolPtr(true)}}
		}, "never sortable"},
		{"first mode filterable", func(c *TableConfig) {
			c.Subqueries = []SubqueryConfig{{Alias: "s", Table: "t", Mode: SubFirst, Filterable: boolPtr(true)}}
		}, "never filterable"},
		{"aggregation without alias", func(c *TableConfig) {
			c.Aggregations = []AggregationConfig{{Type: AggCount}}
		}, "alias is required"},
		{"aggregation unknown type", func(c *TableConfig) {
			c.Aggregations = []AggregationConfig{{Alias: "a", Type: "median"}}
		}, "unknown type"},
		{"aggregation sum without field", func(c *TableConfig) {
			c.Aggregations = []AggregationConfig{{Alias: "a", Type: AggSum}}
		}, "requires a field"},
		{"duplicate aggregation alias", func(c *TableConfig) {
			c.Aggregations = []AggregationConfig{
				{Alias: "a", Type: AggCount},
				{Alias: "a", Type: AggCount},
			}
		}, "duplicate aggregation alias"},
		{"groupBy without fields", func(c *TableConfig) {
			c.GroupBy = &GroupByConfig{}
		}, "at least one field"},
		{"having unknown alias", func(c *TableConfig) {
			c.GroupBy = &GroupByConfig{Fields: []string{"status"},
				Having: []HavingCondition{{Alias: "nosuch", Operator: "gt", Value: 1}}}
		}, "unknown aggregation alias"},
		{"recursive without keys", func(c *TableConfig) {
			c.Recursive = &RecursiveConfig{MaxDepth: 3}
		}, "parentKey and childKey"},
		{"recursive without depth", func(c *TableConfig) {
			c.Recursive = &RecursiveConfig{ParentKey: "p", ChildKey: "c"}
		}, "maxDepth must be >= 1"},
		{"negative page size", func(c *TableConfig) {
			c.Pagination.MaxPageSize = -1
		}, "negative page size"},
	}
	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestPKDefault(t *testing.T) {
	cfg := validConfig()
	if cfg.PK() != "id" {
		t.Errorf("PK() = %q", cfg.PK())
	}
	cfg.PrimaryKey = "order_id"
	if cfg.PK() != "order_id" {
		t.Errorf("PK() = %q", cfg.PK())
	}
}

func TestQualifiedTable(t *testing.T) {
	if got := QualifiedTable("orders"); got != `"orders"` {
		t.Errorf("QualifiedTable = %q", got)
	}
	if got := QualifiedTable("crm.orders"); got != `"crm"."orders"` {
		t.Errorf("QualifiedTable = %q", got)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`na"me`); got != `"na""me"` {
		t.Errorf("QuoteIdent = %q", got)
	}
}
