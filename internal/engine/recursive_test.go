package engine

import (
	"strings"
	"testing"

	"github.com/tablegate/tablegate/internal/schema"
)

func categoriesConfig() *schema.TableConfig {
	return &schema.TableConfig{
		Name:  "categories",
		Table: "categories",
		Columns: []schema.ColumnConfig{
			{Name: "id", Type: schema.TypeNumber},
			{Name: "name"},
			{Name: "status"},
		},
		Recursive: &schema.RecursiveConfig{
			ParentKey: "parent_id",
			ChildKey:  "id",
			MaxDepth:  5,
		},
	}
}

func TestBuildTree(t *testing.T) {
	e := newEngine(t, categoriesConfig(), DialectSQLite)

	sql, args, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	for _, want := range []string{
		`WITH RECURSIVE "_tree" AS (`,
		`SELECT "_e".*, 0 AS "depth" FROM "categories" "_e" WHERE "_e"."parent_id" IS NULL`,
		"UNION ALL",
		`SELECT "_c".*, "_p"."depth" + 1 FROM "categories" "_c" JOIN "_tree" "_p" ON "_c"."parent_id" = "_p"."id"`,
		`WHERE "_p"."depth" < ?`,
		`SELECT * FROM "_tree" ORDER BY "depth", "id"`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("missing %q in:\n%s", want, sql)
		}
	}
	// The depth ceiling is a parameter, never interpolated.
	if len(args) != 1 || args[0] != 5 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildTreeStartWith(t *testing.T) {
	cfg := categoriesConfig()
	cfg.Recursive.StartWith = &schema.FilterExpression{Field: "status", Operator: "eq", Value: "active"}
	e := newEngine(t, cfg, DialectSQLite)

	sql, args, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !strings.Contains(sql, `WHERE "_e"."status" = ?`) {
		t.Errorf("startWith missing:\n%s", sql)
	}
	if strings.Contains(sql, `"parent_id" IS NULL`) {
		t.Errorf("default root must be replaced:\n%s", sql)
	}
	if len(args) != 2 || args[0] != "active" || args[1] != 5 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildTreePath(t *testing.T) {
	cfg := categoriesConfig()
	cfg.Recursive.PathAlias = "path"
	e := newEngine(t, cfg, DialectSQLite)

	sql, _, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	for _, want := range []string{
		`CAST("_e"."id" AS text) AS "path"`,
		`"_p"."path" || '/' || CAST("_c"."id" AS text) AS "path"`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("missing %q in:\n%s", want, sql)
		}
	}
}

func TestBuildTreePathMySQL(t *testing.T) {
	cfg := categoriesConfig()
	cfg.Recursive.PathAlias = "path"
	e := newEngine(t, cfg, DialectMySQL)

	sql, _, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !strings.Contains(sql, `CONCAT("_p"."path", '/', CAST("_c"."id" AS text)) AS "path"`) {
		t.Errorf("mysql path concat missing:\n%s", sql)
	}
}

func TestBuildTreePostgresPlaceholders(t *testing.T) {
	e := newEngine(t, categoriesConfig(), DialectPostgres)

	sql, _, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !strings.Contains(sql, `"depth" < $1`) {
		t.Errorf("postgres placeholders not applied:\n%s", sql)
	}
	if strings.Contains(sql, "< ?") {
		t.Errorf("raw placeholder leaked:\n%s", sql)
	}
}

func TestBuildTreeDepthAlias(t *testing.T) {
	cfg := categoriesConfig()
	cfg.Recursive.DepthAlias = "level"
	e := newEngine(t, cfg, DialectSQLite)

	sql, _, err := e.BuildTree(&Params{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !strings.Contains(sql, `0 AS "level"`) || !strings.Contains(sql, `"_p"."level" < ?`) {
		t.Errorf("depth alias not applied:\n%s", sql)
	}
}

func TestBuildTreeWithoutConfig(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	if _, _, err := e.BuildTree(&Params{}); CodeOf(err) != CodeConfig {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}
