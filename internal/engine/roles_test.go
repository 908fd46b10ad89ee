package engine

import (
	"testing"

	"github.com/tablegate/tablegate/internal/schema"
)

func restrictedConfig() *schema.TableConfig {
	cfg := ordersConfig()
	cfg.Columns = append(cfg.Columns, schema.ColumnConfig{
		Name:  "margin",
		Type:  schema.TypeNumber,
		Roles: []string{"admin", "finance"},
	})
	cfg.Access = &schema.AccessConfig{Roles: []string{"staff", "admin"}}
	return cfg
}

func TestCheckAccess(t *testing.T) {
	e := newEngine(t, restrictedConfig(), DialectPostgres)

	if _, err := e.Compile(&Params{Roles: []string{"admin"}}); err != nil {
		t.Errorf("admin: %v", err)
	}
	if _, err := e.Compile(&Params{Roles: []string{"viewer"}}); CodeOf(err) != CodeAccessDenied {
		t.Errorf("viewer: expected ACCESS_DENIED, got %v", err)
	}
	if _, err := e.Compile(&Params{}); CodeOf(err) != CodeAccessDenied {
		t.Errorf("no roles: expected ACCESS_DENIED, got %v", err)
	}
}

func TestCheckAccessOpenTable(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	if _, err := e.Compile(&Params{}); err != nil {
		t.Errorf("open table: %v", err)
	}
}

func TestVisibleFields(t *testing.T) {
	e := newEngine(t, restrictedConfig(), DialectPostgres)

	has := func(fields []*Field, name string) bool {
		for _, f := range fields {
			if f.Name == name {
				return true
			}
		}
		return false
	}

	if has(e.visibleFields([]string{"staff"}), "margin") {
		t.Error("restricted field visible without a matching role")
	}
	if !has(e.visibleFields([]string{"staff", "finance"}), "margin") {
		t.Error("restricted field hidden despite a matching role")
	}
	if !has(e.visibleFields(nil), "status") {
		t.Error("unrestricted field must always be visible")
	}
}

// Sorting by a role-restricted column force-selects it so the cursor token
// can be seeded; the shaper must still drop its value for callers without a
// matching role.
func TestSortByRestrictedFieldNotReturned(t *testing.T) {
	e := newEngine(t, restrictedConfig(), DialectPostgres)
	rows := []map[string]any{{"id": "a", "status": "active", "margin": 99.5}}

	p := &Params{
		Roles: []string{"staff"},
		Sort:  []schema.SortConfig{{Field: "margin", Direction: "desc"}},
	}
	plan := mustCompile(t, e, p)
	data, _ := plan.ShapeRows(rows, p)
	if _, leaked := data[0]["margin"]; leaked {
		t.Errorf("restricted value leaked via sort key: %v", data[0])
	}
	if data[0]["status"] != "active" {
		t.Errorf("row = %v", data[0])
	}

	admin := &Params{
		Roles: []string{"admin"},
		Sort:  []schema.SortConfig{{Field: "margin", Direction: "desc"}},
	}
	adminPlan := mustCompile(t, e, admin)
	adminData, _ := adminPlan.ShapeRows(rows, admin)
	if adminData[0]["margin"] != 99.5 {
		t.Errorf("matching role must see the value: %v", adminData[0])
	}
}

// The same engine must serve callers with different roles concurrently; the
// visibility filter derives a view and never touches the config.
func TestVisibleFieldsDoesNotMutateConfig(t *testing.T) {
	cfg := restrictedConfig()
	e := newEngine(t, cfg, DialectPostgres)

	_ = e.visibleFields([]string{"staff"})
	_ = e.visibleFields([]string{"finance"})

	n := 0
	for _, c := range cfg.Columns {
		if len(c.Roles) > 0 {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("config mutated: %d restricted columns", n)
	}
	if e.res.Resolve("margin") == nil {
		t.Fatal("resolver lost the restricted field")
	}
}
