package engine

import (
	"testing"

	"github.com/tablegate/tablegate/internal/schema"
)

func orderNames(terms []OrderTerm) []string {
	names := make([]string, len(terms))
	for i, t := range terms {
		dir := ".asc"
		if t.Desc {
			dir = ".desc"
		}
		names[i] = t.Field.Name + dir
	}
	return names
}

func assertOrder(t *testing.T, terms []OrderTerm, want ...string) {
	t.Helper()
	got := orderNames(terms)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestResolveSortRequested(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	terms := e.resolveSort([]schema.SortConfig{
		{Field: "status"},
		{Field: "total", Direction: "desc"},
	})
	assertOrder(t, terms, "status.asc", "total.desc", "id.desc")
}

func TestResolveSortDefaultFallback(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)

	// No request sort: the configured default applies.
	assertOrder(t, e.resolveSort(nil), "createdAt.desc", "id.desc")

	// Entirely invalid request sort also falls back.
	terms := e.resolveSort([]schema.SortConfig{{Field: "nosuch"}})
	assertOrder(t, terms, "createdAt.desc", "id.desc")
}

func TestResolveSortDropsInvalidSilently(t *testing.T) {
	cfg := ordersConfig()
	cfg.Columns[2].Sortable = boolPtr(false) // total
	e := newEngine(t, cfg, DialectPostgres)

	terms := e.resolveSort([]schema.SortConfig{
		{Field: "total"},
		{Field: "status"},
	})
	assertOrder(t, terms, "status.asc", "id.asc")
}

func TestResolveSortTieBreakFollowsLastDirection(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)

	terms := e.resolveSort([]schema.SortConfig{{Field: "status", Direction: "desc"}})
	assertOrder(t, terms, "status.desc", "id.desc")

	terms = e.resolveSort([]schema.SortConfig{{Field: "status"}})
	assertOrder(t, terms, "status.asc", "id.asc")
}

func TestResolveSortPKNotDuplicated(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	terms := e.resolveSort([]schema.SortConfig{{Field: "id", Direction: "desc"}})
	assertOrder(t, terms, "id.desc")
}

func TestResolveSortNoConfigSort(t *testing.T) {
	cfg := ordersConfig()
	cfg.DefaultSort = nil
	e := newEngine(t, cfg, DialectPostgres)

	// With nothing requested and no default, only the pk tie-break remains.
	assertOrder(t, e.resolveSort(nil), "id.asc")
}

func TestResolveSortCustomPK(t *testing.T) {
	cfg := ordersConfig()
	cfg.PrimaryKey = "status"
	e := newEngine(t, cfg, DialectPostgres)
	assertOrder(t, e.resolveSort(nil), "createdAt.desc", "status.desc")
}
