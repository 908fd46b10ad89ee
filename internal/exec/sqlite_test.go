package exec

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/tablegate/tablegate/internal/engine"
	"github.com/tablegate/tablegate/internal/schema"
)

func eventsConfig() *schema.TableConfig {
	return &schema.TableConfig{
		Name:  "events",
		Table: "events",
		Columns: []schema.ColumnConfig{
			{Name: "id", Type: schema.TypeString},
			{Name: "occurredAt", Source: "occurred_at", Type: schema.TypeString},
		},
		DefaultSort: []schema.SortConfig{{Field: "occurredAt", Direction: "desc"}},
	}
}

func newEventsDB(t *testing.T) *SQLite {
	t.Helper()
	ex, err := NewSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(ex.Close)
	if _, err := ex.DB().Exec(`CREATE TABLE events (id TEXT PRIMARY KEY, occurred_at TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return ex
}

// Walks cursor pagination end to end over a dataset where the leading sort
// key ties across page boundaries. The keyset predicate must yield every row
// exactly once; a flat comparison would skip rows inside a tie group.
func TestCursorWalkTiedSortKeys(t *testing.T) {
	ex := newEventsDB(t)
	seed := []struct{ id, at string }{
		{"e1", "2026-03-03"}, {"e2", "2026-03-03"}, {"e3", "2026-03-03"},
		{"e4", "2026-03-02"}, {"e5", "2026-03-02"},
		{"e6", "2026-03-01"}, {"e7", "2026-03-01"},
	}
	for _, s := range seed {
		if _, err := ex.DB().Exec(`INSERT INTO events (id, occurred_at) VALUES (?, ?)`, s.id, s.at); err != nil {
			t.Fatalf("insert %s: %v", s.id, err)
		}
	}

	eng, err := engine.New(eventsConfig(), ex.Dialect())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	ctx := context.Background()
	cursor := engine.EncodeCursor(nil) // empty boundary: first page
	var got []string
	for pages := 0; ; pages++ {
		if pages > len(seed) {
			t.Fatalf("pagination did not terminate, visited %v", got)
		}
		p := &engine.Params{Cursor: cursor, PageSize: 2}
		plan, err := eng.Compile(p)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		query, args, err := plan.BuildList()
		if err != nil {
			t.Fatalf("BuildList: %v", err)
		}
		rows, err := ex.Query(ctx, query, args...)
		if err != nil {
			t.Fatalf("Query: %v\n%s", err, query)
		}
		data, meta := plan.ShapeRows(rows, p)
		for _, row := range data {
			got = append(got, fmt.Sprint(row["id"]))
		}
		if meta.NextCursor == nil {
			break
		}
		cursor = *meta.NextCursor
	}

	// occurredAt desc, id desc tie-break.
	want := []string{"e3", "e2", "e1", "e5", "e4", "e7", "e6"}
	if len(got) != len(want) {
		t.Fatalf("visited %d rows, want %d: %v", len(got), len(want), got)
	}
	seen := make(map[string]bool, len(got))
	for i, id := range got {
		if seen[id] {
			t.Errorf("row %s visited more than once: %v", id, got)
		}
		seen[id] = true
		if id != want[i] {
			t.Errorf("position %d = %s, want %s (full walk %v)", i, id, want[i], got)
		}
	}
}
