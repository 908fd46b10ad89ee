package engine

import (
	"testing"
)

func TestShapeRowsCursorTrim(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	cursor := EncodeCursor([]CursorKey{{Field: "createdAt", Value: "2026-01-01"}})
	plan := mustCompile(t, e, &Params{Cursor: cursor, PageSize: 2})

	rows := []map[string]any{
		{"id": "a", "createdAt": "2026-01-03"},
		{"id": "b", "createdAt": "2026-01-02"},
		{"id": "c", "createdAt": "2026-01-01"},
	}
	data, meta := plan.ShapeRows(rows, &Params{Cursor: cursor, PageSize: 2})

	if len(data) != 2 {
		t.Fatalf("expected the extra row trimmed, got %d rows", len(data))
	}
	if meta.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}
	keys, err := DecodeCursor(*meta.NextCursor)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	// The token carries the boundary row's full sort key.
	if len(keys) != 2 || keys[0].Field != "createdAt" || keys[1].Field != "id" {
		t.Fatalf("keys = %+v", keys)
	}
	if keys[0].Value != "2026-01-02" || keys[1].Value != "b" {
		t.Errorf("boundary values = %+v", keys)
	}
}

func TestShapeRowsNoNextPage(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	cursor := EncodeCursor([]CursorKey{{Field: "createdAt", Value: "2026-01-01"}})
	plan := mustCompile(t, e, &Params{Cursor: cursor, PageSize: 5})

	rows := []map[string]any{{"id": "a", "createdAt": "2026-01-03"}}
	data, meta := plan.ShapeRows(rows, &Params{Cursor: cursor, PageSize: 5})
	if len(data) != 1 || meta.NextCursor != nil {
		t.Errorf("short page must end pagination: %d rows, cursor %v", len(data), meta.NextCursor)
	}
}

func TestShapeRowsStripsHidden(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	plan := mustCompile(t, e, &Params{})

	rows := []map[string]any{{"id": "a", "status": "active", "internalNote": "secret"}}
	data, _ := plan.ShapeRows(rows, &Params{})
	if _, leaked := data[0]["internalNote"]; leaked {
		t.Error("hidden field leaked into the response")
	}
	if data[0]["status"] != "active" {
		t.Errorf("row = %v", data[0])
	}
}

func TestShapeRowsStripsUnrequestedSortKeys(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	p := &Params{Fields: []string{"status"}}
	plan := mustCompile(t, e, p)

	// createdAt and id were force-selected for the sort key.
	rows := []map[string]any{{"id": "a", "status": "active", "createdAt": "2026-01-01"}}
	data, _ := plan.ShapeRows(rows, p)
	if len(data[0]) != 1 {
		t.Errorf("row = %v, want only status", data[0])
	}
}

func TestShapeRowsTransforms(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	plan := mustCompile(t, e, &Params{})

	rows := []map[string]any{{"id": "a", "email": "alice@example.com"}}
	data, _ := plan.ShapeRows(rows, &Params{})
	if data[0]["email"] != "a****@example.com" {
		t.Errorf("email = %v", data[0]["email"])
	}
}

func TestShapeRowsPageMeta(t *testing.T) {
	e := newEngine(t, ordersConfig(), DialectPostgres)
	p := &Params{Page: 3, PageSize: 10}
	plan := mustCompile(t, e, p)

	_, meta := plan.ShapeRows(nil, p)
	if meta.Page != 3 || meta.PageSize != 10 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.NextCursor != nil {
		t.Error("offset mode must not emit a cursor")
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"alice@example.com", "a****@example.com"},
		{"ab@x.io", "a*@x.io"},
		{"a@x.io", "a@x.io"},
		{"not-an-email", "not-an-email"},
	}
	for _, tt := range tests {
		if got := maskEmail(tt.in); got != tt.want {
			t.Errorf("maskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
