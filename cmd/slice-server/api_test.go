package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory manifest database with the
// retained_lines/criteria/stats schema internal/store.Write produces.
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
	CREATE TABLE retained_lines (file TEXT NOT NULL, line INTEGER NOT NULL);
	CREATE TABLE criteria (proc TEXT NOT NULL, value TEXT NOT NULL, file TEXT NOT NULL, line INTEGER NOT NULL);
	CREATE TABLE stats (phase TEXT NOT NULL, globals INTEGER NOT NULL, functions INTEGER NOT NULL, blocks INTEGER NOT NULL, instructions INTEGER NOT NULL);
	`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	_, _ = db.Exec(`INSERT INTO retained_lines VALUES ('main.c', 3);`)
	_, _ = db.Exec(`INSERT INTO retained_lines VALUES ('main.c', 5);`)
	_, _ = db.Exec(`INSERT INTO retained_lines VALUES ('util.c', 1);`)
	_, _ = db.Exec(`INSERT INTO criteria VALUES ('main', 'i4', 'main.c', 5);`)
	_, _ = db.Exec(`INSERT INTO stats VALUES ('before', 2, 3, 4, 20);`)
	_, _ = db.Exec(`INSERT INTO stats VALUES ('after', 2, 2, 2, 8);`)

	return db
}

func TestHandleSlice_AllFiles(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db)
	req := httptest.NewRequest(http.MethodGet, "/api/slice", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/slice: want 200, got %d", rec.Code)
	}
	var rows []LineRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 retained lines, got %d: %v", len(rows), rows)
	}
}

func TestHandleSlice_FilteredByFile(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db)
	req := httptest.NewRequest(http.MethodGet, "/api/slice?file=main.c", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	var rows []LineRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 retained lines for main.c, got %d: %v", len(rows), rows)
	}
}

func TestHandleCriteria(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db)
	req := httptest.NewRequest(http.MethodGet, "/api/criteria", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	var rows []CriterionRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].Proc != "main" {
		t.Fatalf("expected one criterion for main, got %v", rows)
	}
}

func TestHandleStats(t *testing.T) {
	db := setupTestDB(t)
	app := NewApp(db)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	var rows []StatsRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected before+after rows, got %d", len(rows))
	}
	if rows[0].Phase != "after" || rows[1].Phase != "before" {
		t.Fatalf("expected alphabetical phase order (after, before), got %v", rows)
	}
}
