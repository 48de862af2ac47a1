// Package store persists a slicing run's manifest to SQLite: WAL
// pragmas, schema created up front, one bulk insert per table inside a
// single immediate transaction, against this system's
// retained_lines/criteria/stats schema.
package store

import (
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dgslice/slicer/internal/ir"
	"github.com/dgslice/slicer/internal/sourceline"
)

// Criterion is one resolved slicing criterion, recorded for the
// /api/criteria endpoint cmd/slice-server exposes.
type Criterion struct {
	Proc  string
	Value string
	File  string
	Line  int
}

// Write creates (overwriting) a SQLite manifest database at path holding
// the slice result: one row per retained (file, line) pair, a row per
// resolved criterion, plus two stats rows, one for the "before" counts
// and one for the "after" counts.
func Write(path string, manifest *sourceline.Manifest, criteria []Criterion, before, after ir.Counts) error {
	_ = os.Remove(path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return fmt.Errorf("store: open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if err := createSchema(conn); err != nil {
		return err
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	if err := insertLines(conn, manifest); err != nil {
		endFn(&err)
		return err
	}
	if err := insertCriteria(conn, criteria); err != nil {
		endFn(&err)
		return err
	}
	if err := insertStats(conn, before, after); err != nil {
		endFn(&err)
		return err
	}

	endFn(&err)
	if err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func createSchema(conn *sqlite.Conn) error {
	const ddl = `
CREATE TABLE retained_lines (
	file TEXT NOT NULL,
	line INTEGER NOT NULL
);
CREATE INDEX idx_retained_lines_file ON retained_lines(file);
CREATE TABLE criteria (
	proc TEXT NOT NULL,
	value TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL
);
CREATE TABLE stats (
	phase TEXT NOT NULL,
	globals INTEGER NOT NULL,
	functions INTEGER NOT NULL,
	blocks INTEGER NOT NULL,
	instructions INTEGER NOT NULL
);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

func insertLines(conn *sqlite.Conn, manifest *sourceline.Manifest) error {
	stmt, err := conn.Prepare("INSERT INTO retained_lines (file, line) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare retained_lines: %w", err)
	}
	defer stmt.Finalize()

	for file, lines := range manifest.Files {
		for _, line := range lines {
			stmt.Reset()
			stmt.BindText(1, file)
			stmt.BindInt64(2, int64(line))
			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("store: insert retained_lines: %w", err)
			}
		}
	}
	return nil
}

func insertCriteria(conn *sqlite.Conn, criteria []Criterion) error {
	stmt, err := conn.Prepare("INSERT INTO criteria (proc, value, file, line) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare criteria: %w", err)
	}
	defer stmt.Finalize()

	for _, c := range criteria {
		stmt.Reset()
		stmt.BindText(1, c.Proc)
		stmt.BindText(2, c.Value)
		stmt.BindText(3, c.File)
		stmt.BindInt64(4, int64(c.Line))
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("store: insert criteria: %w", err)
		}
	}
	return nil
}

func insertStats(conn *sqlite.Conn, before, after ir.Counts) error {
	stmt, err := conn.Prepare("INSERT INTO stats (phase, globals, functions, blocks, instructions) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare stats: %w", err)
	}
	defer stmt.Finalize()

	for _, row := range []struct {
		phase string
		c     ir.Counts
	}{{"before", before}, {"after", after}} {
		stmt.Reset()
		stmt.BindText(1, row.phase)
		stmt.BindInt64(2, int64(row.c.Globals))
		stmt.BindInt64(3, int64(row.c.Functions))
		stmt.BindInt64(4, int64(row.c.Blocks))
		stmt.BindInt64(5, int64(row.c.Instructions))
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("store: insert stats: %w", err)
		}
	}
	return nil
}
