package main

import "database/sql"

// StatsRow is one phase ("before" or "after") of the stats table written
// by internal/store.
type StatsRow struct {
	Phase        string `json:"phase"`
	Globals      int    `json:"globals"`
	Functions    int    `json:"functions"`
	Blocks       int    `json:"blocks"`
	Instructions int    `json:"instructions"`
}

// CriterionRow mirrors internal/store.Criterion for JSON responses.
type CriterionRow struct {
	Proc  string `json:"proc"`
	Value string `json:"value"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// LineRow is a single retained source line.
type LineRow struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func queryStats(db *sql.DB) ([]StatsRow, error) {
	rows, err := db.Query(`SELECT phase, globals, functions, blocks, instructions FROM stats ORDER BY phase`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var s StatsRow
		if err := rows.Scan(&s.Phase, &s.Globals, &s.Functions, &s.Blocks, &s.Instructions); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryCriteria(db *sql.DB) ([]CriterionRow, error) {
	rows, err := db.Query(`SELECT proc, value, file, line FROM criteria ORDER BY proc, line`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CriterionRow
	for rows.Next() {
		var c CriterionRow
		if err := rows.Scan(&c.Proc, &c.Value, &c.File, &c.Line); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// queryLines returns the retained lines, optionally restricted to file.
func queryLines(db *sql.DB, file string) ([]LineRow, error) {
	query := `SELECT file, line FROM retained_lines`
	args := []any{}
	if file != "" {
		query += ` WHERE file = ?`
		args = append(args, file)
	}
	query += ` ORDER BY file, line`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineRow
	for rows.Next() {
		var l LineRow
		if err := rows.Scan(&l.File, &l.Line); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func queryFiles(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT file FROM retained_lines ORDER BY file`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
