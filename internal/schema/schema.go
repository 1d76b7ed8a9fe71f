// Package schema holds the hand-authored description of the STUDENT table that
// is embedded in every prompt, and can compare it against a live database.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Table represents a database table and its structure.
type Table struct {
	Name    string
	Columns []Column
}

// Column represents a table column.
type Column struct {
	Name string
	Type string
	IsPK bool
}

// Student is the only table the translator is told about. It must stay in
// step with the DDL in internal/database/seed.go; Check reports drift.
var Student = Table{
	Name: "STUDENT",
	Columns: []Column{
		{Name: "STUDENT_ID", Type: "INTEGER", IsPK: true},
		{Name: "NAME", Type: "TEXT"},
		{Name: "CITY", Type: "TEXT"},
		{Name: "ENGLISH", Type: "INTEGER"},
		{Name: "MATHS", Type: "INTEGER"},
		{Name: "SCIENCE", Type: "INTEGER"},
		{Name: "HINDI", Type: "INTEGER"},
		{Name: "HISTORY", Type: "INTEGER"},
		{Name: "GEOGRAPHY", Type: "INTEGER"},
		{Name: "COMPUTER", Type: "INTEGER"},
		{Name: "TOTAL", Type: "INTEGER"},
		{Name: "PERCENTAGE", Type: "REAL"},
		{Name: "GRADE", Type: "TEXT"},
	},
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ToText serializes the table to the text format used in prompts.
func (t Table) ToText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The database has one table named `%s` with the following columns:\n", t.Name))
	for _, col := range t.Columns {
		sb.WriteString(fmt.Sprintf("- %s (%s", col.Name, col.Type))
		if col.IsPK {
			sb.WriteString(", PRIMARY KEY")
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// Drift lists differences between the described table and the live one.
type Drift struct {
	Table      string   `json:"table"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
}

// OK reports whether the live table matches the description.
func (d Drift) OK() bool {
	return len(d.Missing) == 0 && len(d.Unexpected) == 0
}

func (d Drift) String() string {
	if d.OK() {
		return fmt.Sprintf("table %s matches description", d.Table)
	}
	var parts []string
	if len(d.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(d.Missing, ", "))
	}
	if len(d.Unexpected) > 0 {
		parts = append(parts, "unexpected columns: "+strings.Join(d.Unexpected, ", "))
	}
	return fmt.Sprintf("table %s drifted (%s)", d.Table, strings.Join(parts, "; "))
}

// Check introspects the live table and compares its column names,
// case-insensitively, with t. Types are not compared because the DDL uses
// engine-specific spellings (INT, VARCHAR(25), FLOAT).
func Check(ctx context.Context, db *sql.DB, driver string, t Table) (Drift, error) {
	live, err := liveColumns(ctx, db, driver, t.Name)
	if err != nil {
		return Drift{}, fmt.Errorf("introspect %s: %w", t.Name, err)
	}

	drift := Drift{Table: t.Name}
	if len(live) == 0 {
		drift.Missing = t.ColumnNames()
		return drift, nil
	}

	liveSet := make(map[string]struct{}, len(live))
	for _, name := range live {
		liveSet[strings.ToUpper(name)] = struct{}{}
	}
	described := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		described[strings.ToUpper(col.Name)] = struct{}{}
		if _, ok := liveSet[strings.ToUpper(col.Name)]; !ok {
			drift.Missing = append(drift.Missing, col.Name)
		}
	}
	for _, name := range live {
		if _, ok := described[strings.ToUpper(name)]; !ok {
			drift.Unexpected = append(drift.Unexpected, name)
		}
	}
	return drift, nil
}

func liveColumns(ctx context.Context, db *sql.DB, driver, table string) ([]string, error) {
	var query string
	switch driver {
	case "postgres":
		query = `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND lower(table_name) = lower($1)
			ORDER BY ordinal_position`
	default:
		query = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
	}

	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
