package source

import (
	"fmt"
	"sort"
	"strings"
)

// This file is the small statement compiler consumed by SQLSource. The
// fabric core never calls it: lookups and inserts reach it only through
// the adapter, and caller-supplied statements bypass it entirely.

// quoteIdent renders a SQL identifier with double-quote quoting.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectColumn renders a whole-column read ordered by rowid.
func selectColumn(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", quoteIdent(column), quoteIdent(table))
}

// selectCell renders a single-cell read keyed on rowid.
func selectCell(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE rowid = ?", quoteIdent(column), quoteIdent(table))
}

// selectIncident renders a reverse lookup: rowids whose column equals a
// bound value.
func selectIncident(table, column string) string {
	return fmt.Sprintf("SELECT rowid FROM %s WHERE %s = ? ORDER BY rowid", quoteIdent(table), quoteIdent(column))
}

// insertRow renders a parameterized insert for the given fields and
// returns the statement plus the bind values in column order. Field order
// is sorted so the rendered statement is deterministic.
func insertRow(table string, fields map[string]any) (string, []any) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	marks := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		cols[i] = quoteIdent(name)
		marks[i] = "?"
		args[i] = fields[name]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return stmt, args
}

// createTable renders a CREATE TABLE statement from a table schema.
func createTable(t TableSchema) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := c.Type
		if typ == "" {
			typ = "TEXT"
		}
		cols[i] = quoteIdent(c.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(cols, ", "))
}

// isQuery reports whether a raw statement produces a row set rather than
// a write count.
func isQuery(statement string) bool {
	head := strings.ToUpper(strings.TrimSpace(statement))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}
