// Package catalog provides Weft's unified schema directory.
//
// The catalog records which tables and columns exist across all data
// sources, which source owns each table, and the advisory foreign-key
// edges declared between columns. It is append-only: reflection and
// AddTable only ever insert rows, and nothing deletes them.
package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/weftdata/weft/internal/source"
)

// RefSeparator splits a fully-qualified column reference into its table
// and column parts.
const RefSeparator = "!"

// TableID is a 1-based catalog table identifier.
type TableID int

// ColumnID is a 1-based catalog column identifier.
type ColumnID int

// Table is one reflected table and the source that owns it.
type Table struct {
	ID       TableID
	Name     string
	SourceID int
}

// Column is one reflected column.
type Column struct {
	ID      ColumnID
	Name    string
	TableID TableID
	Type    string
}

// ForeignKey is one advisory edge between two columns. It is declared
// intent only; nothing validates or enforces it.
type ForeignKey struct {
	From ColumnID
	To   ColumnID
}

// Catalog is the mutable directory of reflected schema facts.
type Catalog struct {
	mu      sync.RWMutex
	tables  []Table
	columns []Column
	fks     []ForeignKey
	anonSeq int
	dedup   DedupPolicy
}

// New creates an empty catalog using the default foreign-key dedup policy.
func New() *Catalog {
	return &Catalog{dedup: CoarseEndpointDedup}
}

// SetDedupPolicy replaces the foreign-key dedup policy. It affects only
// subsequent AddForeignKey calls.
func (c *Catalog) SetDedupPolicy(p DedupPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dedup = p
}

// AddSchema inserts one Table row per table and one Column row per column
// of the reflected schema, tagging each table with the owning source.
// Calling it twice for the same source appends duplicate rows; the catalog
// never checks for prior reflection.
func (c *Catalog) AddSchema(desc source.SchemaDescription, sourceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range desc.Tables {
		tid := c.appendTable(t.Name, sourceID)
		for _, col := range t.Columns {
			c.appendColumn(col.Name, tid, col.Type)
		}
	}
}

// AddTable inserts a bare table entry owned by sourceID, for sources whose
// schema cannot be reflected. The name is always freshly generated;
// nameHint is recorded nowhere.
func (c *Catalog) AddTable(nameHint string, sourceID int) TableID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.anonSeq++
	return c.appendTable(fmt.Sprintf("table_%d", c.anonSeq), sourceID)
}

// FindColumn resolves a bare column name across all tables to exactly one
// column id. Zero matches yield ErrUnresolvedReference, more than one
// ErrAmbiguousLookup.
func (c *Catalog) FindColumn(name string) (ColumnID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []ColumnID
	for _, col := range c.columns {
		if col.Name == name {
			found = append(found, col.ID)
		}
	}
	switch len(found) {
	case 0:
		return 0, fmt.Errorf("column %q: %w", name, source.ErrUnresolvedReference)
	case 1:
		return found[0], nil
	default:
		return 0, fmt.Errorf("column %q matches %d catalog entries: %w", name, len(found), source.ErrAmbiguousLookup)
	}
}

// FindColumns returns the ids of every column with the given name, in
// catalog order. The result is empty, not an error, when nothing matches.
func (c *Catalog) FindColumns(name string) []ColumnID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []ColumnID
	for _, col := range c.columns {
		if col.Name == name {
			found = append(found, col.ID)
		}
	}
	return found
}

// ResolveColumn resolves a (table name, column name) pair to exactly one
// column id. Zero matches yield ErrUnresolvedReference, more than one
// ErrAmbiguousLookup.
func (c *Catalog) ResolveColumn(table, column string) (ColumnID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []ColumnID
	for _, col := range c.columns {
		if col.Name != column {
			continue
		}
		if c.tables[col.TableID-1].Name == table {
			found = append(found, col.ID)
		}
	}
	switch len(found) {
	case 0:
		return 0, fmt.Errorf("column %s%s%s: %w", table, RefSeparator, column, source.ErrUnresolvedReference)
	case 1:
		return found[0], nil
	default:
		return 0, fmt.Errorf("column %s%s%s matches %d catalog entries: %w",
			table, RefSeparator, column, len(found), source.ErrAmbiguousLookup)
	}
}

// AddForeignKey records an advisory edge between two columns unless the
// active dedup policy suppresses it. It reports whether the edge was
// materialized.
func (c *Catalog) AddForeignKey(from, to ColumnID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasColumn(from) {
		return false, fmt.Errorf("foreign key from column %d: %w", from, source.ErrInvalidReference)
	}
	if !c.hasColumn(to) {
		return false, fmt.Errorf("foreign key to column %d: %w", to, source.ErrInvalidReference)
	}

	if c.dedup(c.fks, from, to) {
		return false, nil
	}
	c.fks = append(c.fks, ForeignKey{From: from, To: to})
	return true, nil
}

// TableByID returns the table with the given id.
func (c *Catalog) TableByID(id TableID) (Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id < 1 || int(id) > len(c.tables) {
		return Table{}, fmt.Errorf("table %d: %w", id, source.ErrInvalidReference)
	}
	return c.tables[id-1], nil
}

// ColumnByID returns the column with the given id.
func (c *Catalog) ColumnByID(id ColumnID) (Column, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasColumn(id) {
		return Column{}, fmt.Errorf("column %d: %w", id, source.ErrInvalidReference)
	}
	return c.columns[id-1], nil
}

// TableSource resolves which source owns a table. This is the core of
// fabric dispatch.
func (c *Catalog) TableSource(id TableID) (int, error) {
	t, err := c.TableByID(id)
	if err != nil {
		return 0, err
	}
	return t.SourceID, nil
}

// ColumnSource resolves which source owns the table a column belongs to.
func (c *Catalog) ColumnSource(id ColumnID) (int, error) {
	col, err := c.ColumnByID(id)
	if err != nil {
		return 0, err
	}
	return c.TableSource(col.TableID)
}

// Tables returns a copy of all table rows in insertion order.
func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Columns returns a copy of all column rows in insertion order.
func (c *Catalog) Columns() []Column {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Column, len(c.columns))
	copy(out, c.columns)
	return out
}

// ForeignKeys returns a copy of all materialized foreign keys in
// insertion order.
func (c *Catalog) ForeignKeys() []ForeignKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ForeignKey, len(c.fks))
	copy(out, c.fks)
	return out
}

// ParseRef splits a "table!column" reference. A reference without the
// separator, or with an empty side, fails with ErrUnresolvedReference
// rather than mis-splitting silently.
func ParseRef(ref string) (table, column string, err error) {
	table, column, ok := strings.Cut(ref, RefSeparator)
	if !ok || table == "" || column == "" {
		return "", "", fmt.Errorf("malformed column reference %q: %w", ref, source.ErrUnresolvedReference)
	}
	return table, column, nil
}

// appendTable and appendColumn must be called with the write lock held.

func (c *Catalog) appendTable(name string, sourceID int) TableID {
	id := TableID(len(c.tables) + 1)
	c.tables = append(c.tables, Table{ID: id, Name: name, SourceID: sourceID})
	return id
}

func (c *Catalog) appendColumn(name string, tableID TableID, typ string) ColumnID {
	id := ColumnID(len(c.columns) + 1)
	c.columns = append(c.columns, Column{ID: id, Name: name, TableID: tableID, Type: typ})
	return id
}

func (c *Catalog) hasColumn(id ColumnID) bool {
	return id >= 1 && int(id) <= len(c.columns)
}
