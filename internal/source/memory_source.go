package source

import (
	"context"
	"fmt"
	"sync"
)

// memTable is one attributed table held in memory. Row ids are 1-based
// slice indexes, so iteration order is insertion order.
type memTable struct {
	columns []ColumnSchema
	rows    []map[string]any
}

// MemorySource is an in-memory implementation of DataSource.
type MemorySource struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	order  []string
}

// NewMemorySource creates a new in-memory source with no tables.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		tables: make(map[string]*memTable),
	}
}

// DefineTable declares a table with the given ordered columns. It fails if
// the table already exists.
func (m *MemorySource) DefineTable(name string, columns []ColumnSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; ok {
		return fmt.Errorf("table %q already defined", name)
	}
	cols := make([]ColumnSchema, len(columns))
	copy(cols, columns)
	m.tables[name] = &memTable{columns: cols}
	m.order = append(m.order, name)
	return nil
}

// Kind implements DataSource.
func (m *MemorySource) Kind() Kind {
	return KindMemory
}

// Schema implements DataSource.
func (m *MemorySource) Schema(ctx context.Context) (SchemaDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	desc := SchemaDescription{Tables: make([]TableSchema, 0, len(m.order))}
	for _, name := range m.order {
		t := m.tables[name]
		cols := make([]ColumnSchema, len(t.columns))
		copy(cols, t.columns)
		desc.Tables = append(desc.Tables, TableSchema{Name: name, Columns: cols})
	}
	return desc, nil
}

// Recatalog implements DataSource. Memory sources have nothing to refresh.
func (m *MemorySource) Recatalog(ctx context.Context) (DataSource, error) {
	return m, nil
}

// AddRow implements DataSource.
func (m *MemorySource) AddRow(ctx context.Context, table string, fields map[string]any) (RowID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("no such table %q", table)
	}
	for field := range fields {
		if !t.hasColumn(field) {
			return 0, fmt.Errorf("table %q has no column %q", table, field)
		}
	}

	row := make(map[string]any, len(fields))
	for k, v := range fields {
		row[k] = v
	}
	t.rows = append(t.rows, row)
	return RowID(len(t.rows)), nil
}

// AddRows implements DataSource.
func (m *MemorySource) AddRows(ctx context.Context, table string, n int, fields map[string]any) ([]RowID, error) {
	ids := make([]RowID, 0, n)
	for i := 0; i < n; i++ {
		id, err := m.AddRow(ctx, table, fields)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LookupColumn implements DataSource.
func (m *MemorySource) LookupColumn(ctx context.Context, table, column string) ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("table %q has no column %q", table, column)
	}

	values := make([]any, 0, len(t.rows))
	for _, row := range t.rows {
		values = append(values, row[column])
	}
	return values, nil
}

// LookupCell implements DataSource.
func (m *MemorySource) LookupCell(ctx context.Context, table string, row RowID, column string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("table %q has no column %q", table, column)
	}
	if row < 1 || int(row) > len(t.rows) {
		return nil, fmt.Errorf("table %q has no row %d", table, row)
	}
	return t.rows[row-1][column], nil
}

// LookupIncident implements DataSource.
func (m *MemorySource) LookupIncident(ctx context.Context, table, column string, value any) ([]RowID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("table %q has no column %q", table, column)
	}

	var ids []RowID
	for i, row := range t.rows {
		if valuesEqual(row[column], value) {
			ids = append(ids, RowID(i+1))
		}
	}
	return ids, nil
}

// Execute implements DataSource. Memory sources have no statement language.
func (m *MemorySource) Execute(ctx context.Context, statement string) (*ExecResult, error) {
	return nil, fmt.Errorf("memory source cannot execute statements: %w", ErrNotImplemented)
}

// Close implements DataSource.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = nil
	m.order = nil
	return nil
}

func (t *memTable) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// valuesEqual compares two cell values, treating all integer widths as the
// same number so that ids round-tripped through a SQL driver (which hands
// back int64) still match values stored as plain ints.
func valuesEqual(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return ai == bi
		}
		return false
	}
	return a == b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case RowID:
		return int64(n), true
	default:
		return 0, false
	}
}
