package source

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLSource is a DataSource backed by a SQLite database reached through
// database/sql. Table and column names are assumed to match the fabric's
// catalog names 1:1, so dispatch translation is the identity.
type SQLSource struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	schema SchemaDescription
	ownsDB bool
}

// NewSQLSource opens (or creates) the SQLite database at path and reads
// its schema. Use ":memory:" for a private in-memory database.
func NewSQLSource(path string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	s := &SQLSource{db: db, path: path, ownsDB: true}
	if err := s.refreshSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSourceFromDB wraps an already-open database handle. The caller
// retains ownership of the handle; Close does not close it.
func NewSQLSourceFromDB(db *sql.DB) (*SQLSource, error) {
	s := &SQLSource{db: db}
	if err := s.refreshSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLSourceFrom materializes another source's schema and rows into a
// fresh in-memory SQLite database. It refuses to wrap a source that is
// already SQL-backed.
func NewSQLSourceFrom(ctx context.Context, src DataSource) (*SQLSource, error) {
	if _, ok := src.(*SQLSource); ok {
		return nil, fmt.Errorf("wrapping a SQL source in another SQL source: %w", ErrNotImplemented)
	}

	desc, err := src.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading source schema: %w", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	s := &SQLSource{db: db, path: ":memory:", ownsDB: true}
	for _, t := range desc.Tables {
		if _, err := db.ExecContext(ctx, createTable(t)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating table %q: %w", t.Name, err)
		}
		if err := s.copyTable(ctx, src, t); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := s.refreshSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// copyTable streams one table's rows from src into the local database.
func (s *SQLSource) copyTable(ctx context.Context, src DataSource, t TableSchema) error {
	if len(t.Columns) == 0 {
		return nil
	}

	// Column-at-a-time reads, zipped back into rows. All columns of a
	// table report the same row count.
	columns := make([][]any, len(t.Columns))
	for i, c := range t.Columns {
		values, err := src.LookupColumn(ctx, t.Name, c.Name)
		if err != nil {
			return fmt.Errorf("reading %s.%s: %w", t.Name, c.Name, err)
		}
		columns[i] = values
	}

	for row := 0; row < len(columns[0]); row++ {
		fields := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			fields[c.Name] = columns[i][row]
		}
		stmt, args := insertRow(t.Name, fields)
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("copying row into %q: %w", t.Name, err)
		}
	}
	return nil
}

// Kind implements DataSource.
func (s *SQLSource) Kind() Kind {
	return KindSQL
}

// Schema implements DataSource. It returns the schema snapshot taken at
// open or at the last Recatalog; callers who mutate the database through
// Execute must Recatalog to observe new tables.
func (s *SQLSource) Schema(ctx context.Context) (SchemaDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema, nil
}

// Recatalog implements DataSource. It re-reads the live schema and returns
// the refreshed source.
func (s *SQLSource) Recatalog(ctx context.Context) (DataSource, error) {
	if err := s.refreshSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// refreshSchema replaces the cached schema snapshot with the database's
// current structure.
func (s *SQLSource) refreshSchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	desc := SchemaDescription{Tables: make([]TableSchema, 0, len(names))}
	for _, name := range names {
		cols, err := s.tableColumns(ctx, name)
		if err != nil {
			return err
		}
		desc.Tables = append(desc.Tables, TableSchema{Name: name, Columns: cols})
	}

	s.mu.Lock()
	s.schema = desc
	s.mu.Unlock()
	return nil
}

// tableColumns reads one table's column names and declared types.
func (s *SQLSource) tableColumns(ctx context.Context, table string) ([]ColumnSchema, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("reading columns of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnSchema
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %q: %w", table, err)
		}
		cols = append(cols, ColumnSchema{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns of %q: %w", table, err)
	}
	return cols, nil
}

// AddRow implements DataSource.
func (s *SQLSource) AddRow(ctx context.Context, table string, fields map[string]any) (RowID, error) {
	stmt, args := insertRow(table, fields)
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %q: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return RowID(id), nil
}

// AddRows implements DataSource.
func (s *SQLSource) AddRows(ctx context.Context, table string, n int, fields map[string]any) ([]RowID, error) {
	ids := make([]RowID, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.AddRow(ctx, table, fields)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LookupColumn implements DataSource.
func (s *SQLSource) LookupColumn(ctx context.Context, table, column string) ([]any, error) {
	rows, err := s.db.QueryContext(ctx, selectColumn(table, column))
	if err != nil {
		return nil, fmt.Errorf("reading %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s.%s: %w", table, column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s.%s: %w", table, column, err)
	}
	return values, nil
}

// LookupCell implements DataSource.
func (s *SQLSource) LookupCell(ctx context.Context, table string, row RowID, column string) (any, error) {
	var v any
	err := s.db.QueryRowContext(ctx, selectCell(table, column), int64(row)).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table %q has no row %d", table, row)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s.%s row %d: %w", table, column, row, err)
	}
	return v, nil
}

// LookupIncident implements DataSource.
func (s *SQLSource) LookupIncident(ctx context.Context, table, column string, value any) ([]RowID, error) {
	rows, err := s.db.QueryContext(ctx, selectIncident(table, column), value)
	if err != nil {
		return nil, fmt.Errorf("matching %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var ids []RowID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning rowid: %w", err)
		}
		ids = append(ids, RowID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matching %s.%s: %w", table, column, err)
	}
	return ids, nil
}

// Execute implements DataSource. The statement is forwarded verbatim; the
// schema snapshot is NOT refreshed afterward, so callers that create or
// drop tables must Recatalog explicitly.
func (s *SQLSource) Execute(ctx context.Context, statement string) (*ExecResult, error) {
	if isQuery(statement) {
		rows, err := s.db.QueryContext(ctx, statement)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		defer rows.Close()
		return collectRows(rows)
	}

	res, err := s.db.ExecContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	affected, _ := res.RowsAffected()
	last, _ := res.LastInsertId()
	return &ExecResult{RowsAffected: affected, LastInsertID: last}, nil
}

// collectRows drains a row set into an ExecResult.
func collectRows(rows *sql.Rows) (*ExecResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	result := &ExecResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}
	return result, nil
}

// Close implements DataSource.
func (s *SQLSource) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
