// Package source defines the data source capability contract for Weft.
//
// A DataSource is any store that can describe its own schema, accept row
// insertions, and answer column and reverse-value lookups. The fabric
// dispatches every logical operation through this interface and never
// inspects the concrete adapter type.
package source

import (
	"context"
	"errors"
)

// Kind identifies the adapter family behind a DataSource.
type Kind string

const (
	KindMemory Kind = "memory"
	KindSQL    Kind = "sql"
	KindBadger Kind = "badger"
)

// Error kinds surfaced by the fabric and its adapters. They are sentinels;
// callers match them with errors.Is.
var (
	// ErrInvalidReference means an id (vertex, edge, table, column, source)
	// did not exist at time of use.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrUnresolvedReference means a declared relationship label could not
	// be resolved against the catalog, or the label itself is malformed.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrAmbiguousLookup means a lookup that must resolve to exactly one
	// catalog entry matched more than one.
	ErrAmbiguousLookup = errors.New("ambiguous lookup")

	// ErrNotImplemented means the adapter explicitly refuses an operation
	// it does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// RowID is a 1-based row identifier within a single table of a source.
type RowID int64

// ColumnSchema describes one column of a table: its name and the semantic
// type of the scalar values it holds.
type ColumnSchema struct {
	Name string
	Type string
}

// TableSchema describes one table: its name and its ordered columns.
type TableSchema struct {
	Name    string
	Columns []ColumnSchema
}

// SchemaDescription is an explicit, ordered snapshot of a source's
// structure. It is a plain value object: the catalog consumes it without
// reflecting over any live container.
type SchemaDescription struct {
	Tables []TableSchema
}

// ExecResult holds the outcome of a native statement. Query statements
// populate Columns and Rows; write statements populate RowsAffected and
// LastInsertID.
type ExecResult struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// DataSource is the capability contract every adapter implements.
//
// Implementations must be safe for concurrent use by a single fabric.
type DataSource interface {
	// Kind reports the adapter family. The fabric records it as the
	// vertex label; it is never used for dispatch.
	Kind() Kind

	// Schema returns the source's current table/column structure.
	Schema(ctx context.Context) (SchemaDescription, error)

	// Recatalog refreshes the source and returns the value that should
	// replace it in the source graph. In-memory adapters return
	// themselves unchanged; live-connection adapters re-read their
	// schema.
	Recatalog(ctx context.Context) (DataSource, error)

	// AddRow inserts one row into the named table and returns its id.
	AddRow(ctx context.Context, table string, fields map[string]any) (RowID, error)

	// AddRows inserts n identical rows and returns their ids in order.
	AddRows(ctx context.Context, table string, n int, fields map[string]any) ([]RowID, error)

	// LookupColumn returns every value of one column, in ascending row
	// id order.
	LookupColumn(ctx context.Context, table, column string) ([]any, error)

	// LookupCell returns the value of one column in one row.
	LookupCell(ctx context.Context, table string, row RowID, column string) (any, error)

	// LookupIncident returns the ids of rows whose column equals value,
	// in ascending order.
	LookupIncident(ctx context.Context, table, column string, value any) ([]RowID, error)

	// Execute forwards a native statement verbatim. Adapters without a
	// statement language return ErrNotImplemented.
	Execute(ctx context.Context, statement string) (*ExecResult, error)

	// Close releases any resources held by the adapter.
	Close() error
}
