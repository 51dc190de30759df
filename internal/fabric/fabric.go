// Package fabric composes Weft's source graph, catalog, and event log
// into the unified data-access layer.
//
// A Fabric resolves logical table and column names to the physical source
// that owns them and forwards each operation through the DataSource
// capability contract. Callers never address a source's storage directly;
// they address the catalog.
package fabric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weftdata/weft/internal/catalog"
	"github.com/weftdata/weft/internal/graph"
	"github.com/weftdata/weft/internal/source"
)

// EventKind names a fabric lifecycle operation.
type EventKind string

const (
	EventAddSource       EventKind = "add_source"
	EventAddTable        EventKind = "add_table"
	EventAddRelationship EventKind = "add_relationship"
	EventReflect         EventKind = "reflect"
	EventRecatalog       EventKind = "recatalog"
	EventLookup          EventKind = "lookup"
	EventInsert          EventKind = "insert"
	EventExecute         EventKind = "execute"
)

// Event is one entry in the fabric's append-only audit log. The log
// records what happened and when; dispatch never consults it.
type Event struct {
	Kind EventKind
	At   time.Time
}

// Fabric is the top-level composition: one source graph, one catalog, one
// event log. A fabric is created empty and populated by AddSource,
// AddRelationship, and Reflect.
//
// All operations take the fabric's lock, so a single fabric may be shared
// across goroutines; mutations are single-writer.
type Fabric struct {
	mu      sync.RWMutex
	graph   *graph.SourceGraph
	catalog *catalog.Catalog
	events  []Event
}

// New creates an empty fabric.
func New() *Fabric {
	return &Fabric{
		graph:   graph.New(),
		catalog: catalog.New(),
	}
}

// AddSource appends a source to the graph and returns its vertex id, the
// stable handle every other operation uses for that source.
func (f *Fabric) AddSource(src source.DataSource) graph.VertexID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.graph.AddVertex(src)
	f.log(EventAddSource)
	return id
}

// AddTable inserts a bare catalog table owned by the given source, for
// sources whose schema cannot be reflected. The catalog generates a fresh
// name; the hint is currently unused.
func (f *Fabric) AddTable(nameHint string, sourceID graph.VertexID) (catalog.TableID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.graph.VertexValue(sourceID); err != nil {
		return 0, err
	}
	id := f.catalog.AddTable(nameHint, int(sourceID))
	f.log(EventAddTable)
	return id, nil
}

// AddRelationship declares a foreign-key edge between two sources. The
// from and to arguments are "table!column" references; they are parsed
// and resolved later, by Reflect, not here.
func (f *Fabric) AddRelationship(src, tgt graph.VertexID, from, to string) (graph.EdgeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, err := f.graph.AddEdge(src, tgt, graph.EdgeLabel{From: from, To: to})
	if err != nil {
		return 0, err
	}
	f.log(EventAddRelationship)
	return id, nil
}

// Reflect populates the catalog from the graph in two phases: first every
// vertex's schema, in ascending id order, then every edge's foreign-key
// declaration, in ascending id order. Edges therefore always resolve
// against a complete set of phase-1 tables, regardless of the order in
// which sources and relationships were added.
//
// Reflect is NOT idempotent: reflecting the same fabric twice appends
// duplicate table and column rows. It is also not transactional: a
// failure in phase 2 leaves phase-1 rows committed and later edges
// unprocessed, and the caller sees the error.
func (f *Fabric) Reflect(ctx context.Context) (*catalog.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, vid := range f.graph.VertexIDs() {
		src, err := f.graph.VertexValue(vid)
		if err != nil {
			return nil, err
		}
		desc, err := src.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("reflecting source %d: %w", vid, err)
		}
		f.catalog.AddSchema(desc, int(vid))
	}

	for _, eid := range f.graph.EdgeIDs() {
		edge, err := f.graph.Edge(eid)
		if err != nil {
			return nil, err
		}
		if err := f.reflectEdge(edge); err != nil {
			return nil, err
		}
	}

	f.log(EventReflect)
	return f.catalog, nil
}

// reflectEdge resolves one edge label's column references and records the
// advisory foreign key, subject to the catalog's dedup policy.
func (f *Fabric) reflectEdge(edge graph.Edge) error {
	fromTable, fromCol, err := catalog.ParseRef(edge.Label.From)
	if err != nil {
		return fmt.Errorf("edge %d: %w", edge.ID, err)
	}
	toTable, toCol, err := catalog.ParseRef(edge.Label.To)
	if err != nil {
		return fmt.Errorf("edge %d: %w", edge.ID, err)
	}

	from, err := f.catalog.ResolveColumn(fromTable, fromCol)
	if err != nil {
		return fmt.Errorf("edge %d: %w", edge.ID, err)
	}
	to, err := f.catalog.ResolveColumn(toTable, toCol)
	if err != nil {
		return fmt.Errorf("edge %d: %w", edge.ID, err)
	}

	if _, err := f.catalog.AddForeignKey(from, to); err != nil {
		return fmt.Errorf("edge %d: %w", edge.ID, err)
	}
	return nil
}

// Recatalog asks every source to refresh itself and swaps the returned
// value into its vertex. Catalog rows are untouched; only graph vertex
// values change.
func (f *Fabric) Recatalog(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, vid := range f.graph.VertexIDs() {
		src, err := f.graph.VertexValue(vid)
		if err != nil {
			return err
		}
		refreshed, err := src.Recatalog(ctx)
		if err != nil {
			return fmt.Errorf("recataloging source %d: %w", vid, err)
		}
		if err := f.graph.SetVertexValue(vid, refreshed); err != nil {
			return err
		}
	}

	f.log(EventRecatalog)
	return nil
}

// LookupColumn resolves a logical column name to its owning table and
// source, then returns that column's values from the source. The name
// must be unique across the catalog.
func (f *Fabric) LookupColumn(ctx context.Context, column string) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tableName, src, err := f.resolveColumn(column)
	if err != nil {
		return nil, err
	}

	f.log(EventLookup)
	return src.LookupColumn(ctx, tableName, column)
}

// LookupRowsByValue resolves a logical column name and returns the ids of
// rows whose value in that column equals value.
func (f *Fabric) LookupRowsByValue(ctx context.Context, column string, value any) ([]source.RowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tableName, src, err := f.resolveColumn(column)
	if err != nil {
		return nil, err
	}

	f.log(EventLookup)
	return src.LookupIncident(ctx, tableName, column, value)
}

// InsertRow resolves the owning source of a catalog table and inserts one
// row through it.
func (f *Fabric) InsertRow(ctx context.Context, table catalog.TableID, fields map[string]any) (source.RowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.catalog.TableByID(table)
	if err != nil {
		return 0, err
	}
	src, err := f.graph.VertexValue(graph.VertexID(t.SourceID))
	if err != nil {
		return 0, err
	}

	f.log(EventInsert)
	return src.AddRow(ctx, t.Name, fields)
}

// Execute forwards a native statement verbatim to the source at sourceID.
// The fabric interprets neither the statement nor its result, and it does
// not recatalog afterward; a statement that changes the source's schema
// leaves the catalog stale until the caller refreshes it.
func (f *Fabric) Execute(ctx context.Context, sourceID graph.VertexID, statement string) (*source.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, err := f.graph.VertexValue(sourceID)
	if err != nil {
		return nil, err
	}

	f.log(EventExecute)
	return src.Execute(ctx, statement)
}

// Graph returns the fabric's source graph.
func (f *Fabric) Graph() *graph.SourceGraph {
	return f.graph
}

// Catalog returns the fabric's catalog.
func (f *Fabric) Catalog() *catalog.Catalog {
	return f.catalog
}

// Events returns a copy of the audit log in append order.
func (f *Fabric) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

// resolveColumn maps a unique logical column name to its table name and
// owning source. Must be called with the lock held.
func (f *Fabric) resolveColumn(column string) (string, source.DataSource, error) {
	cid, err := f.catalog.FindColumn(column)
	if err != nil {
		return "", nil, err
	}
	col, err := f.catalog.ColumnByID(cid)
	if err != nil {
		return "", nil, err
	}
	t, err := f.catalog.TableByID(col.TableID)
	if err != nil {
		return "", nil, err
	}
	src, err := f.graph.VertexValue(graph.VertexID(t.SourceID))
	if err != nil {
		return "", nil, err
	}
	return t.Name, src, nil
}

// log appends an event. Must be called with the write lock held.
func (f *Fabric) log(kind EventKind) {
	f.events = append(f.events, Event{Kind: kind, At: time.Now()})
}
