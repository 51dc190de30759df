package source

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for different data types
const (
	prefixTable = "s:" // table schema
	prefixRow   = "r:" // row data
	prefixSeq   = "q:" // per-table row id counter
)

// BadgerSource is a DataSource backed by BadgerDB. Tables are declared up
// front with DefineTable; rows are stored as JSON under big-endian id keys
// so key order is row id order.
type BadgerSource struct {
	mu sync.RWMutex
	db *badger.DB
}

// NewBadgerSource opens or creates a Badger-backed source at the given
// path. An empty path opens a private in-memory store.
func NewBadgerSource(path string) (*BadgerSource, error) {
	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &BadgerSource{db: db}, nil
}

// DefineTable declares a table with the given ordered columns. It fails if
// the table already exists.
func (b *BadgerSource) DefineTable(name string, columns []ColumnSchema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixTable + name)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("table %q already defined", name)
		}

		data, err := json.Marshal(TableSchema{Name: name, Columns: columns})
		if err != nil {
			return fmt.Errorf("marshaling schema: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("setting schema: %w", err)
		}
		return nil
	})
}

// Kind implements DataSource.
func (b *BadgerSource) Kind() Kind {
	return KindBadger
}

// Schema implements DataSource. Badger iterates keys in sorted order, so
// tables come back sorted by name.
func (b *BadgerSource) Schema(ctx context.Context) (SchemaDescription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var desc SchemaDescription
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixTable)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var t TableSchema
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				return fmt.Errorf("unmarshaling schema: %w", err)
			}
			desc.Tables = append(desc.Tables, t)
		}
		return nil
	})
	if err != nil {
		return SchemaDescription{}, err
	}
	return desc, nil
}

// Recatalog implements DataSource. The store is the schema of record, so
// there is nothing to refresh.
func (b *BadgerSource) Recatalog(ctx context.Context) (DataSource, error) {
	return b, nil
}

// AddRow implements DataSource.
func (b *BadgerSource) AddRow(ctx context.Context, table string, fields map[string]any) (RowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var id RowID
	err := b.db.Update(func(txn *badger.Txn) error {
		schema, err := tableSchemaTxn(txn, table)
		if err != nil {
			return err
		}
		for field := range fields {
			if !hasColumn(schema, field) {
				return fmt.Errorf("table %q has no column %q", table, field)
			}
		}

		next, err := nextRowIDTxn(txn, table)
		if err != nil {
			return err
		}
		id = next

		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshaling row: %w", err)
		}
		if err := txn.Set(rowKey(table, id), data); err != nil {
			return fmt.Errorf("setting row: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddRows implements DataSource.
func (b *BadgerSource) AddRows(ctx context.Context, table string, n int, fields map[string]any) ([]RowID, error) {
	ids := make([]RowID, 0, n)
	for i := 0; i < n; i++ {
		id, err := b.AddRow(ctx, table, fields)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LookupColumn implements DataSource.
func (b *BadgerSource) LookupColumn(ctx context.Context, table, column string) ([]any, error) {
	var values []any
	err := b.scanRows(table, column, func(id RowID, value any) {
		values = append(values, value)
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// LookupCell implements DataSource.
func (b *BadgerSource) LookupCell(ctx context.Context, table string, row RowID, column string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var value any
	err := b.db.View(func(txn *badger.Txn) error {
		schema, err := tableSchemaTxn(txn, table)
		if err != nil {
			return err
		}
		if !hasColumn(schema, column) {
			return fmt.Errorf("table %q has no column %q", table, column)
		}

		item, err := txn.Get(rowKey(table, row))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("table %q has no row %d", table, row)
		}
		if err != nil {
			return fmt.Errorf("getting row: %w", err)
		}

		return item.Value(func(val []byte) error {
			var fields map[string]any
			if err := json.Unmarshal(val, &fields); err != nil {
				return fmt.Errorf("unmarshaling row: %w", err)
			}
			value = fields[column]
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// LookupIncident implements DataSource.
func (b *BadgerSource) LookupIncident(ctx context.Context, table, column string, value any) ([]RowID, error) {
	var ids []RowID
	err := b.scanRows(table, column, func(id RowID, cell any) {
		if valuesEqual(normalizeJSON(cell), normalizeJSON(value)) {
			ids = append(ids, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Execute implements DataSource. Badger has no statement language.
func (b *BadgerSource) Execute(ctx context.Context, statement string) (*ExecResult, error) {
	return nil, fmt.Errorf("badger source cannot execute statements: %w", ErrNotImplemented)
}

// Close implements DataSource.
func (b *BadgerSource) Close() error {
	return b.db.Close()
}

// scanRows walks one table's rows in id order, yielding the named column.
func (b *BadgerSource) scanRows(table, column string, yield func(RowID, any)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.db.View(func(txn *badger.Txn) error {
		schema, err := tableSchemaTxn(txn, table)
		if err != nil {
			return err
		}
		if !hasColumn(schema, column) {
			return fmt.Errorf("table %q has no column %q", table, column)
		}

		prefix := []byte(prefixRow + table + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			id := RowID(binary.BigEndian.Uint64(key[len(prefix):]))

			err := item.Value(func(val []byte) error {
				var fields map[string]any
				if err := json.Unmarshal(val, &fields); err != nil {
					return fmt.Errorf("unmarshaling row: %w", err)
				}
				yield(id, fields[column])
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// tableSchemaTxn loads one table's declared schema inside a transaction.
func tableSchemaTxn(txn *badger.Txn, table string) (TableSchema, error) {
	item, err := txn.Get([]byte(prefixTable + table))
	if err == badger.ErrKeyNotFound {
		return TableSchema{}, fmt.Errorf("no such table %q", table)
	}
	if err != nil {
		return TableSchema{}, fmt.Errorf("getting schema: %w", err)
	}

	var t TableSchema
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	})
	if err != nil {
		return TableSchema{}, fmt.Errorf("unmarshaling schema: %w", err)
	}
	return t, nil
}

// nextRowIDTxn advances and returns the table's row id counter.
func nextRowIDTxn(txn *badger.Txn, table string) (RowID, error) {
	key := []byte(prefixSeq + table)
	var next uint64 = 1

	item, err := txn.Get(key)
	if err == nil {
		err = item.Value(func(val []byte) error {
			next = binary.BigEndian.Uint64(val) + 1
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("reading row counter: %w", err)
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, fmt.Errorf("reading row counter: %w", err)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := txn.Set(key, buf); err != nil {
		return 0, fmt.Errorf("setting row counter: %w", err)
	}
	return RowID(next), nil
}

func rowKey(table string, id RowID) []byte {
	key := make([]byte, 0, len(prefixRow)+len(table)+9)
	key = append(key, prefixRow...)
	key = append(key, table...)
	key = append(key, ':')
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return append(key, buf...)
}

func hasColumn(t TableSchema, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// normalizeJSON maps JSON round-tripped numbers (float64) back onto int64
// when they are integral, so id comparisons survive the row encoding.
func normalizeJSON(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
