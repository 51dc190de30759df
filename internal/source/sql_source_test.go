package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newClassSource opens a fresh on-disk SQLite source with a Class table.
func newClassSource(t *testing.T) *SQLSource {
	t.Helper()

	s, err := NewSQLSource(filepath.Join(t.TempDir(), "classes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Execute(context.Background(),
		"CREATE TABLE Class (id INTEGER PRIMARY KEY, subject TEXT)")
	require.NoError(t, err)
	_, err = s.Recatalog(context.Background())
	require.NoError(t, err)
	return s
}

func TestSQLSource_Schema(t *testing.T) {
	t.Parallel()

	s := newClassSource(t)

	desc, err := s.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, desc.Tables, 1)
	assert.Equal(t, "Class", desc.Tables[0].Name)
	assert.Equal(t, []ColumnSchema{
		{Name: "id", Type: "INTEGER"},
		{Name: "subject", Type: "TEXT"},
	}, desc.Tables[0].Columns)
	assert.Equal(t, KindSQL, s.Kind())
}

func TestSQLSource_SchemaIsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newClassSource(t)

	_, err := s.Execute(ctx, "CREATE TABLE Extra (x TEXT)")
	require.NoError(t, err)

	// Execute never refreshes the snapshot.
	desc, err := s.Schema(ctx)
	require.NoError(t, err)
	assert.Len(t, desc.Tables, 1)

	// Recatalog does.
	_, err = s.Recatalog(ctx)
	require.NoError(t, err)
	desc, err = s.Schema(ctx)
	require.NoError(t, err)
	assert.Len(t, desc.Tables, 2)
}

func TestSQLSource_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newClassSource(t)

	subjects := []string{"Math", "Philosophy", "Music"}
	for _, subject := range subjects {
		_, err := s.AddRow(ctx, "Class", map[string]any{"subject": subject})
		require.NoError(t, err)
	}

	values, err := s.LookupColumn(ctx, "Class", "subject")
	require.NoError(t, err)
	assert.Equal(t, []any{"Math", "Philosophy", "Music"}, values)

	ids, err := s.LookupIncident(ctx, "Class", "subject", "Philosophy")
	require.NoError(t, err)
	assert.Equal(t, []RowID{2}, ids)

	v, err := s.LookupCell(ctx, "Class", 3, "subject")
	require.NoError(t, err)
	assert.Equal(t, "Music", v)

	_, err = s.LookupCell(ctx, "Class", 99, "subject")
	assert.Error(t, err)
}

func TestSQLSource_Execute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newClassSource(t)

	res, err := s.Execute(ctx, "INSERT INTO Class (subject) VALUES ('Gym')")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	res, err = s.Execute(ctx, "SELECT id, subject FROM Class ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "subject"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Gym", res.Rows[0][1])

	_, err = s.Execute(ctx, "SELEC nonsense")
	assert.Error(t, err)
}

func TestNewSQLSourceFrom(t *testing.T) {
	t.Parallel()

	t.Run("MaterializesMemorySource", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		m := NewMemorySource()
		require.NoError(t, m.DefineTable("Student", []ColumnSchema{
			{Name: "name", Type: "TEXT"},
		}))
		for _, name := range []string{"Fiona", "Gregorio"} {
			_, err := m.AddRow(ctx, "Student", map[string]any{"name": name})
			require.NoError(t, err)
		}

		s, err := NewSQLSourceFrom(ctx, m)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		values, err := s.LookupColumn(ctx, "Student", "name")
		require.NoError(t, err)
		assert.Equal(t, []any{"Fiona", "Gregorio"}, values)
	})

	t.Run("RefusesSQLSource", func(t *testing.T) {
		t.Parallel()
		s := newClassSource(t)

		_, err := NewSQLSourceFrom(context.Background(), s)
		assert.ErrorIs(t, err, ErrNotImplemented)
	})
}

func TestStatementRendering(t *testing.T) {
	t.Parallel()

	t.Run("QuoteIdent", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, `"Class"`, quoteIdent("Class"))
		assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
	})

	t.Run("InsertRowDeterministic", func(t *testing.T) {
		t.Parallel()
		stmt, args := insertRow("t", map[string]any{"b": 2, "a": 1})
		assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES (?, ?)`, stmt)
		assert.Equal(t, []any{1, 2}, args)
	})

	t.Run("IsQuery", func(t *testing.T) {
		t.Parallel()
		assert.True(t, isQuery("  select 1"))
		assert.True(t, isQuery("WITH x AS (SELECT 1) SELECT * FROM x"))
		assert.True(t, isQuery("PRAGMA table_info(t)"))
		assert.False(t, isQuery("INSERT INTO t VALUES (1)"))
		assert.False(t, isQuery("CREATE TABLE t (x)"))
	})
}
