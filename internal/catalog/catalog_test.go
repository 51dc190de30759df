package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftdata/weft/internal/source"
)

func studentSchema() source.SchemaDescription {
	return source.SchemaDescription{
		Tables: []source.TableSchema{
			{
				Name: "Student",
				Columns: []source.ColumnSchema{
					{Name: "id", Type: "INTEGER"},
					{Name: "name", Type: "TEXT"},
				},
			},
		},
	}
}

func classSchema() source.SchemaDescription {
	return source.SchemaDescription{
		Tables: []source.TableSchema{
			{
				Name: "Class",
				Columns: []source.ColumnSchema{
					{Name: "id", Type: "INTEGER"},
					{Name: "subject", Type: "TEXT"},
				},
			},
		},
	}
}

func TestCatalog_AddSchema(t *testing.T) {
	t.Parallel()

	t.Run("TablesAndColumns", func(t *testing.T) {
		t.Parallel()
		c := New()

		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		tables := c.Tables()
		require.Len(t, tables, 2)
		assert.Equal(t, "Student", tables[0].Name)
		assert.Equal(t, 1, tables[0].SourceID)
		assert.Equal(t, "Class", tables[1].Name)
		assert.Equal(t, 2, tables[1].SourceID)

		columns := c.Columns()
		require.Len(t, columns, 4)
		assert.Equal(t, "name", columns[1].Name)
		assert.Equal(t, tables[0].ID, columns[1].TableID)
		assert.Equal(t, "TEXT", columns[1].Type)
	})

	t.Run("SecondCallAppendsDuplicates", func(t *testing.T) {
		t.Parallel()
		c := New()

		c.AddSchema(studentSchema(), 1)
		c.AddSchema(studentSchema(), 1)

		// Append-only: nothing checks for prior reflection.
		assert.Len(t, c.Tables(), 2)
		assert.Len(t, c.Columns(), 4)
	})
}

func TestCatalog_AddTable(t *testing.T) {
	t.Parallel()

	c := New()
	a := c.AddTable("orders", 1)
	b := c.AddTable("orders", 1)

	ta, err := c.TableByID(a)
	require.NoError(t, err)
	tb, err := c.TableByID(b)
	require.NoError(t, err)

	// Names are always generated fresh; the hint is ignored, so two adds
	// with the same hint never collide.
	assert.NotEqual(t, ta.Name, tb.Name)
	assert.NotEqual(t, "orders", ta.Name)
	assert.Equal(t, 1, ta.SourceID)
}

func TestCatalog_FindColumn(t *testing.T) {
	t.Parallel()

	t.Run("Unique", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)

		id, err := c.FindColumn("name")
		require.NoError(t, err)

		col, err := c.ColumnByID(id)
		require.NoError(t, err)
		assert.Equal(t, "name", col.Name)
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)

		_, err := c.FindColumn("salary")
		assert.ErrorIs(t, err, source.ErrUnresolvedReference)
	})

	t.Run("Ambiguous", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		// "id" lives in both tables.
		_, err := c.FindColumn("id")
		assert.ErrorIs(t, err, source.ErrAmbiguousLookup)

		assert.Len(t, c.FindColumns("id"), 2)
		assert.Empty(t, c.FindColumns("salary"))
	})
}

func TestCatalog_ResolveColumn(t *testing.T) {
	t.Parallel()

	c := New()
	c.AddSchema(studentSchema(), 1)
	c.AddSchema(classSchema(), 2)

	id, err := c.ResolveColumn("Class", "id")
	require.NoError(t, err)
	src, err := c.ColumnSource(id)
	require.NoError(t, err)
	assert.Equal(t, 2, src)

	_, err = c.ResolveColumn("Class", "name")
	assert.ErrorIs(t, err, source.ErrUnresolvedReference)
}

func TestCatalog_AddForeignKey(t *testing.T) {
	t.Parallel()

	t.Run("Materialized", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		from, err := c.ResolveColumn("Student", "name")
		require.NoError(t, err)
		to, err := c.ResolveColumn("Class", "subject")
		require.NoError(t, err)

		added, err := c.AddForeignKey(from, to)
		require.NoError(t, err)
		assert.True(t, added)
		assert.Len(t, c.ForeignKeys(), 1)
	})

	t.Run("CoarseDedupSuppressesSharedTarget", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		to, err := c.ResolveColumn("Student", "id")
		require.NoError(t, err)
		fromA, err := c.ResolveColumn("Class", "id")
		require.NoError(t, err)
		fromB, err := c.ResolveColumn("Class", "subject")
		require.NoError(t, err)

		added, err := c.AddForeignKey(fromA, to)
		require.NoError(t, err)
		assert.True(t, added)

		// Different from, same to: the coarse policy drops it.
		added, err = c.AddForeignKey(fromB, to)
		require.NoError(t, err)
		assert.False(t, added)
		assert.Len(t, c.ForeignKeys(), 1)
	})

	t.Run("CoarseDedupSuppressesSharedSource", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		from, err := c.ResolveColumn("Class", "id")
		require.NoError(t, err)
		toA, err := c.ResolveColumn("Student", "id")
		require.NoError(t, err)
		toB, err := c.ResolveColumn("Student", "name")
		require.NoError(t, err)

		_, err = c.AddForeignKey(from, toA)
		require.NoError(t, err)

		added, err := c.AddForeignKey(from, toB)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("ExactPairPolicy", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.SetDedupPolicy(ExactPairDedup)
		c.AddSchema(studentSchema(), 1)
		c.AddSchema(classSchema(), 2)

		to, err := c.ResolveColumn("Student", "id")
		require.NoError(t, err)
		fromA, err := c.ResolveColumn("Class", "id")
		require.NoError(t, err)
		fromB, err := c.ResolveColumn("Class", "subject")
		require.NoError(t, err)

		added, err := c.AddForeignKey(fromA, to)
		require.NoError(t, err)
		assert.True(t, added)

		// Shared target is fine under the strict policy.
		added, err = c.AddForeignKey(fromB, to)
		require.NoError(t, err)
		assert.True(t, added)

		// The exact pair is not.
		added, err = c.AddForeignKey(fromA, to)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("InvalidEndpoint", func(t *testing.T) {
		t.Parallel()
		c := New()
		c.AddSchema(studentSchema(), 1)

		_, err := c.AddForeignKey(1, 99)
		assert.ErrorIs(t, err, source.ErrInvalidReference)
	})
}

func TestCatalog_OwningSource(t *testing.T) {
	t.Parallel()

	c := New()
	c.AddSchema(studentSchema(), 7)

	tables := c.Tables()
	require.Len(t, tables, 1)

	src, err := c.TableSource(tables[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 7, src)

	_, err = c.TableSource(42)
	assert.ErrorIs(t, err, source.ErrInvalidReference)

	_, err = c.ColumnSource(42)
	assert.ErrorIs(t, err, source.ErrInvalidReference)
}

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     string
		table   string
		column  string
		wantErr bool
	}{
		{name: "WellFormed", ref: "Student!id", table: "Student", column: "id"},
		{name: "MissingSeparator", ref: "Studentid", wantErr: true},
		{name: "EmptyTable", ref: "!id", wantErr: true},
		{name: "EmptyColumn", ref: "Student!", wantErr: true},
		{name: "Empty", ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table, column, err := ParseRef(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, source.ErrUnresolvedReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.table, table)
			assert.Equal(t, tt.column, column)
		})
	}
}
