package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftdata/weft/internal/source"
)

func TestNew(t *testing.T) {
	t.Parallel()

	g := New()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.VertexCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestSourceGraph_AddVertex(t *testing.T) {
	t.Parallel()

	t.Run("MonotonicIDs", func(t *testing.T) {
		t.Parallel()
		g := New()

		for i := 1; i <= 5; i++ {
			id := g.AddVertex(source.NewMemorySource())
			assert.Equal(t, VertexID(i), id)
		}
		assert.Equal(t, 5, g.VertexCount())
	})

	t.Run("RecordsKindLabel", func(t *testing.T) {
		t.Parallel()
		g := New()
		id := g.AddVertex(source.NewMemorySource())

		kind, err := g.VertexKind(id)
		require.NoError(t, err)
		assert.Equal(t, source.KindMemory, kind)
	})
}

func TestSourceGraph_AddEdge(t *testing.T) {
	t.Parallel()

	t.Run("ValidEndpoints", func(t *testing.T) {
		t.Parallel()
		g := New()
		a := g.AddVertex(source.NewMemorySource())
		b := g.AddVertex(source.NewMemorySource())

		id, err := g.AddEdge(a, b, EdgeLabel{From: "Junction!student", To: "Student!id"})
		require.NoError(t, err)
		assert.Equal(t, EdgeID(1), id)

		edge, err := g.Edge(id)
		require.NoError(t, err)
		assert.Equal(t, a, edge.Source)
		assert.Equal(t, b, edge.Target)
		assert.Equal(t, "Junction!student", edge.Label.From)
	})

	t.Run("SourceOutOfRange", func(t *testing.T) {
		t.Parallel()
		g := New()
		b := g.AddVertex(source.NewMemorySource())

		_, err := g.AddEdge(99, b, EdgeLabel{})
		assert.ErrorIs(t, err, source.ErrInvalidReference)
		assert.Equal(t, 0, g.EdgeCount())
	})

	t.Run("TargetOutOfRange", func(t *testing.T) {
		t.Parallel()
		g := New()
		a := g.AddVertex(source.NewMemorySource())

		_, err := g.AddEdge(a, 0, EdgeLabel{})
		assert.ErrorIs(t, err, source.ErrInvalidReference)
	})

	t.Run("LabelNotValidated", func(t *testing.T) {
		t.Parallel()
		g := New()
		a := g.AddVertex(source.NewMemorySource())

		// A nonsense label is accepted here; only reflection rejects it.
		_, err := g.AddEdge(a, a, EdgeLabel{From: "no-separator", To: "also bad"})
		assert.NoError(t, err)
	})
}

func TestSourceGraph_VertexValue(t *testing.T) {
	t.Parallel()

	t.Run("ReadBack", func(t *testing.T) {
		t.Parallel()
		g := New()
		src := source.NewMemorySource()
		id := g.AddVertex(src)

		got, err := g.VertexValue(id)
		require.NoError(t, err)
		assert.Same(t, src, got)
	})

	t.Run("HotSwap", func(t *testing.T) {
		t.Parallel()
		g := New()
		id := g.AddVertex(source.NewMemorySource())
		replacement := source.NewMemorySource()

		require.NoError(t, g.SetVertexValue(id, replacement))

		got, err := g.VertexValue(id)
		require.NoError(t, err)
		assert.Same(t, replacement, got)
		assert.Equal(t, 1, g.VertexCount())
	})

	t.Run("InvalidID", func(t *testing.T) {
		t.Parallel()
		g := New()

		_, err := g.VertexValue(1)
		assert.ErrorIs(t, err, source.ErrInvalidReference)

		err = g.SetVertexValue(1, source.NewMemorySource())
		assert.ErrorIs(t, err, source.ErrInvalidReference)
	})
}

func TestSourceGraph_Iteration(t *testing.T) {
	t.Parallel()

	g := New()
	a := g.AddVertex(source.NewMemorySource())
	b := g.AddVertex(source.NewMemorySource())
	c := g.AddVertex(source.NewMemorySource())
	_, err := g.AddEdge(c, a, EdgeLabel{From: "x!y", To: "p!q"})
	require.NoError(t, err)
	_, err = g.AddEdge(b, c, EdgeLabel{From: "m!n", To: "r!s"})
	require.NoError(t, err)

	// Ascending id order, and a fresh slice on every call.
	assert.Equal(t, []VertexID{1, 2, 3}, g.VertexIDs())
	assert.Equal(t, []VertexID{1, 2, 3}, g.VertexIDs())
	assert.Equal(t, []EdgeID{1, 2}, g.EdgeIDs())

	ids := g.VertexIDs()
	ids[0] = 99
	assert.Equal(t, []VertexID{1, 2, 3}, g.VertexIDs())
}
