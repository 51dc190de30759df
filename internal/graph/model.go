package graph

import (
	"github.com/weftdata/weft/internal/source"
)

// VertexID is a 1-based, monotonically increasing vertex identifier.
// Ids are assigned in append order and never reused.
type VertexID int

// EdgeID is a 1-based, monotonically increasing edge identifier.
type EdgeID int

// EdgeLabel is an ordered pair of fully-qualified column references of the
// form "table!column". It records declared, unvalidated foreign-key intent
// from the From column to the To column; validation happens during
// reflection, not here.
type EdgeLabel struct {
	From string
	To   string
}

// Vertex holds one data source and its adapter kind as a label.
type Vertex struct {
	ID    VertexID
	Kind  source.Kind
	Value source.DataSource
}

// Edge is a directed, labeled edge between two vertices.
type Edge struct {
	ID     EdgeID
	Source VertexID
	Target VertexID
	Label  EdgeLabel
}
