// Package graph provides the source graph for Weft.
//
// It is a slice-backed directed graph: vertices and edges are appended,
// never removed, and their ids are stable 1-based positions. Reflection
// depends on the resulting iteration order: all vertices are processed
// before any edge, each in ascending id order.
package graph

import (
	"fmt"
	"sync"

	"github.com/weftdata/weft/internal/source"
)

// SourceGraph is a directed, edge-labeled graph whose vertices hold data
// sources and whose edges hold declared cross-source join keys.
type SourceGraph struct {
	mu       sync.RWMutex
	vertices []Vertex
	edges    []Edge
}

// New creates an empty source graph.
func New() *SourceGraph {
	return &SourceGraph{}
}

// AddVertex appends a vertex holding src and its kind label, returning the
// new 1-based id.
func (g *SourceGraph) AddVertex(src source.DataSource) VertexID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := VertexID(len(g.vertices) + 1)
	g.vertices = append(g.vertices, Vertex{ID: id, Kind: src.Kind(), Value: src})
	return id
}

// AddEdge appends a directed edge between two existing vertices. The label
// is not validated here; whether its column references resolve is decided
// during reflection.
func (g *SourceGraph) AddEdge(src, tgt VertexID, label EdgeLabel) (EdgeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasVertex(src) {
		return 0, fmt.Errorf("edge source vertex %d: %w", src, source.ErrInvalidReference)
	}
	if !g.hasVertex(tgt) {
		return 0, fmt.Errorf("edge target vertex %d: %w", tgt, source.ErrInvalidReference)
	}

	id := EdgeID(len(g.edges) + 1)
	g.edges = append(g.edges, Edge{ID: id, Source: src, Target: tgt, Label: label})
	return id, nil
}

// VertexValue returns the data source held at a vertex.
func (g *SourceGraph) VertexValue(id VertexID) (source.DataSource, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasVertex(id) {
		return nil, fmt.Errorf("vertex %d: %w", id, source.ErrInvalidReference)
	}
	return g.vertices[id-1].Value, nil
}

// SetVertexValue replaces the data source held at a vertex without
// changing graph topology. Used to hot-swap a refreshed source.
func (g *SourceGraph) SetVertexValue(id VertexID, src source.DataSource) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasVertex(id) {
		return fmt.Errorf("vertex %d: %w", id, source.ErrInvalidReference)
	}
	g.vertices[id-1].Value = src
	g.vertices[id-1].Kind = src.Kind()
	return nil
}

// VertexKind returns the kind label recorded at a vertex.
func (g *SourceGraph) VertexKind(id VertexID) (source.Kind, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasVertex(id) {
		return "", fmt.Errorf("vertex %d: %w", id, source.ErrInvalidReference)
	}
	return g.vertices[id-1].Kind, nil
}

// Edge returns the edge with the given id.
func (g *SourceGraph) Edge(id EdgeID) (Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if id < 1 || int(id) > len(g.edges) {
		return Edge{}, fmt.Errorf("edge %d: %w", id, source.ErrInvalidReference)
	}
	return g.edges[id-1], nil
}

// VertexIDs returns a fresh slice of all vertex ids in ascending order.
func (g *SourceGraph) VertexIDs() []VertexID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]VertexID, len(g.vertices))
	for i := range g.vertices {
		ids[i] = g.vertices[i].ID
	}
	return ids
}

// EdgeIDs returns a fresh slice of all edge ids in ascending order.
func (g *SourceGraph) EdgeIDs() []EdgeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]EdgeID, len(g.edges))
	for i := range g.edges {
		ids[i] = g.edges[i].ID
	}
	return ids
}

// VertexCount returns the number of vertices.
func (g *SourceGraph) VertexCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices)
}

// EdgeCount returns the number of edges.
func (g *SourceGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// hasVertex reports whether id is in range. Must be called with a lock held.
func (g *SourceGraph) hasVertex(id VertexID) bool {
	return id >= 1 && int(id) <= len(g.vertices)
}
