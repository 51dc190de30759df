// Package mcp provides the MCP (Model Context Protocol) server for Weft.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weftdata/weft/internal/catalog"
	"github.com/weftdata/weft/internal/fabric"
	"github.com/weftdata/weft/internal/graph"
)

// Server represents the MCP server.
type Server struct {
	fabric *fabric.Fabric
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over an already-reflected fabric.
func NewServer(f *fabric.Fabric) *Server {
	s := &Server{
		fabric: f,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "weft",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "weft_catalog",
			Description: "List the unified catalog: every table, its columns, its owning source, and the advisory foreign keys.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "weft_lookup_column",
			Description: "Read every value of a logical column, wherever its table physically lives. The column name must be unique across the catalog.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"column": {Type: "string", Description: "Logical column name"},
				},
				Required: []string{"column"},
			},
		},
		{
			Name:        "weft_lookup_rows",
			Description: "Reverse lookup: ids of rows whose column equals a value.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"column": {Type: "string", Description: "Logical column name"},
					"value":  {Type: "string", Description: "Value to match"},
				},
				Required: []string{"column", "value"},
			},
		},
		{
			Name:        "weft_insert_row",
			Description: "Insert one row into a catalog table by table id, dispatching to whichever source owns it.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"table": {Type: "integer", Description: "Catalog table id"},
					"fields": {
						Type:        "object",
						Description: "Column name to value mapping",
					},
				},
				Required: []string{"table", "fields"},
			},
		},
		{
			Name:        "weft_execute",
			Description: "Forward a native statement verbatim to one source (e.g. raw SQL for a SQL-backed source). The catalog is not refreshed afterward.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"source":    {Type: "integer", Description: "Source id"},
					"statement": {Type: "string", Description: "Native statement text"},
				},
				Required: []string{"source", "statement"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "weft://catalog",
			Name:        "Unified Catalog",
			Description: "Tables, columns, and advisory foreign keys across all sources",
			MimeType:    "text/plain",
		},
		{
			URI:         "weft://overview",
			Name:        "Fabric Overview",
			Description: "High-level statistics about the fabric's sources and catalog",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "weft_catalog":
		return formatCatalog(s.fabric), nil
	case "weft_lookup_column":
		column, _ := args["column"].(string)
		return handleLookupColumn(ctx, s.fabric, column)
	case "weft_lookup_rows":
		column, _ := args["column"].(string)
		value := args["value"]
		return handleLookupRows(ctx, s.fabric, column, value)
	case "weft_insert_row":
		table, _ := args["table"].(float64)
		fields, _ := args["fields"].(map[string]any)
		return handleInsertRow(ctx, s.fabric, int(table), fields)
	case "weft_execute":
		sourceID, _ := args["source"].(float64)
		statement, _ := args["statement"].(string)
		return handleExecute(ctx, s.fabric, int(sourceID), statement)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "weft://catalog":
		return formatCatalog(s.fabric), nil
	case "weft://overview":
		return getOverview(s.fabric), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "weft",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleLookupColumn(ctx context.Context, f *fabric.Fabric, column string) (string, error) {
	if column == "" {
		return "No column provided", nil
	}

	values, err := f.LookupColumn(ctx, column)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return fmt.Sprintf("Column '%s' is empty", column), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d values in '%s':\n\n", len(values), column))
	for i, v := range values {
		sb.WriteString(fmt.Sprintf("%d. %v\n", i+1, v))
	}
	return sb.String(), nil
}

func handleLookupRows(ctx context.Context, f *fabric.Fabric, column string, value any) (string, error) {
	if column == "" {
		return "No column provided", nil
	}

	ids, err := f.LookupRowsByValue(ctx, column, value)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return fmt.Sprintf("No rows where %s = %v", column, value), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d rows where %s = %v:\n", len(ids), column, value))
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("  row %d\n", id))
	}
	return sb.String(), nil
}

func handleInsertRow(ctx context.Context, f *fabric.Fabric, table int, fields map[string]any) (string, error) {
	if fields == nil {
		return "No fields provided", nil
	}

	// JSON numbers arrive as float64; integral values are narrowed so
	// integer columns match on later lookups.
	narrowed := make(map[string]any, len(fields))
	for k, v := range fields {
		if n, ok := v.(float64); ok && n == float64(int64(n)) {
			narrowed[k] = int64(n)
			continue
		}
		narrowed[k] = v
	}

	id, err := f.InsertRow(ctx, catalog.TableID(table), narrowed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Inserted row %d into table %d", id, table), nil
}

func handleExecute(ctx context.Context, f *fabric.Fabric, sourceID int, statement string) (string, error) {
	if statement == "" {
		return "No statement provided", nil
	}

	res, err := f.Execute(ctx, graph.VertexID(sourceID), statement)
	if err != nil {
		return "", err
	}

	if len(res.Columns) == 0 {
		return fmt.Sprintf("OK: %d rows affected, last insert id %d", res.RowsAffected, res.LastInsertID), nil
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(res.Columns, " | "))
	sb.WriteString("\n")
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n%d rows", len(res.Rows)))
	return sb.String(), nil
}

// formatCatalog renders the unified catalog as indented text.
func formatCatalog(f *fabric.Fabric) string {
	cat := f.Catalog()
	tables := cat.Tables()
	columns := cat.Columns()
	fks := cat.ForeignKeys()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Catalog: %d tables, %d columns, %d foreign keys\n",
		len(tables), len(columns), len(fks)))

	for _, t := range tables {
		sb.WriteString(fmt.Sprintf("\n%s (table %d, source %d)\n", t.Name, t.ID, t.SourceID))
		for _, c := range columns {
			if c.TableID == t.ID {
				sb.WriteString(fmt.Sprintf("  %s %s (column %d)\n", c.Name, c.Type, c.ID))
			}
		}
	}

	if len(fks) > 0 {
		sb.WriteString("\nForeign keys:\n")
		for _, fk := range fks {
			sb.WriteString(fmt.Sprintf("  column %d -> column %d\n", fk.From, fk.To))
		}
	}
	return sb.String()
}

// getOverview returns high-level fabric statistics.
func getOverview(f *fabric.Fabric) string {
	g := f.Graph()
	cat := f.Catalog()

	var sb strings.Builder
	sb.WriteString("Weft Fabric Overview\n\n")
	sb.WriteString(fmt.Sprintf("Sources:       %d\n", g.VertexCount()))
	sb.WriteString(fmt.Sprintf("Relationships: %d\n", g.EdgeCount()))
	sb.WriteString(fmt.Sprintf("Tables:        %d\n", len(cat.Tables())))
	sb.WriteString(fmt.Sprintf("Columns:       %d\n", len(cat.Columns())))
	sb.WriteString(fmt.Sprintf("Foreign keys:  %d\n", len(cat.ForeignKeys())))
	sb.WriteString(fmt.Sprintf("Events logged: %d\n", len(f.Events())))

	for _, vid := range g.VertexIDs() {
		kind, err := g.VertexKind(vid)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("\nSource %d: %s", vid, kind))
	}
	return sb.String()
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
