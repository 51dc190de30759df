// Package cmd provides CLI command implementations for Weft.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/weftdata/weft/internal/catalog"
	"github.com/weftdata/weft/internal/fabric"
	"github.com/weftdata/weft/internal/source"
	"github.com/weftdata/weft/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// openFabric builds a fabric over the given SQLite files, one source per
// file, and reflects it. The returned closer shuts down every source.
func openFabric(ctx context.Context, paths []string) (*fabric.Fabric, func(), error) {
	f := fabric.New()
	var sources []*source.SQLSource

	closeAll := func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("accessing %s: %w", path, err)
		}
		s, err := source.NewSQLSource(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening %s: %w", path, err)
		}
		sources = append(sources, s)
		f.AddSource(s)
	}

	if _, err := f.Reflect(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("reflecting sources: %w", err)
	}
	return f, closeAll, nil
}

// printCatalog renders the fabric's catalog to stdout.
func printCatalog(f *fabric.Fabric) {
	cat := f.Catalog()
	tables := cat.Tables()
	columns := cat.Columns()

	for _, t := range tables {
		color.Cyan("%s (table %d, source %d)", t.Name, t.ID, t.SourceID)
		for _, c := range columns {
			if c.TableID == t.ID {
				fmt.Printf("  %-20s %s\n", c.Name, c.Type)
			}
		}
	}

	fks := cat.ForeignKeys()
	if len(fks) > 0 {
		color.Cyan("foreign keys")
		for _, fk := range fks {
			from, _ := cat.ColumnByID(fk.From)
			to, _ := cat.ColumnByID(fk.To)
			fmt.Printf("  %s -> %s\n", from.Name, to.Name)
		}
	}
}

// CatalogCmd reflects one or more SQLite files and prints the unified catalog.
type CatalogCmd struct {
	Paths []string `arg:"" help:"SQLite database files to catalog"`
}

// Run executes the catalog command.
func (c *CatalogCmd) Run() error {
	ctx := context.Background()
	f, closeAll, err := openFabric(ctx, c.Paths)
	if err != nil {
		return err
	}
	defer closeAll()

	printCatalog(f)
	return nil
}

// LookupCmd reads every value of a logical column across all sources.
type LookupCmd struct {
	Column string   `arg:"" help:"Logical column name (must be unique across the catalog)"`
	Paths  []string `arg:"" help:"SQLite database files"`
}

// Run executes the lookup command.
func (c *LookupCmd) Run() error {
	ctx := context.Background()
	f, closeAll, err := openFabric(ctx, c.Paths)
	if err != nil {
		return err
	}
	defer closeAll()

	values, err := f.LookupColumn(ctx, c.Column)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", c.Column, err)
	}

	for _, v := range values {
		fmt.Printf("%v\n", v)
	}
	color.Green("\n%d values", len(values))
	return nil
}

// FindCmd lists the row ids whose column equals a value.
type FindCmd struct {
	Column string   `arg:"" help:"Logical column name"`
	Value  string   `arg:"" help:"Value to match"`
	Paths  []string `arg:"" help:"SQLite database files"`
}

// Run executes the find command.
func (c *FindCmd) Run() error {
	ctx := context.Background()
	f, closeAll, err := openFabric(ctx, c.Paths)
	if err != nil {
		return err
	}
	defer closeAll()

	ids, err := f.LookupRowsByValue(ctx, c.Column, c.Value)
	if err != nil {
		return fmt.Errorf("matching %s: %w", c.Column, err)
	}

	if len(ids) == 0 {
		fmt.Println("No matching rows")
		return nil
	}
	for _, id := range ids {
		fmt.Printf("row %d\n", id)
	}
	return nil
}

// ExecCmd forwards a raw SQL statement to one source.
type ExecCmd struct {
	Path      string `arg:"" help:"SQLite database file"`
	Statement string `arg:"" help:"SQL statement to execute verbatim"`
}

// Run executes the exec command.
func (c *ExecCmd) Run() error {
	ctx := context.Background()
	f, closeAll, err := openFabric(ctx, []string{c.Path})
	if err != nil {
		return err
	}
	defer closeAll()

	res, err := f.Execute(ctx, 1, c.Statement)
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	if len(res.Columns) == 0 {
		color.Green("OK: %d rows affected", res.RowsAffected)
		return nil
	}

	fmt.Println(strings.Join(res.Columns, " | "))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	color.Green("\n%d rows", len(res.Rows))
	return nil
}

// WatchCmd recatalogs the fabric whenever a backing file changes.
type WatchCmd struct {
	Paths []string `arg:"" help:"SQLite database files to watch"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, closeAll, err := openFabric(ctx, c.Paths)
	if err != nil {
		return err
	}
	defer closeAll()

	fmt.Printf("Watching %d sources for changes (Ctrl+C to stop)\n", len(c.Paths))

	err = fabric.Watch(ctx, f, c.Paths, func() {
		color.Green("sources refreshed")
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

// MCPCmd starts the MCP server over the given sources (stdio transport).
type MCPCmd struct {
	Paths []string `arg:"" optional:"" help:"SQLite database files to serve"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, closeAll, err := openFabric(ctx, c.Paths)
	if err != nil {
		return err
	}
	defer closeAll()

	server := mcp.NewServer(f)
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		return fmt.Errorf("running MCP server: %w", err)
	}
	return nil
}

// DemoCmd runs the built-in membership example across three sources.
type DemoCmd struct{}

// Run executes the demo command.
func (c *DemoCmd) Run() error {
	ctx := context.Background()

	students := []string{"Fiona", "Gregorio", "Heather"}
	subjects := []string{"Math", "Philosophy", "Music", "Cooking", "CompSci", "Gym", "Art"}
	memberships := map[string][]string{
		"Fiona":    {"Math", "Philosophy", "Music"},
		"Gregorio": {"Cooking", "CompSci"},
		"Heather":  {"Gym", "Art"},
	}

	studentSrc := source.NewMemorySource()
	if err := studentSrc.DefineTable("Student", []source.ColumnSchema{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
	}); err != nil {
		return err
	}
	for _, name := range students {
		if _, err := studentSrc.AddRow(ctx, "Student", map[string]any{"name": name}); err != nil {
			return err
		}
	}

	classSrc, err := source.NewSQLSource(":memory:")
	if err != nil {
		return err
	}
	defer func() { _ = classSrc.Close() }()
	if _, err := classSrc.Execute(ctx, "CREATE TABLE Class (id INTEGER PRIMARY KEY, subject TEXT)"); err != nil {
		return err
	}
	for _, subject := range subjects {
		if _, err := classSrc.AddRow(ctx, "Class", map[string]any{"subject": subject}); err != nil {
			return err
		}
	}
	if _, err := classSrc.Recatalog(ctx); err != nil {
		return err
	}

	junctionSrc := source.NewMemorySource()
	if err := junctionSrc.DefineTable("Junction", []source.ColumnSchema{
		{Name: "student", Type: "INTEGER"},
		{Name: "class", Type: "INTEGER"},
	}); err != nil {
		return err
	}

	f := fabric.New()
	sid := f.AddSource(studentSrc)
	cid := f.AddSource(classSrc)
	jid := f.AddSource(junctionSrc)

	if _, err := f.AddRelationship(jid, sid, "Junction!student", "Student!id"); err != nil {
		return err
	}
	if _, err := f.AddRelationship(jid, cid, "Junction!class", "Class!id"); err != nil {
		return err
	}

	if _, err := f.Reflect(ctx); err != nil {
		return fmt.Errorf("reflecting sources: %w", err)
	}

	color.Green("Reflected %d sources", f.Graph().VertexCount())
	printCatalog(f)

	var junction catalog.TableID
	for _, t := range f.Catalog().Tables() {
		if t.Name == "Junction" {
			junction = t.ID
		}
	}

	inserted := 0
	for student, classes := range memberships {
		studentIDs, err := f.LookupRowsByValue(ctx, "name", student)
		if err != nil {
			return err
		}
		for _, class := range classes {
			classIDs, err := f.LookupRowsByValue(ctx, "subject", class)
			if err != nil {
				return err
			}
			if _, err := f.InsertRow(ctx, junction, map[string]any{
				"student": int64(studentIDs[0]),
				"class":   int64(classIDs[0]),
			}); err != nil {
				return err
			}
			inserted++
		}
	}

	enrolled, err := f.LookupColumn(ctx, "student")
	if err != nil {
		return err
	}

	color.Green("\n✓ Demo complete")
	fmt.Printf("  Students:        %d\n", len(students))
	fmt.Printf("  Classes:         %d\n", len(subjects))
	fmt.Printf("  Enrollments:     %d\n", inserted)
	fmt.Printf("  Junction rows:   %d\n", len(enrolled))
	fmt.Printf("  Events logged:   %d\n", len(f.Events()))
	return nil
}

// CLI is the top-level command structure for Weft.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Demo    DemoCmd    `cmd:"" help:"Run the built-in membership example"`
	Catalog CatalogCmd `cmd:"" help:"Reflect SQLite files and print the unified catalog"`
	Lookup  LookupCmd  `cmd:"" help:"Read every value of a logical column"`
	Find    FindCmd    `cmd:"" help:"List row ids whose column equals a value"`
	Exec    ExecCmd    `cmd:"" help:"Execute a raw SQL statement against one source"`
	Watch   WatchCmd   `cmd:"" help:"Recatalog sources when their files change"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses the arguments and runs the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("weft"),
		kong.Description("Data fabric: unified catalog and dispatch over heterogeneous data sources"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
