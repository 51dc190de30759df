package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftdata/weft/internal/source"
)

// newFixtureDB creates an on-disk SQLite database with a populated table.
func newFixtureDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	s, err := source.NewSQLSource(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Execute(ctx, "CREATE TABLE City (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = s.Execute(ctx, "INSERT INTO City (name) VALUES ('Lisbon'), ('Osaka')")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return path
}

func TestCLI_Parse(t *testing.T) {
	t.Parallel()

	cli := NewCLI()
	assert.NotNil(t, cli)

	// Unknown commands are rejected at parse time.
	err := cli.Execute([]string{"teleport"})
	assert.Error(t, err)
}

func TestCatalogCmd(t *testing.T) {
	t.Parallel()

	cmd := &CatalogCmd{Paths: []string{newFixtureDB(t)}}
	assert.NoError(t, cmd.Run())

	missing := &CatalogCmd{Paths: []string{filepath.Join(t.TempDir(), "absent.db")}}
	assert.Error(t, missing.Run())
}

func TestLookupCmd(t *testing.T) {
	t.Parallel()

	path := newFixtureDB(t)

	assert.NoError(t, (&LookupCmd{Column: "name", Paths: []string{path}}).Run())
	assert.Error(t, (&LookupCmd{Column: "ghost", Paths: []string{path}}).Run())
}

func TestFindCmd(t *testing.T) {
	t.Parallel()

	path := newFixtureDB(t)
	assert.NoError(t, (&FindCmd{Column: "name", Value: "Lisbon", Paths: []string{path}}).Run())
}

func TestExecCmd(t *testing.T) {
	t.Parallel()

	path := newFixtureDB(t)

	assert.NoError(t, (&ExecCmd{Path: path, Statement: "SELECT name FROM City"}).Run())
	assert.NoError(t, (&ExecCmd{Path: path, Statement: "DELETE FROM City"}).Run())
	assert.Error(t, (&ExecCmd{Path: path, Statement: "SELEC nonsense"}).Run())
}

func TestDemoCmd(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&DemoCmd{}).Run())
}
