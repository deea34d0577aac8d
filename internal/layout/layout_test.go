package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	require.Len(t, c.Layouts, 2)
	assert.Equal(t, []string{"owner", "deposit_count", "balance", "init_generation"}, c.Layouts[0].Names())
	assert.Equal(t, []string{"owner", "deposit_count", "balance", "init_generation", "total_donated", "paused"}, c.Latest().Names())
	assert.True(t, c.Latest().Has("paused"))
	assert.False(t, c.Layouts[0].Has("paused"))
}

func TestAt(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	l, ok := c.At(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), l.Generation)

	_, ok = c.At(0)
	assert.False(t, ok)
	_, ok = c.At(3)
	assert.False(t, ok)
}

func TestMigration(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	stmts, err := c.Migration(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE ledger_state ADD COLUMN total_donated INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE ledger_state ADD COLUMN paused INTEGER NOT NULL DEFAULT 0",
	}, stmts)

	stmts, err = c.Migration(2, 2)
	require.NoError(t, err)
	assert.Empty(t, stmts)

	_, err = c.Migration(2, 1)
	assert.Error(t, err)

	_, err = c.Migration(1, 9)
	assert.Error(t, err)
}

func TestCreateTable(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ddl := c.Layouts[0].CreateTable()
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS ledger_state")
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY CHECK (id = 1)")
	assert.Contains(t, ddl, "owner TEXT NOT NULL DEFAULT ''")
	assert.NotContains(t, ddl, "paused")
}

func TestParseRejectsNonAdditiveLayouts(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{
			name: "reordered column",
			src: `layouts: [
				{generation: 1, state: [{name: "a", type: "TEXT", default: "''"}, {name: "b", type: "INTEGER", default: "0"}]},
				{generation: 2, state: [{name: "b", type: "INTEGER", default: "0"}, {name: "a", type: "TEXT", default: "''"}]},
			]`,
			message: "changed",
		},
		{
			name: "retyped column",
			src: `layouts: [
				{generation: 1, state: [{name: "a", type: "TEXT", default: "''"}]},
				{generation: 2, state: [{name: "a", type: "INTEGER", default: "0"}]},
			]`,
			message: "changed",
		},
		{
			name: "dropped column",
			src: `layouts: [
				{generation: 1, state: [{name: "a", type: "TEXT", default: "''"}, {name: "b", type: "TEXT", default: "''"}]},
				{generation: 2, state: [{name: "a", type: "TEXT", default: "''"}]},
			]`,
			message: "drops columns",
		},
		{
			name: "generation gap",
			src: `layouts: [
				{generation: 1, state: []},
				{generation: 3, state: []},
			]`,
			message: "expected generation 2",
		},
		{
			name: "duplicate column",
			src: `layouts: [
				{generation: 1, state: [{name: "a", type: "TEXT", default: "''"}, {name: "a", type: "TEXT", default: "''"}]},
			]`,
			message: "duplicate column",
		},
		{
			name:    "empty",
			src:     `layouts: []`,
			message: "at least one layout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.cue")
			require.Error(t, err)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, schemaErr.Message, tt.message)
		})
	}
}

func TestParseReportsCUEErrors(t *testing.T) {
	_, err := Parse([]byte(`layouts: [`), "broken.cue")
	require.Error(t, err)

	_, err = Parse([]byte(`layouts: [{generation: 1, state: [{name: string, type: "TEXT", default: "0"}]}]`), "open.cue")
	require.Error(t, err, "non-concrete layouts are rejected")
}

func TestParseMissingLayouts(t *testing.T) {
	_, err := Parse([]byte(`other: 1`), "test.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layouts list is required")
}
