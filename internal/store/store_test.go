package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/layout"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, uint64(2), s.Layout().Generation)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d failed", i)
		require.NoError(t, s.Close())
	}

	s := openTestStore(t, path)
	for _, table := range []string{"ledger_state", "donations", "events", "implementation"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM ledger_state").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpen_UnknownLayoutGeneration(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLayoutGeneration(7))
	assert.ErrorContains(t, err, "unknown layout generation 7")
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma(ctx, "synchronous", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "user_version", "2"))
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestOpen_FreshFileHasLatestLayout(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t,
		[]string{"id", "owner", "deposit_count", "balance", "init_generation", "total_donated", "paused"},
		tableColumns(t, s, "ledger_state"))
}

func TestOpen_Gen1FileGainsOnlyAppendedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	old, err := Open(path, WithLayoutGeneration(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "owner", "deposit_count", "balance", "init_generation"}, tableColumns(t, old, "ledger_state"))

	initializeStore(t, old)
	first := depositVia(t, old, "call-1", "bob", 100, t0)
	before, err := old.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s := openTestStore(t, path)
	assert.Equal(t,
		[]string{"id", "owner", "deposit_count", "balance", "init_generation", "total_donated", "paused"},
		tableColumns(t, s, "ledger_state"))
	require.NoError(t, s.verifyPragma(ctx, "user_version", "2"))

	after, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, ledger.Amount(0), after.TotalDonated)
	assert.False(t, after.Paused)

	donations, err := s.Donations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, first, donations[0])
	assert.NoError(t, s.Audit(ctx))
}

func TestOpen_RejectsNewerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, WithLayoutGeneration(1))
	assert.ErrorContains(t, err, "newer")
}

func TestOpen_RejectsForeignColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A catalog whose generation 2 disagrees with what is on disk.
	c, err := layout.Load()
	require.NoError(t, err)
	bad := &layout.Catalog{Layouts: []layout.Layout{
		c.Layouts[0],
		{Generation: 2, State: append(append([]layout.Column{}, c.Layouts[0].State...),
			layout.Column{Name: "paused", Type: "INTEGER", Default: "0"},
			layout.Column{Name: "total_donated", Type: "INTEGER", Default: "0"},
		)},
	}}
	require.NoError(t, bad.Validate())

	_, err = Open(path, WithCatalog(bad))
	assert.ErrorContains(t, err, "verify layout")
}
