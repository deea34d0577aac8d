package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "test.db"), opts...)
}

func openTestStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(path, opts...)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// initializeStore runs the generation 1 initializer with owner "alice".
func initializeStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Update(ctx, "call-init", func(tx *Tx) error {
		return ledger.Initialize(ctx, tx, "alice")
	})
	require.NoError(t, err)
}

// depositVia runs a deposit through the installed logic.
func depositVia(t *testing.T, s *Store, callID string, sender ledger.Identity, amount ledger.Amount, at time.Time) ledger.Donation {
	t.Helper()
	ctx := context.Background()
	var d ledger.Donation
	_, err := s.Update(ctx, callID, func(tx *Tx) error {
		logic, err := ledger.ActiveLogic(ctx, tx)
		if err != nil {
			return err
		}
		d, err = logic.Deposit(ctx, tx, sender, amount, at)
		return err
	})
	require.NoError(t, err)
	return d
}

func tableColumns(t *testing.T, s *Store, table string) []string {
	t.Helper()
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
