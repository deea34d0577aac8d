package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/layout"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for the ledger.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db      *sql.DB
	catalog *layout.Catalog
	layout  layout.Layout
}

type options struct {
	catalog    *layout.Catalog
	generation uint64
}

// Option configures Open.
type Option func(*options)

// WithCatalog uses c instead of the embedded layout catalog.
func WithCatalog(c *layout.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithLayoutGeneration migrates the file only up to the layout of gen instead
// of the latest one. A file already past gen is rejected.
func WithLayoutGeneration(gen uint64) Option {
	return func(o *options) {
		o.generation = gen
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and layout migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		c, err := layout.Load()
		if err != nil {
			return nil, fmt.Errorf("load layouts: %w", err)
		}
		o.catalog = c
	}
	if o.generation == 0 {
		o.generation = o.catalog.Latest().Generation
	}
	target, ok := o.catalog.At(o.generation)
	if !ok {
		return nil, fmt.Errorf("unknown layout generation %d", o.generation)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, o.catalog, target.Generation); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := verifyLayout(db, target); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, catalog: o.catalog, layout: target}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Layout returns the state layout the file is at.
func (s *Store) Layout() layout.Layout {
	return s.layout
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the fixed tables and brings ledger_state to the layout
// of generation target.
func applySchema(db *sql.DB, c *layout.Catalog, target uint64) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db, c, target); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("INSERT OR IGNORE INTO %s (id) VALUES (1)", layout.StateTable)); err != nil {
		return fmt.Errorf("seed state row: %w", err)
	}

	return nil
}

// runMigrations applies layout steps one generation at a time. Each step and
// its user_version bump commit together.
func runMigrations(db *sql.DB, c *layout.Catalog, target uint64) error {
	var version uint64
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > target {
		return fmt.Errorf("database layout generation %d is newer than %d", version, target)
	}

	if version == 0 {
		first := c.Layouts[0]
		if err := migrateStep(db, 1, []string{first.CreateTable()}); err != nil {
			return err
		}
		version = 1
	}

	for version < target {
		stmts, err := c.Migration(version, version+1)
		if err != nil {
			return err
		}
		if err := migrateStep(db, version+1, stmts); err != nil {
			return err
		}
		version++
	}

	return nil
}

func migrateStep(db *sql.DB, to uint64, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin: %w", to, err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", to, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", to)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", to, err)
	}
	return tx.Commit()
}

// verifyLayout checks that the physical ledger_state columns are exactly the
// id key followed by the layout's columns, in order and with matching types.
func verifyLayout(db *sql.DB, want layout.Layout) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", layout.StateTable))
	if err != nil {
		return fmt.Errorf("verify layout: %w", err)
	}
	defer rows.Close()

	var got []layout.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("verify layout: %w", err)
		}
		got = append(got, layout.Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify layout: %w", err)
	}

	if len(got) != len(want.State)+1 || got[0].Name != "id" {
		return fmt.Errorf("verify layout: %s has %d columns, layout generation %d expects %d",
			layout.StateTable, len(got), want.Generation, len(want.State)+1)
	}
	for i, col := range want.State {
		if got[i+1].Name != col.Name || got[i+1].Type != col.Type {
			return fmt.Errorf("verify layout: column %d is %s %s, layout generation %d expects %s %s",
				i+1, got[i+1].Name, got[i+1].Type, want.Generation, col.Name, col.Type)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
