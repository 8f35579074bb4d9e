// Package store is the embedded transactional store for the deduplication
// engine: documents, content, signatures, groups, members, jobs, sync
// state, and key-value config (spec.md §4.1).
//
// # Why This Design?
//
//   - modernc.org/sqlite is a pure-Go driver: the store opens with the same
//     "sqlite" driver name and PRAGMA sequence theRebelliousNerd-codenerd's
//     LocalStore uses, so no cgo toolchain is needed to build or test this
//     package.
//   - Schema evolution is hash-gated: the store computes a hash of its DDL
//     and only re-applies CREATE TABLE/INDEX statements when that hash
//     changes, avoiding redundant DDL on every process start.
//   - Pre-DDL migrations (column additions) are guarded by an
//     information_schema-style existence check and run before the gated DDL,
//     mirroring codenerd's migrations.go pattern of idempotent ALTER TABLE
//     ADD COLUMN steps.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arrowgate/docdedupe/internal/logging"
	"github.com/arrowgate/docdedupe/internal/model"
)

// Store is the embedded transactional store described by spec.md §4.1.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path, applies
// pending migrations and schema DDL, and returns a ready Store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &model.StoreError{Op: "mkdir", Cause: err}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &model.StoreError{Op: "open", Cause: err}
	}
	// WAL + one writer: the store serializes writes itself, so a single
	// connection avoids SQLITE_BUSY storms under concurrent analyser/UI
	// access (spec.md §5's shared-resource policy).
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, &model.StoreError{Op: "pragma", Cause: fmt.Errorf("%s: %w", p, err)}
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.ensureSyncStateRow(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs guarded pre-DDL column migrations, then applies the current
// schema DDL iff its hash differs from the one recorded in app_config
// (spec.md §4.1 "Schema evolution").
func (s *Store) migrate() error {
	log := logging.WithComponent("store")

	if err := s.createConfigTable(); err != nil {
		return err
	}

	for _, m := range pendingMigrations {
		if !tableExists(s.db, m.Table) {
			continue
		}
		if columnExists(s.db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Definition)
		if _, err := s.db.Exec(stmt); err != nil {
			return &model.StoreError{Op: "migrate:" + m.Table + "." + m.Column, Cause: err}
		}
		log.Info().Str("table", m.Table).Str("column", m.Column).Msg("applied schema migration")
	}

	hash := schemaHash()
	current, err := s.getRawConfig(schemaHashKey)
	if err != nil {
		return err
	}
	if current == hash {
		return nil
	}

	if _, err := s.db.Exec(schemaDDL); err != nil {
		return &model.StoreError{Op: "apply_schema", Cause: err}
	}
	if err := s.setRawConfig(schemaHashKey, hash); err != nil {
		return err
	}
	log.Info().Str("hash", hash).Msg("applied schema DDL")
	return nil
}

// ensureSyncStateRow inserts the singleton sync_state row if it does not
// exist yet, so RecordGroupResolution's plain UPDATE always has a row to
// touch.
func (s *Store) ensureSyncStateRow() error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO sync_state (id) VALUES (1)`)
	if err != nil {
		return &model.StoreError{Op: "ensure_sync_state_row", Cause: err}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Every multi-statement write in this package goes through
// here so partial writes never become visible (spec.md §4.1's "composable
// transactions" requirement).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StoreError{Op: "begin_tx", Cause: err}
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &model.StoreError{Op: "commit", Cause: err}
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

func nowUTC() time.Time { return time.Now().UTC() }
