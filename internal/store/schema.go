package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/arrowgate/docdedupe/internal/model"
)

// schemaHashKey is the app_config key the current DDL hash is recorded
// under, gating whether schemaDDL needs to be re-applied (spec.md §4.1).
const schemaHashKey = "_schema.hash"

// schemaDDL creates every table/index this store owns. All statements are
// additive (CREATE TABLE/INDEX IF NOT EXISTS) so re-running them against an
// already-migrated database is always safe.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id                 TEXT PRIMARY KEY,
	upstream_id        TEXT NOT NULL UNIQUE,
	title              TEXT NOT NULL DEFAULT '',
	correspondent      TEXT NOT NULL DEFAULT '',
	document_type      TEXT NOT NULL DEFAULT '',
	tags               TEXT NOT NULL DEFAULT '[]',
	created_at         DATETIME NOT NULL,
	added_at           DATETIME NOT NULL,
	modified_at        DATETIME NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	original_file_size INTEGER,
	archive_file_size  INTEGER,
	fingerprint        TEXT NOT NULL DEFAULT '',
	last_sync_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_upstream_id ON documents(upstream_id);
CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint);

CREATE TABLE IF NOT EXISTS document_content (
	document_id  TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	full_text    TEXT NOT NULL DEFAULT '',
	normalized   TEXT NOT NULL DEFAULT '',
	word_count   INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_document_content_hash ON document_content(content_hash);

CREATE TABLE IF NOT EXISTS document_signatures (
	document_id       TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	bytes             BLOB NOT NULL,
	algorithm_version TEXT NOT NULL,
	permutations      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_groups (
	id                TEXT PRIMARY KEY,
	confidence_score  REAL NOT NULL,
	jaccard_score     REAL NOT NULL,
	fuzzy_score       REAL NOT NULL,
	metadata_score    REAL,
	filename_score    REAL,
	algorithm_version TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_duplicate_groups_status ON duplicate_groups(status);

CREATE TABLE IF NOT EXISTS duplicate_members (
	group_id    TEXT NOT NULL REFERENCES duplicate_groups(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	is_primary  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, document_id)
);
CREATE INDEX IF NOT EXISTS idx_duplicate_members_document ON duplicate_members(document_id);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	progress         REAL NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	started_at       DATETIME,
	completed_at     DATETIME,
	result           BLOB,
	error_message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_type_status ON jobs(type, status);

CREATE TABLE IF NOT EXISTS sync_state (
	id                     INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync_at           DATETIME,
	last_analysis_at       DATETIME,
	last_sync_doc_count    INTEGER NOT NULL DEFAULT 0,
	total_documents        INTEGER NOT NULL DEFAULT 0,
	total_duplicate_groups INTEGER NOT NULL DEFAULT 0,
	groups_actioned        INTEGER NOT NULL DEFAULT 0,
	documents_deleted      INTEGER NOT NULL DEFAULT 0,
	bytes_reclaimed        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS app_config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// migration is a guarded, idempotent pre-DDL column addition — for schema
// changes that cannot be expressed as additive CREATE TABLE/INDEX (spec.md
// §4.1's "Migrations that cannot be expressed by additive DDL").
type migration struct {
	Table      string
	Column     string
	Definition string
}

// pendingMigrations currently has no entries: this is the first shipped
// schema version. Future column additions that existing databases need
// backfilled go here, following codenerd's migrations.go pattern.
var pendingMigrations []migration

// schemaHash hashes schemaDDL so Store.migrate only re-applies it when the
// definition text actually changes.
func schemaHash() string {
	sum := sha256.Sum256([]byte(schemaDDL))
	return hex.EncodeToString(sum[:])
}

// createConfigTable ensures app_config exists even before the gated DDL
// runs, since the schema hash itself is recorded there.
func (s *Store) createConfigTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS app_config (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return &model.StoreError{Op: "create_config_table", Cause: err}
	}
	return nil
}
