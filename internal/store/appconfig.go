package store

import (
	"context"
	"database/sql"

	"github.com/arrowgate/docdedupe/internal/model"
)

// getRawConfig reads a single app_config value, returning "" if absent.
func (s *Store) getRawConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &model.StoreError{Op: "get_config", Cause: err}
	}
	return value, nil
}

// setRawConfig upserts a single app_config value.
func (s *Store) setRawConfig(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO app_config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return &model.StoreError{Op: "set_config", Cause: err}
	}
	return nil
}

// LoadAppConfig returns the entire app_config table.
func (s *Store) LoadAppConfig(ctx context.Context) (model.AppConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_config`)
	if err != nil {
		return nil, &model.StoreError{Op: "load_app_config", Cause: err}
	}
	defer rows.Close()

	cfg := make(model.AppConfig)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, &model.StoreError{Op: "load_app_config_scan", Cause: err}
		}
		cfg[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "load_app_config_rows", Cause: err}
	}
	return cfg, nil
}

// SetAppConfig upserts every key in updates within a single transaction
// (spec.md §4.11's "set validates the merged configuration and persists in
// one transaction").
func (s *Store) SetAppConfig(ctx context.Context, updates model.AppConfig) error {
	return s.SetAppConfigAndRecomputeConfidence(ctx, updates, nil)
}

// ConfidenceFunc recomputes a group's overall confidence score from its
// stored component scores, per whatever weights ConfigService.Set is
// applying.
type ConfidenceFunc func(jaccard, fuzzy float64, metadata, filename *float64) float64

// SetAppConfigAndRecomputeConfidence upserts updates and, if recompute is
// non-nil, rewrites every group's confidence_score from its stored
// component scores — all within the one transaction spec.md §4.11
// requires for a weight change ("recomputes every group's confidence_score
// ... in the same transaction").
func (s *Store) SetAppConfigAndRecomputeConfidence(ctx context.Context, updates model.AppConfig, recompute ConfidenceFunc) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for k, v := range updates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO app_config (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				k, v,
			); err != nil {
				return &model.StoreError{Op: "set_app_config", Cause: err}
			}
		}
		if recompute == nil {
			return nil
		}

		rows, err := tx.QueryContext(ctx, `SELECT id, jaccard_score, fuzzy_score, metadata_score, filename_score FROM duplicate_groups`)
		if err != nil {
			return &model.StoreError{Op: "recompute_confidence_list", Cause: err}
		}
		type groupScores struct {
			id                 string
			jaccard, fuzzy     float64
			metadata, filename sql.NullFloat64
		}
		var all []groupScores
		for rows.Next() {
			var g groupScores
			if err := rows.Scan(&g.id, &g.jaccard, &g.fuzzy, &g.metadata, &g.filename); err != nil {
				rows.Close()
				return &model.StoreError{Op: "recompute_confidence_scan", Cause: err}
			}
			all = append(all, g)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return &model.StoreError{Op: "recompute_confidence_rows", Cause: err}
		}
		rows.Close()

		for _, g := range all {
			var metadata, filename *float64
			if g.metadata.Valid {
				metadata = &g.metadata.Float64
			}
			if g.filename.Valid {
				filename = &g.filename.Float64
			}
			score := recompute(g.jaccard, g.fuzzy, metadata, filename)
			if _, err := tx.ExecContext(ctx,
				`UPDATE duplicate_groups SET confidence_score = ?, updated_at = ? WHERE id = ?`,
				score, nowUTC(), g.id,
			); err != nil {
				return &model.StoreError{Op: "recompute_confidence_update", Cause: err}
			}
		}
		return nil
	})
}
