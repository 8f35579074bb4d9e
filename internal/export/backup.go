package export

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/arrowgate/docdedupe/internal/config"
	"github.com/arrowgate/docdedupe/internal/model"
)

// backupVersionPrefix is the only accepted major version on import
// (spec.md §4.12 "importing rejects unknown versions; only 1.x accepted").
const backupVersionPrefix = "1."

// CurrentBackupVersion is written on every export.
const CurrentBackupVersion = "1.0"

// Backup is the `{version, exported_at, app_config, dedup_config}`
// document of spec.md §4.12 and §6.
type Backup struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	AppConfig  model.AppConfig  `json:"app_config"`
	DedupConfig config.DedupConfig `json:"dedup_config"`
}

// WriteConfigBackup marshals the current AppConfig (minus schema-metadata
// and dedup-namespaced keys, which dedup_config already carries) and
// DedupConfig into w as indented JSON.
func (e *Exporter) WriteConfigBackup(ctx context.Context, w io.Writer, exportedAt time.Time) error {
	raw, err := e.store.LoadAppConfig(ctx)
	if err != nil {
		return err
	}
	dedupCfg, err := config.New(e.store).Get(ctx)
	if err != nil {
		return err
	}

	backup := Backup{
		Version:    CurrentBackupVersion,
		ExportedAt: exportedAt.UTC(),
		AppConfig:  stripSchemaAndDedupKeys(raw),
		DedupConfig: dedupCfg,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(backup)
}

// ImportConfigBackup decodes r as a Backup, rejects unrecognized versions,
// strips schema-metadata keys, and applies app_config via upsert and
// dedup_config via the ConfigService (spec.md §4.12).
func (e *Exporter) ImportConfigBackup(ctx context.Context, r io.Reader) error {
	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return &model.ValidationError{Field: "backup", Msg: "malformed JSON: " + err.Error()}
	}
	if !strings.HasPrefix(backup.Version, backupVersionPrefix) {
		return &model.ValidationError{Field: "version", Msg: "unsupported backup version " + backup.Version}
	}

	appCfg := model.StripSchemaMetadata(backup.AppConfig)
	if len(appCfg) > 0 {
		if err := e.store.SetAppConfig(ctx, appCfg); err != nil {
			return err
		}
	}

	return config.New(e.store).Set(ctx, backup.DedupConfig)
}

// stripSchemaAndDedupKeys removes schema-metadata keys and any key already
// represented by the backup's dedup_config section, so a restore does not
// write the same value through two different paths.
func stripSchemaAndDedupKeys(cfg model.AppConfig) model.AppConfig {
	stripped := model.StripSchemaMetadata(cfg)
	out := make(model.AppConfig, len(stripped))
	for k, v := range stripped {
		if strings.HasPrefix(k, model.DedupConfigPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}
