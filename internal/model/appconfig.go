package model

// AppConfig is the key-value table backing schema-version metadata and
// typed dedup configuration (spec.md §3 AppConfig). The Store persists it
// as a flat string->string map; internal/config.Service is the typed view
// over it (spec.md §9's "dynamically typed key-value configuration"
// redesign note).
type AppConfig map[string]string

// SchemaMetadataPrefix marks keys that are schema bookkeeping rather than
// user configuration; ExportService strips these on both export and import
// (spec.md §4.12).
const SchemaMetadataPrefix = "_schema."

// DedupConfigPrefix namespaces the typed ConfigService's keys within
// AppConfig (spec.md §4.11).
const DedupConfigPrefix = "dedup."

// StripSchemaMetadata returns a copy of cfg with schema-metadata keys
// removed.
func StripSchemaMetadata(cfg AppConfig) AppConfig {
	out := make(AppConfig, len(cfg))
	for k, v := range cfg {
		if len(k) >= len(SchemaMetadataPrefix) && k[:len(SchemaMetadataPrefix)] == SchemaMetadataPrefix {
			continue
		}
		out[k] = v
	}
	return out
}
