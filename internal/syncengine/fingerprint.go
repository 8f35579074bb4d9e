package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/arrowgate/docdedupe/internal/upstream"
)

// computeFingerprint hashes the fields that decide whether a previously
// synced document needs re-ingesting (spec.md §4.8 step 4): SHA-256 over
// the null-byte-separated canonical string "title \0 content \0 modified \0
// sorted_tag_ids_csv \0 correspondent_id_or_empty \0
// document_type_id_or_empty".
func computeFingerprint(doc upstream.Document) string {
	tagIDs := slices.Clone(doc.TagIDs)
	slices.Sort(tagIDs)

	canonical := strings.Join([]string{
		doc.Title,
		doc.Content,
		doc.Modified.UTC().Format(time.RFC3339Nano),
		strings.Join(tagIDs, ","),
		doc.CorrespondentID,
		doc.DocumentTypeID,
	}, "\x00")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
