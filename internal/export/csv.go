// Package export implements the two file formats spec.md §4.12 and §6
// name: a streaming duplicate-members CSV and a JSON config backup/
// restore document. Both ride stdlib encoding/csv and encoding/json — no
// library anywhere in the pack does anything beyond what those packages
// already implement for a flat, RFC-4180-compliant row or a small JSON
// document, so reaching for one would just wrap the stdlib call.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/store"
)

// csvHeader is the fixed column order of spec.md §6's duplicate CSV
// export.
var csvHeader = []string{
	"group_id", "confidence_score", "jaccard_similarity", "fuzzy_text_ratio",
	"group_status", "is_primary", "upstream_id", "title", "correspondent",
	"document_type", "tags", "created_date", "word_count", "group_created_at",
}

// utf8BOM precedes the CSV body per spec.md §4.12.
const utf8BOM = "\xEF\xBB\xBF"

// Exporter streams the two spec.md §4.12 file formats from a Store.
type Exporter struct {
	store *store.Store
}

// New builds an Exporter over st.
func New(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteDuplicateCSV streams one row per group member: UTF-8 BOM, CRLF line
// endings, comma separator, RFC-4180 quoting (spec.md §4.12, §6). Nulls
// render as empty fields, booleans as true/false, tags `|`-joined.
func (e *Exporter) WriteDuplicateCSV(ctx context.Context, w io.Writer) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	groups, err := e.store.ListGroupsWithMembers(ctx)
	if err != nil {
		return err
	}

	for _, g := range groups {
		for _, m := range g.Members {
			row, err := e.memberRow(ctx, g, m)
			if err != nil {
				return err
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func (e *Exporter) memberRow(ctx context.Context, g model.GroupWithMembers, m model.DuplicateMember) ([]string, error) {
	doc, err := e.store.LoadDocument(ctx, m.DocumentID)
	if err != nil {
		return nil, err
	}
	content, err := e.store.LoadContent(ctx, m.DocumentID)
	if err != nil && !model.IsNotFound(err) {
		return nil, err
	}

	wordCount := ""
	if content != nil {
		wordCount = strconv.Itoa(content.WordCount)
	}

	return []string{
		g.Group.ID.String(),
		formatFloat(g.Group.ConfidenceScore),
		formatFloat(g.Group.Components.Jaccard),
		formatFloat(g.Group.Components.Fuzzy),
		string(g.Group.Status),
		strconv.FormatBool(m.IsPrimary),
		doc.UpstreamID,
		doc.Title,
		doc.Correspondent,
		doc.DocumentType,
		strings.Join(doc.Tags, "|"),
		formatTime(doc.CreatedAt),
		wordCount,
		formatTime(g.Group.CreatedAt),
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
