package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/model"
)

func TestListDocumentsParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		resp := listDocumentsResponse{
			Results: []documentDTO{
				{ID: "1", Title: "Invoice", Content: "body", Modified: time.Now().UTC(), Tags: []string{"a", "b"}},
			},
			Next: "",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithBearerToken("secret-token"))
	page, err := c.ListDocuments(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "1", page.Documents[0].UpstreamID)
	assert.Equal(t, []string{"a", "b"}, page.Documents[0].TagIDs)
	assert.Empty(t, page.NextURL)
}

func TestListDocumentsSurfacesPermanentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`unauthorized`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithMaxElapsedRetryTime(2*time.Second))
	_, err := c.ListDocuments(context.Background(), "")

	var permErr *model.UpstreamPermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, http.StatusUnauthorized, permErr.StatusCode)
}

func TestListDocumentsRetriesThenSucceedsOn5xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(listDocumentsResponse{})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithMaxElapsedRetryTime(5*time.Second))
	_, err := c.ListDocuments(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGetDocumentMetadataBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "hunter2", pass)

		size := int64(4096)
		json.NewEncoder(w).Encode(metadataDTO{OriginalSize: &size})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithBasicAuth("alice", "hunter2"))
	meta, err := c.GetDocumentMetadata(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, meta.OriginalFileSize)
	assert.EqualValues(t, 4096, *meta.OriginalFileSize)
}

func TestListTagsParsesReferences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(referenceListResponse{
			Results: []referenceDTO{{ID: "1", Name: "urgent"}, {ID: "2", Name: "archived"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	tags, err := c.ListTags(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 2)
	assert.Equal(t, "urgent", tags[0].Name)
}
