package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arrowgate/docdedupe/internal/model"
)

// HTTPClient is the default Client implementation: bearer-token or
// basic-auth HTTP against the upstream document store, retrying 429/5xx
// with exponential backoff and surfacing 4xx (other than 429) as a terminal
// model.UpstreamPermanentError (spec.md §6, §7).
type HTTPClient struct {
	baseURL     string
	bearerToken string
	username    string
	password    string
	httpClient  *http.Client
	maxElapsed  time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBearerToken authenticates requests with an Authorization: Bearer header.
func WithBearerToken(token string) Option {
	return func(c *HTTPClient) { c.bearerToken = token }
}

// WithBasicAuth authenticates requests with HTTP basic auth.
func WithBasicAuth(username, password string) Option {
	return func(c *HTTPClient) { c.username, c.password = username, password }
}

// WithHTTPClient overrides the underlying *http.Client (e.g. for custom
// timeouts or transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithMaxElapsedRetryTime bounds how long retries run before a transient
// failure is surfaced to the caller.
func WithMaxElapsedRetryTime(d time.Duration) Option {
	return func(c *HTTPClient) { c.maxElapsed = d }
}

// NewHTTPClient builds an HTTPClient against baseURL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxElapsed: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listDocumentsResponse struct {
	Results []documentDTO `json:"results"`
	Next    string        `json:"next"`
}

type documentDTO struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Created       time.Time `json:"created"`
	Modified      time.Time `json:"modified"`
	Tags          []string  `json:"tags"`
	Correspondent string    `json:"correspondent"`
	DocumentType  string    `json:"document_type"`
}

type metadataDTO struct {
	OriginalSize *int64 `json:"original_size"`
	ArchiveSize  *int64 `json:"archive_size"`
}

type referenceDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type referenceListResponse struct {
	Results []referenceDTO `json:"results"`
}

// ListDocuments implements Client.
func (c *HTTPClient) ListDocuments(ctx context.Context, nextURL string) (Page, error) {
	url := nextURL
	if url == "" {
		url = c.baseURL + "/api/documents/?ordering=-modified"
	}

	var body listDocumentsResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return Page{}, err
	}

	docs := make([]Document, 0, len(body.Results))
	for _, d := range body.Results {
		docs = append(docs, Document{
			UpstreamID:      d.ID,
			Title:           d.Title,
			Content:         d.Content,
			Created:         d.Created,
			Modified:        d.Modified,
			TagIDs:          d.Tags,
			CorrespondentID: d.Correspondent,
			DocumentTypeID:  d.DocumentType,
		})
	}
	return Page{Documents: docs, NextURL: body.Next}, nil
}

// GetDocumentMetadata implements Client.
func (c *HTTPClient) GetDocumentMetadata(ctx context.Context, upstreamID string) (Metadata, error) {
	url := fmt.Sprintf("%s/api/documents/%s/metadata/", c.baseURL, upstreamID)
	var body metadataDTO
	if err := c.getJSON(ctx, url, &body); err != nil {
		return Metadata{}, err
	}
	return Metadata{OriginalFileSize: body.OriginalSize, ArchiveFileSize: body.ArchiveSize}, nil
}

// ListTags implements Client.
func (c *HTTPClient) ListTags(ctx context.Context) ([]Reference, error) {
	return c.listReferences(ctx, c.baseURL+"/api/tags/")
}

// ListCorrespondents implements Client.
func (c *HTTPClient) ListCorrespondents(ctx context.Context) ([]Reference, error) {
	return c.listReferences(ctx, c.baseURL+"/api/correspondents/")
}

// ListDocumentTypes implements Client.
func (c *HTTPClient) ListDocumentTypes(ctx context.Context) ([]Reference, error) {
	return c.listReferences(ctx, c.baseURL+"/api/document_types/")
}

func (c *HTTPClient) listReferences(ctx context.Context, url string) ([]Reference, error) {
	var body referenceListResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	out := make([]Reference, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Reference{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// getJSON issues a GET against url, retrying transient failures with
// exponential backoff, and decodes the JSON response body into out.
func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.authenticate(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &model.UpstreamTransientError{Cause: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &model.UpstreamTransientError{Cause: err}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &model.UpstreamTransientError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, data)}
		default:
			return backoff.Permanent(&model.UpstreamPermanentError{
				StatusCode: resp.StatusCode,
				Cause:      fmt.Errorf("%s", data),
			})
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return unwrapBackoffPermanent(err)
	}

	return json.Unmarshal(body, out)
}

func (c *HTTPClient) authenticate(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		return
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// unwrapBackoffPermanent strips backoff.Retry's *backoff.PermanentError
// wrapper so callers see the model error kind directly.
func unwrapBackoffPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
