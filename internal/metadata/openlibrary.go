// file: internal/metadata/openlibrary.go
// version: 1.3.0
// guid: b4e7a2c9-6d1f-4a8b-b3e5-9c0d2f7a1e68

package metadata

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenLibraryBaseURL  = "https://openlibrary.org"
	defaultOpenLibraryCoverURL = "https://covers.openlibrary.org"

	// authorRoleKey marks the author references that name actual authors,
	// as opposed to translators, illustrators and other contributors.
	authorRoleKey = "/type/author_role"
)

// OpenLibraryConfig configures the Open Library provider.
type OpenLibraryConfig struct {
	// Contact is embedded in the outbound User-Agent header, as required by
	// the Open Library usage policy.
	Contact string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// CoverBaseURL overrides the cover-image CDN endpoint.
	CoverBaseURL string
	// Timeout bounds each HTTP call. Zero relies on transport defaults.
	Timeout time.Duration
}

// OpenLibraryClient assembles one record from a chain of Open Library
// lookups: edition by ISBN, then the referenced work, then each author the
// work credits with an author role. Each step's URL depends on the previous
// response, so the chain is inherently sequential.
type OpenLibraryClient struct {
	cfg OpenLibraryConfig
}

// NewOpenLibraryClient validates that the contact string is present.
func NewOpenLibraryClient(cfg OpenLibraryConfig) (*OpenLibraryClient, error) {
	if strings.TrimSpace(cfg.Contact) == "" {
		return nil, fmt.Errorf("contact string is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenLibraryBaseURL
	}
	if cfg.CoverBaseURL == "" {
		cfg.CoverBaseURL = defaultOpenLibraryCoverURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CoverBaseURL = strings.TrimRight(cfg.CoverBaseURL, "/")
	return &OpenLibraryClient{cfg: cfg}, nil
}

// MakeClientError reports that the HTTP client could not be constructed,
// typically because the configured contact string is not a legal header
// value.
type MakeClientError struct {
	Err error
}

func (e *MakeClientError) Error() string {
	return fmt.Sprintf("could not make open library client: %v", e.Err)
}
func (e *MakeClientError) Unwrap() error { return e.Err }

// RequestError reports a transport-level HTTP failure or a non-404
// non-success status.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("error in http request: %v", e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// JSONError reports a structural mismatch between the expected and actual
// JSON shape, including the field path at which decoding failed.
type JSONError struct {
	Resource string
	Path     string
	Err      error
}

func (e *JSONError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("could not parse %s json response at %s: %v", e.Resource, e.Path, e.Err)
	}
	return fmt.Sprintf("could not parse %s json response: %v", e.Resource, e.Err)
}
func (e *JSONError) Unwrap() error { return e.Err }

// MissingWorkError reports an edition that references zero works, an
// upstream data-integrity problem.
type MissingWorkError struct {
	ISBN string
}

func (e *MissingWorkError) Error() string {
	return fmt.Sprintf("edition for isbn %s references no work", e.ISBN)
}

// NotFoundError reports a 404 on a resource something else referenced, which
// is an error — unlike the edition lookup, where 404 means clean absence.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("expected %s %s was not found", e.Resource, e.Key)
}

// olText accepts Open Library's two description encodings: a bare JSON
// string, or a {"type": ..., "value": "..."} wrapper. Both normalize to the
// same plain text; neither shape leaks past deserialization.
type olText struct {
	Value string
}

func (t *olText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Value = s
		return nil
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	t.Value = wrapped.Value
	return nil
}

type olReference struct {
	Key string `json:"key"`
}

type olAuthorReference struct {
	Author olReference `json:"author"`
	Type   olReference `json:"type"`
}

type olEdition struct {
	PublishDate   string        `json:"publish_date"`
	Publishers    []string      `json:"publishers"`
	Languages     []olReference `json:"languages"`
	NumberOfPages *int          `json:"number_of_pages"`
	Covers        []int64       `json:"covers"`
	Works         []olReference `json:"works"`
}

type olWork struct {
	Description *olText             `json:"description"`
	Subjects    []string            `json:"subjects"`
	Authors     []olAuthorReference `json:"authors"`
	Title       *string             `json:"title"`
}

type olAuthor struct {
	Name *string `json:"name"`
}

// decodeResource unmarshals a response body, reporting the field path on
// structural mismatches.
func decodeResource(data []byte, resource string, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &JSONError{Resource: resource, Path: typeErr.Field, Err: err}
		}
		return &JSONError{Resource: resource, Err: err}
	}
	return nil
}

// newHTTPClient builds the per-call client. There is no shared client and no
// cross-call state; concurrent fetches never coordinate.
func (c *OpenLibraryClient) newHTTPClient() (*http.Client, string, error) {
	userAgent := fmt.Sprintf("bookloft (%s)", c.cfg.Contact)
	if !validHeaderValue(userAgent) {
		return nil, "", &MakeClientError{Err: fmt.Errorf("contact string %q is not a valid header value", c.cfg.Contact)}
	}
	return &http.Client{Timeout: c.cfg.Timeout}, userAgent, nil
}

func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b < 0x20 && b != '\t' || b == 0x7f {
			return false
		}
	}
	return true
}

// get performs one GET in the chain. found=false with a nil error means the
// resource returned 404; the caller decides whether that is clean absence or
// a broken reference.
func (c *OpenLibraryClient) get(ctx context.Context, client *http.Client, userAgent, url string) (data []byte, found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &RequestError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &RequestError{Err: fmt.Errorf("unexpected status %s for %s", resp.Status, url)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &RequestError{Err: err}
	}
	return body, true, nil
}

// FetchByISBN walks edition -> work -> authors and assembles the normalized
// record. A 404 on the edition itself is clean absence (nil, nil).
func (c *OpenLibraryClient) FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	log.Printf("[DEBUG] openlibrary: querying for isbn %s", isbn)

	client, userAgent, err := c.newHTTPClient()
	if err != nil {
		return nil, err
	}

	editionBody, found, err := c.get(ctx, client, userAgent, fmt.Sprintf("%s/isbn/%s.json", c.cfg.BaseURL, isbn))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var edition olEdition
	if err := decodeResource(editionBody, "edition", &edition); err != nil {
		return nil, err
	}

	if len(edition.Works) == 0 {
		return nil, &MissingWorkError{ISBN: isbn}
	}
	if len(edition.Works) > 1 {
		log.Printf("[WARN] openlibrary: edition for isbn %s references %d works, following the first", isbn, len(edition.Works))
	}

	workKey := edition.Works[0].Key
	workBody, found, err := c.get(ctx, client, userAgent, fmt.Sprintf("%s%s.json", c.cfg.BaseURL, workKey))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Resource: "work", Key: workKey}
	}

	var work olWork
	if err := decodeResource(workBody, "work", &work); err != nil {
		return nil, err
	}

	// Author order in the record follows the order of author references in
	// the work; contributors without the author role are excluded.
	var authors []string
	for _, ref := range work.Authors {
		if ref.Type.Key != authorRoleKey {
			continue
		}
		authorBody, found, err := c.get(ctx, client, userAgent, fmt.Sprintf("%s%s.json", c.cfg.BaseURL, ref.Author.Key))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &NotFoundError{Resource: "author", Key: ref.Author.Key}
		}
		var author olAuthor
		if err := decodeResource(authorBody, "author", &author); err != nil {
			return nil, err
		}
		if author.Name != nil && *author.Name != "" {
			authors = append(authors, *author.Name)
		}
	}

	record := &BookMetadata{
		ISBN:      &isbn,
		Title:     work.Title,
		Authors:   authors,
		Tags:      work.Subjects,
		PageCount: edition.NumberOfPages,
		Published: parsePublishDate(edition.PublishDate),
	}
	if work.Description != nil {
		record.Summary = &work.Description.Value
	}
	if len(edition.Publishers) > 0 {
		record.Publisher = &edition.Publishers[0]
	}
	if len(edition.Languages) > 0 {
		if code, ok := strings.CutPrefix(edition.Languages[0].Key, "/languages/"); ok {
			record.Language = &code
		}
	}

	if len(edition.Covers) > 0 {
		cover, err := c.fetchCover(ctx, client, userAgent, edition.Covers[0])
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(cover)
		record.CoverArtB64 = &encoded
	}

	return record, nil
}

// fetchCover downloads the medium-size cover for the first cover id. The CDN
// response body is embedded as-is; only transport failures are errors.
func (c *OpenLibraryClient) fetchCover(ctx context.Context, client *http.Client, userAgent string, coverID int64) ([]byte, error) {
	url := fmt.Sprintf("%s/b/id/%d-M.jpg", c.cfg.CoverBaseURL, coverID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	return body, nil
}
