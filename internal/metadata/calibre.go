// file: internal/metadata/calibre.go
// version: 1.1.0
// guid: 7c2d9e4b-1a6f-4b3c-9e8d-2f5a7b1c0d94

package metadata

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// CalibreConfig configures the local-tool provider.
type CalibreConfig struct {
	// Fetcher is the path to calibre's fetch-ebook-metadata executable.
	Fetcher string
}

// CalibreClient fetches metadata by invoking a local command-line tool that
// prints an OPF document on stdout and optionally writes a cover image to a
// caller-supplied path.
type CalibreClient struct {
	fetcher string
}

// NewCalibreClient validates the configured fetcher path is set.
func NewCalibreClient(cfg CalibreConfig) (*CalibreClient, error) {
	if strings.TrimSpace(cfg.Fetcher) == "" {
		return nil, fmt.Errorf("fetcher executable path is required")
	}
	return &CalibreClient{fetcher: cfg.Fetcher}, nil
}

// LaunchError reports that the fetcher subprocess could not be started.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("could not launch metadata fetcher: %v", e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }

// CoverArtError reports a local I/O failure on the temporary cover file.
type CoverArtError struct {
	Err error
}

func (e *CoverArtError) Error() string { return fmt.Sprintf("could not read the cover art: %v", e.Err) }
func (e *CoverArtError) Unwrap() error { return e.Err }

// InvalidResponseError reports that the fetcher's stdout was not UTF-8 text.
type InvalidResponseError struct{}

func (e *InvalidResponseError) Error() string { return "response is not a valid utf-8 document" }

// InvalidXMLResponseError reports that the fetcher's stdout was not
// well-formed XML.
type InvalidXMLResponseError struct {
	Err error
}

func (e *InvalidXMLResponseError) Error() string {
	return fmt.Sprintf("response is not a valid xml document: %v", e.Err)
}
func (e *InvalidXMLResponseError) Unwrap() error { return e.Err }

// InvalidDateError reports a date element that is not RFC 3339.
type InvalidDateError struct {
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("response contains an invalid date %q: %v", e.Value, e.Err)
}
func (e *InvalidDateError) Unwrap() error { return e.Err }

// FetchFailureError reports that the fetcher ran but exited non-zero. It
// carries the exact captured output for operator diagnosis.
type FetchFailureError struct {
	Stdout []byte
	Stderr []byte
}

func (e *FetchFailureError) Error() string {
	return fmt.Sprintf("fetcher failed to get the metadata: %s", bytes.TrimSpace(e.Stderr))
}

// FetchByISBN runs the fetcher for one ISBN. The temporary cover file is
// scoped to this call and removed on every exit path.
func (c *CalibreClient) FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	log.Printf("[DEBUG] calibre: fetching metadata for isbn %s", isbn)

	tmp, err := os.CreateTemp("", "bookloft-cover-*.jpg")
	if err != nil {
		return nil, &CoverArtError{Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, c.fetcher, "--isbn", isbn, "--opf", "--cover", tmpPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Printf("[WARN] calibre: fetcher exited non-zero for isbn %s", isbn)
			return nil, &FetchFailureError{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		}
		return nil, &LaunchError{Err: err}
	}

	cover, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, &CoverArtError{Err: err}
	}

	if !utf8.Valid(stdout.Bytes()) {
		return nil, &InvalidResponseError{}
	}

	return parseOPF(stdout.String(), cover)
}

// parseOPF extracts the common record from an OPF document. A document with
// no metadata element is a clean "nothing to report" (nil, nil), distinct
// from a parse failure.
func parseOPF(document string, coverArt []byte) (*BookMetadata, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		return nil, &InvalidXMLResponseError{Err: err}
	}

	root := doc.Root()
	if root == nil {
		return nil, &InvalidXMLResponseError{Err: fmt.Errorf("document has no root element")}
	}

	meta := findDescendant(root, "metadata")
	if meta == nil {
		return nil, nil
	}

	record := &BookMetadata{
		Title:     descendantText(meta, "title"),
		ISBN:      descendantTextWithAttr(meta, "identifier", "scheme", "ISBN"),
		Summary:   descendantText(meta, "description"),
		Publisher: descendantText(meta, "publisher"),
		Language:  descendantText(meta, "language"),
		GoogleID:  descendantTextWithAttr(meta, "identifier", "scheme", "GOOGLE"),
		AmazonID:  descendantTextWithAttr(meta, "identifier", "scheme", "AMAZON"),
	}

	for _, e := range descendantsWithAttr(meta, "creator", "role", "aut") {
		if text := strings.TrimSpace(e.Text()); text != "" {
			record.Authors = append(record.Authors, text)
		}
	}
	for _, e := range descendants(meta, "subject") {
		if text := strings.TrimSpace(e.Text()); text != "" {
			record.Tags = append(record.Tags, text)
		}
	}

	if dateEl := findDescendant(meta, "date"); dateEl != nil {
		if text := strings.TrimSpace(dateEl.Text()); text != "" {
			parsed, err := time.Parse(time.RFC3339, text)
			if err != nil {
				return nil, &InvalidDateError{Value: text, Err: err}
			}
			date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			record.Published = &date
		}
	}

	if len(coverArt) > 0 {
		encoded := base64.StdEncoding.EncodeToString(coverArt)
		record.CoverArtB64 = &encoded
	}

	return record, nil
}

// descendants collects every descendant element whose local tag matches,
// ignoring namespace prefixes (OPF mixes dc: and opf: spaces).
func descendants(e *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, child := range e.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
		out = append(out, descendants(child, tag)...)
	}
	return out
}

func findDescendant(e *etree.Element, tag string) *etree.Element {
	for _, child := range e.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func descendantsWithAttr(e *etree.Element, tag, key, value string) []*etree.Element {
	var out []*etree.Element
	for _, el := range descendants(e, tag) {
		if hasAttr(el, key, value) {
			out = append(out, el)
		}
	}
	return out
}

// hasAttr matches on the attribute's local key so that opf:role and a bare
// role attribute are treated alike.
func hasAttr(e *etree.Element, key, value string) bool {
	for _, a := range e.Attr {
		if a.Key == key && a.Value == value {
			return true
		}
	}
	return false
}

func descendantText(e *etree.Element, tag string) *string {
	el := findDescendant(e, tag)
	if el == nil {
		return nil
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		return nil
	}
	return &text
}

func descendantTextWithAttr(e *etree.Element, tag, key, value string) *string {
	els := descendantsWithAttr(e, tag, key, value)
	if len(els) == 0 {
		return nil
	}
	text := strings.TrimSpace(els[0].Text())
	if text == "" {
		return nil
	}
	return &text
}
