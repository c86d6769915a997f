// file: internal/metadata/metadata.go
// version: 1.2.0
// guid: 3f8a1c5e-9b2d-4e7a-8c1f-6d3b9a0e4f72

package metadata

import (
	"context"
	"fmt"
	"time"

	"bookloft/internal/metrics"
)

// Provider identifies one external metadata source. The set is closed and
// known at compile time; dispatch is a switch, not a plugin registry.
type Provider int

const (
	// ProviderCalibre shells out to calibre's fetch-ebook-metadata tool.
	ProviderCalibre Provider = iota
	// ProviderOpenLibrary chains requests against the Open Library API.
	ProviderOpenLibrary
)

// AllProviders returns every known provider in display order.
func AllProviders() []Provider {
	return []Provider{ProviderCalibre, ProviderOpenLibrary}
}

// Label returns the human-readable name for this provider.
func (p Provider) Label() string {
	switch p {
	case ProviderCalibre:
		return "Calibre"
	case ProviderOpenLibrary:
		return "Open Library"
	default:
		return "unknown"
	}
}

// Token returns the machine-stable serialized form used in config files,
// query strings, and form values.
func (p Provider) Token() string {
	switch p {
	case ProviderCalibre:
		return "calibre"
	case ProviderOpenLibrary:
		return "openlibrary"
	default:
		return "unknown"
	}
}

// ParseProvider maps a serialized token back to its Provider.
func ParseProvider(token string) (Provider, error) {
	for _, p := range AllProviders() {
		if p.Token() == token {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown metadata provider %q", token)
}

// SeriesRef is an optional series association on a fetched record.
type SeriesRef struct {
	Name   string
	Number int
}

// BookMetadata is the common record produced by every provider. Every field
// is independently absent-able: a provider fills in whatever it can determine
// and leaves the rest nil. The record is transient — built fresh per fetch,
// consumed immediately by the caller, never persisted in this shape.
type BookMetadata struct {
	ISBN           *string
	Title          *string
	Authors        []string
	Tags           []string
	Summary        *string
	Published      *time.Time
	Publisher      *string
	Language       *string
	GoogleID       *string
	AmazonID       *string
	LibraryThingID *string
	PageCount      *int
	Read           bool
	Owned          bool
	CoverArtB64    *string
	Series         *SeriesRef
}

// ProviderError wraps a provider-specific failure with the identity of the
// provider that produced it. Every error that crosses the facade boundary is
// wrapped this way.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s metadata provider: %v", e.Provider.Label(), e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FacadeConfig carries the per-provider configuration blocks. A nil block
// disables that provider.
type FacadeConfig struct {
	Calibre     *CalibreConfig
	OpenLibrary *OpenLibraryConfig
	// DefaultProvider is the token of the provider used when a caller does
	// not select one. Required when more than one provider is enabled.
	DefaultProvider string
}

// Facade is the single entry point for metadata acquisition. It dispatches
// an ISBN lookup to the selected provider and returns the normalized record.
// It holds no cross-call state: no cache, no retries, no in-flight
// deduplication.
type Facade struct {
	calibre     *CalibreClient
	openLibrary *OpenLibraryClient
	enabled     []Provider
	def         Provider
}

// NewFacade validates the per-provider configuration once, up front. A
// provider with no configuration block is never dispatched to.
func NewFacade(cfg FacadeConfig) (*Facade, error) {
	f := &Facade{}

	if cfg.Calibre != nil {
		client, err := NewCalibreClient(*cfg.Calibre)
		if err != nil {
			return nil, fmt.Errorf("calibre provider: %w", err)
		}
		f.calibre = client
		f.enabled = append(f.enabled, ProviderCalibre)
	}
	if cfg.OpenLibrary != nil {
		client, err := NewOpenLibraryClient(*cfg.OpenLibrary)
		if err != nil {
			return nil, fmt.Errorf("open library provider: %w", err)
		}
		f.openLibrary = client
		f.enabled = append(f.enabled, ProviderOpenLibrary)
	}

	if len(f.enabled) == 0 {
		return nil, fmt.Errorf("no metadata provider configured")
	}

	switch {
	case cfg.DefaultProvider != "":
		def, err := ParseProvider(cfg.DefaultProvider)
		if err != nil {
			return nil, err
		}
		if !f.isEnabled(def) {
			return nil, fmt.Errorf("default metadata provider %q is not configured", cfg.DefaultProvider)
		}
		f.def = def
	case len(f.enabled) == 1:
		f.def = f.enabled[0]
	default:
		return nil, fmt.Errorf("multiple metadata providers configured but no default_provider set")
	}

	return f, nil
}

// Providers returns the providers enabled by configuration.
func (f *Facade) Providers() []Provider {
	out := make([]Provider, len(f.enabled))
	copy(out, f.enabled)
	return out
}

// Default returns the provider used when the caller omits a selector.
func (f *Facade) Default() Provider {
	return f.def
}

func (f *Facade) isEnabled(p Provider) bool {
	for _, e := range f.enabled {
		if e == p {
			return true
		}
	}
	return false
}

// Resolve maps a request selector token to an enabled provider. An empty
// token selects the configured default.
func (f *Facade) Resolve(token string) (Provider, error) {
	if token == "" {
		return f.def, nil
	}
	p, err := ParseProvider(token)
	if err != nil {
		return 0, err
	}
	if !f.isEnabled(p) {
		return 0, fmt.Errorf("metadata provider %q is not configured", token)
	}
	return p, nil
}

// Fetch looks up an ISBN with the selected provider. The ISBN must already be
// stripped of separator characters. A nil record with a nil error means the
// provider completed cleanly and found nothing for this ISBN — callers must
// treat that as a first-class outcome, distinct from failure.
func (f *Facade) Fetch(ctx context.Context, isbn string, provider Provider) (*BookMetadata, error) {
	if !f.isEnabled(provider) {
		return nil, fmt.Errorf("metadata provider %q is not configured", provider.Token())
	}

	start := time.Now()
	var (
		record *BookMetadata
		err    error
	)
	switch provider {
	case ProviderCalibre:
		record, err = f.calibre.FetchByISBN(ctx, isbn)
	case ProviderOpenLibrary:
		record, err = f.openLibrary.FetchByISBN(ctx, isbn)
	default:
		return nil, fmt.Errorf("unknown metadata provider %d", provider)
	}
	metrics.ObserveFetch(provider.Token(), fetchOutcome(record, err), time.Since(start))

	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	return record, nil
}

func fetchOutcome(record *BookMetadata, err error) string {
	switch {
	case err != nil:
		return "error"
	case record == nil:
		return "not_found"
	default:
		return "found"
	}
}
