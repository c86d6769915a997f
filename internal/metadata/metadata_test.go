// file: internal/metadata/metadata_test.go
// version: 1.1.0
// guid: 4d8c2a6f-1e9b-4f3d-9a0c-7b5e8d2f6c14

package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTokensRoundTrip(t *testing.T) {
	for _, p := range AllProviders() {
		parsed, err := ParseProvider(p.Token())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestParseProviderUnknownToken(t *testing.T) {
	_, err := ParseProvider("goodreads")
	assert.Error(t, err)
}

func TestProviderLabels(t *testing.T) {
	assert.Equal(t, "Calibre", ProviderCalibre.Label())
	assert.Equal(t, "Open Library", ProviderOpenLibrary.Label())
	assert.Equal(t, "calibre", ProviderCalibre.Token())
	assert.Equal(t, "openlibrary", ProviderOpenLibrary.Token())
}

func TestNewFacadeRequiresAProvider(t *testing.T) {
	_, err := NewFacade(FacadeConfig{})
	assert.Error(t, err)
}

func TestNewFacadeSingleProviderIsDefault(t *testing.T) {
	f, err := NewFacade(FacadeConfig{
		OpenLibrary: &OpenLibraryConfig{Contact: "admin@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenLibrary, f.Default())
	assert.Equal(t, []Provider{ProviderOpenLibrary}, f.Providers())
}

func TestNewFacadeMultipleProvidersRequireDefault(t *testing.T) {
	cfg := FacadeConfig{
		Calibre:     &CalibreConfig{Fetcher: "/usr/bin/fetch-ebook-metadata"},
		OpenLibrary: &OpenLibraryConfig{Contact: "admin@example.com"},
	}
	_, err := NewFacade(cfg)
	assert.Error(t, err)

	cfg.DefaultProvider = "openlibrary"
	f, err := NewFacade(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenLibrary, f.Default())
	assert.Equal(t, []Provider{ProviderCalibre, ProviderOpenLibrary}, f.Providers())
}

func TestNewFacadeDefaultMustBeConfigured(t *testing.T) {
	_, err := NewFacade(FacadeConfig{
		Calibre:         &CalibreConfig{Fetcher: "/usr/bin/fetch-ebook-metadata"},
		DefaultProvider: "openlibrary",
	})
	assert.Error(t, err)
}

func TestFacadeResolve(t *testing.T) {
	f, err := NewFacade(FacadeConfig{
		Calibre: &CalibreConfig{Fetcher: "/usr/bin/fetch-ebook-metadata"},
	})
	require.NoError(t, err)

	p, err := f.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, ProviderCalibre, p)

	p, err = f.Resolve("calibre")
	require.NoError(t, err)
	assert.Equal(t, ProviderCalibre, p)

	_, err = f.Resolve("openlibrary")
	assert.Error(t, err, "resolving a provider without a config block must fail")

	_, err = f.Resolve("bogus")
	assert.Error(t, err)
}

func TestFacadeFetchRejectsUnconfiguredProvider(t *testing.T) {
	f, err := NewFacade(FacadeConfig{
		Calibre: &CalibreConfig{Fetcher: "/usr/bin/fetch-ebook-metadata"},
	})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "9781526626585", ProviderOpenLibrary)
	assert.Error(t, err)
}

func TestFacadeWrapsProviderErrors(t *testing.T) {
	fetcher := writeFetcherScript(t, "printf 'boom' >&2\nexit 2\n")
	f, err := NewFacade(FacadeConfig{Calibre: &CalibreConfig{Fetcher: fetcher}})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "9781526626585", ProviderCalibre)
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderCalibre, provErr.Provider)

	var failure *FetchFailureError
	assert.ErrorAs(t, err, &failure, "the underlying provider error stays reachable through Unwrap")
}

func TestFacadeCleanAbsencePassesThrough(t *testing.T) {
	fetcher := writeFetcherScript(t, "printf '<package><guide/></package>'\n")
	f, err := NewFacade(FacadeConfig{Calibre: &CalibreConfig{Fetcher: fetcher}})
	require.NoError(t, err)

	record, err := f.Fetch(context.Background(), "0000000000000", ProviderCalibre)
	require.NoError(t, err)
	assert.Nil(t, record)
}
