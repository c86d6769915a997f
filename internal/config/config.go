// file: internal/config/config.go
// version: 1.1.0
// guid: 2e7b9c4d-5f1a-4d8e-b3c6-9a0f2d5e8b37

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"bookloft/internal/metadata"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	ListenAddr string
	// AuthHeader is the trusted upstream header carrying the user name.
	AuthHeader string
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string
}

// ImagesConfig holds cover-image storage settings.
type ImagesConfig struct {
	Dir string
}

// CalibreConfig configures the local-tool metadata provider.
type CalibreConfig struct {
	Fetcher string
}

// OpenLibraryConfig configures the Open Library metadata provider.
type OpenLibraryConfig struct {
	Contact        string
	TimeoutSeconds int
}

// MetadataConfig groups the per-provider blocks. A provider is enabled when
// its block is present and, if a providers list is given, its token appears
// in that list.
type MetadataConfig struct {
	Providers       []string
	DefaultProvider string
	Calibre         CalibreConfig
	OpenLibrary     OpenLibraryConfig
}

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Images   ImagesConfig
	Metadata MetadataConfig
}

// Load reads configuration from viper (config file plus environment).
func Load() (*Config, error) {
	viper.SetDefault("server.listen_addr", ":8080")
	viper.SetDefault("server.auth_header", "Remote-User")
	viper.SetDefault("database.path", "bookloft.db")
	viper.SetDefault("images.dir", "covers")

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr: viper.GetString("server.listen_addr"),
			AuthHeader: viper.GetString("server.auth_header"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Images: ImagesConfig{
			Dir: viper.GetString("images.dir"),
		},
		Metadata: MetadataConfig{
			Providers:       viper.GetStringSlice("metadata.providers"),
			DefaultProvider: viper.GetString("metadata.default_provider"),
			Calibre: CalibreConfig{
				Fetcher: viper.GetString("metadata.calibre.fetcher"),
			},
			OpenLibrary: OpenLibraryConfig{
				Contact:        viper.GetString("metadata.openlibrary.contact"),
				TimeoutSeconds: viper.GetInt("metadata.openlibrary.timeout_seconds"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the application assumes. The
// per-provider blocks are validated here, once at startup — a provider whose
// block is absent is never dispatched to later.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Server.AuthHeader == "" {
		return fmt.Errorf("server.auth_header must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Images.Dir == "" {
		return fmt.Errorf("images.dir must not be empty")
	}

	for _, token := range c.Metadata.Providers {
		p, err := metadata.ParseProvider(token)
		if err != nil {
			return fmt.Errorf("metadata.providers: %w", err)
		}
		if !c.providerHasBlock(p) {
			return fmt.Errorf("metadata provider %q is listed but has no configuration block", token)
		}
	}
	return nil
}

func (c *Config) providerHasBlock(p metadata.Provider) bool {
	switch p {
	case metadata.ProviderCalibre:
		return c.Metadata.Calibre.Fetcher != ""
	case metadata.ProviderOpenLibrary:
		return c.Metadata.OpenLibrary.Contact != ""
	default:
		return false
	}
}

func (c *Config) providerEnabled(p metadata.Provider) bool {
	if !c.providerHasBlock(p) {
		return false
	}
	if len(c.Metadata.Providers) == 0 {
		return true
	}
	for _, token := range c.Metadata.Providers {
		if token == p.Token() {
			return true
		}
	}
	return false
}

// FacadeConfig translates the configuration into the metadata facade's
// per-provider blocks.
func (c *Config) FacadeConfig() metadata.FacadeConfig {
	fc := metadata.FacadeConfig{
		DefaultProvider: c.Metadata.DefaultProvider,
	}
	if c.providerEnabled(metadata.ProviderCalibre) {
		fc.Calibre = &metadata.CalibreConfig{
			Fetcher: c.Metadata.Calibre.Fetcher,
		}
	}
	if c.providerEnabled(metadata.ProviderOpenLibrary) {
		fc.OpenLibrary = &metadata.OpenLibraryConfig{
			Contact: c.Metadata.OpenLibrary.Contact,
			Timeout: time.Duration(c.Metadata.OpenLibrary.TimeoutSeconds) * time.Second,
		}
	}
	return fc
}
