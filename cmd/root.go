// file: cmd/root.go
// version: 1.3.0
// guid: 8c2d6f0a-4e7b-4a9c-b1d5-3f8e0c6a2d79

package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bookloft/internal/config"
	"bookloft/internal/database"
	"bookloft/internal/metadata"
	"bookloft/internal/server"
)

var cfgFile string
var fetchProvider string
var coverOut string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookloft",
	Short: "Catalog your books and track series",
	Long: `Bookloft is a personal book-cataloging web application. It enriches
entries with metadata fetched from Calibre's fetch-ebook-metadata tool or
Open Library, organizes books into series, and reports missing volumes.`,
}

// serveCmd runs the web application.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := database.InitializeStore(cfg.Database.Path); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.CloseStore()

		facade, err := metadata.NewFacade(cfg.FacadeConfig())
		if err != nil {
			return fmt.Errorf("failed to build metadata facade: %w", err)
		}

		srv, err := server.NewServer(cfg, database.GlobalStore, facade)
		if err != nil {
			return fmt.Errorf("failed to build server: %w", err)
		}
		return srv.Start()
	},
}

// fetchMetadataCmd queries a provider from the command line, for trying out
// provider configuration without going through the web UI.
var fetchMetadataCmd = &cobra.Command{
	Use:   "fetch-metadata <isbn>",
	Short: "Fetch book metadata for an ISBN and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		facade, err := metadata.NewFacade(cfg.FacadeConfig())
		if err != nil {
			return fmt.Errorf("failed to build metadata facade: %w", err)
		}
		provider, err := facade.Resolve(fetchProvider)
		if err != nil {
			return err
		}

		record, err := facade.Fetch(context.Background(), args[0], provider)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		if record == nil {
			fmt.Printf("%s has no entry for ISBN %s\n", provider.Label(), args[0])
			return nil
		}

		if coverOut != "" && record.CoverArtB64 != nil {
			raw, err := base64.StdEncoding.DecodeString(*record.CoverArtB64)
			if err != nil {
				return fmt.Errorf("failed to decode cover art: %w", err)
			}
			if err := os.WriteFile(coverOut, raw, 0o644); err != nil {
				return fmt.Errorf("failed to write cover art: %w", err)
			}
			fmt.Printf("Cover art written to %s\n", coverOut)
		}
		record.CoverArtB64 = nil

		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./bookloft.yaml or $HOME/bookloft.yaml)")
	fetchMetadataCmd.Flags().StringVar(&fetchProvider, "provider", "", "metadata provider token (default from configuration)")
	fetchMetadataCmd.Flags().StringVar(&coverOut, "cover-out", "", "write fetched cover art to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchMetadataCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("bookloft")
	}

	viper.SetEnvPrefix("BOOKLOFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
