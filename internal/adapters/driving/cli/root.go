// Package cli implements the EmbedSync command-line interface using cobra.
// Commands are registered in init() and talk to the core services through
// package-level vars so tests can inject in-memory implementations.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/embedsync-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/embedsync-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/embedsync-cli/internal/adapters/driven/vectorindex/pinecone"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/embedsync-cli/internal/core/ports/driving"
	"github.com/custodia-labs/embedsync-cli/internal/core/services"
	"github.com/custodia-labs/embedsync-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by the commands. Wired in Execute, replaced by tests.
var (
	libraryService driving.LibraryService
	exportService  driving.ExportService
	configStore    driven.ConfigStore
)

// store is kept for shutdown.
var store *sqlite.Store

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "embedsync",
	Short: "Synchronise local embeddings with an external vector index",
	Long: `EmbedSync keeps a local library of documents, chunks and embeddings,
and exports embeddings to an external vector index in batches.
The local records are authoritative; the index is a projection that can
always be rebuilt.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging to stderr")
}

// Execute wires the production services and runs the root command.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}

	if err := initServices(); err != nil {
		return err
	}
	defer func() {
		if store != nil {
			_ = store.Close()
		}
	}()

	return rootCmd.Execute()
}

// initServices builds the production service graph: TOML config, SQLite
// record store, and the Pinecone index when configured. Without index
// configuration the library still works; only export and index commands
// fail, with a pointer at the missing config.
func initServices() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configStore = cfg

	s, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	store = s

	var index driven.VectorIndex
	host := cfg.GetString("pinecone.host")
	apiKey := cfg.GetString("pinecone.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("PINECONE_API_KEY")
	}
	if host != "" && apiKey != "" {
		index, err = pinecone.NewClient(pinecone.Config{
			Host:      host,
			APIKey:    apiKey,
			Namespace: cfg.GetString("pinecone.namespace"),
		})
		if err != nil {
			return fmt.Errorf("configuring vector index: %w", err)
		}
		logger.Debug("pinecone index configured: %s", host)
	} else {
		logger.Debug("no vector index configured; export commands unavailable")
	}

	libraryService = services.NewLibrary(
		s.DocumentStore(), s.ChunkStore(), s.EmbeddingStore(), index)
	exportService = services.NewExporter(
		s.DocumentStore(), s.ChunkStore(), s.EmbeddingStore(), index,
		exporterConfig(cfg))

	return nil
}

// exporterConfig reads export tuning from config, leaving zero values for
// the service defaults.
func exporterConfig(cfg driven.ConfigStore) services.ExporterConfig {
	return services.ExporterConfig{
		LeaseTTL:     time.Duration(cfg.GetInt("export.lease_ttl_seconds")) * time.Second,
		BatchTimeout: time.Duration(cfg.GetInt("export.batch_timeout_seconds")) * time.Second,
		MaxRetries:   cfg.GetInt("export.max_retries"),
	}
}
