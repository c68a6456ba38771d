// studysync is an offline-first sync client for study data.
//
// It keeps performance records, study goals, achievements, and open
// questions in a local SQLite database and reconciles them with a cloud
// store, either on demand or on a schedule via the daemon.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lernio/studysync/internal/config"
	"github.com/lernio/studysync/internal/remote"
	"github.com/lernio/studysync/internal/store"
	"github.com/lernio/studysync/internal/sync"
)

var (
	configPath string
	ownerFlag  string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "Offline-first sync for study data",
	Long: `studysync keeps your study data available offline and reconciles it
with the cloud when connectivity allows.

Local data lives in a SQLite database. Records created offline upload on
the next sync; records created on other devices download. Goal completion
follows the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner identity (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log internal activity to stderr")
}

// newCLILogger returns the logger for one-shot commands. Internal logs are
// discarded unless --verbose, so command output stays clean.
func newCLILogger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "[studysync] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// owner returns the effective owner identity for this invocation.
func owner() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	return cfg.Owner
}

// openLocal opens and migrates the local database.
func openLocal(logger *log.Logger) (*store.Store, error) {
	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(rootCmd.Context()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openRemote builds the configured cloud store. The returned closer is
// non-nil for stores holding connections.
func openRemote(logger *log.Logger) (remote.Store, func() error, error) {
	switch cfg.Remote.Kind {
	case config.RemoteTurso:
		ts, err := remote.OpenTurso(cfg.Remote.DatabaseURL, cfg.Remote.AuthToken, logger)
		if err != nil {
			return nil, nil, err
		}
		return ts, ts.Close, nil
	default:
		client := remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Logger:  logger,
		})
		return client, nil, nil
	}
}

// newEngine wires an engine over freshly opened stores. The returned
// cleanup closes both.
func newEngine(logger *log.Logger) (*sync.Engine, func(), error) {
	local, err := openLocal(logger)
	if err != nil {
		return nil, nil, err
	}
	rs, closeRemote, err := openRemote(logger)
	if err != nil {
		local.Close()
		return nil, nil, err
	}

	engine := sync.New(local, rs, sync.Config{
		Owner:      owner(),
		FetchLimit: cfg.Sync.FetchLimit,
		Logger:     logger,
	})

	cleanup := func() {
		if closeRemote != nil {
			if err := closeRemote(); err != nil {
				logger.Printf("Warning: failed to close cloud store: %v", err)
			}
		}
		if err := local.Close(); err != nil {
			logger.Printf("Warning: failed to close local store: %v", err)
		}
	}
	return engine, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
