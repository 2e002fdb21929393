// Package cli wires the sync core behind a small cobra command tree used
// for probing, inspection and queue management outside the browser app.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arbor-labs/arborsync/internal/adapters/driven/config/file"
	"github.com/arbor-labs/arborsync/internal/adapters/driven/notion"
	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
	"github.com/arbor-labs/arborsync/internal/core/ports/driving"
	"github.com/arbor-labs/arborsync/internal/core/services"
	"github.com/arbor-labs/arborsync/internal/logger"
)

const version = "0.3.0"

var (
	cfgFile     string
	verbose     bool
	watchConfig bool

	cfg     file.Config
	records driving.Records
	client  *notion.Client
	cache   *services.RecordCache
	svc     *services.RecordService
	queue   *services.OfflineQueue
	status  *services.StatusBroadcaster
)

var rootCmd = &cobra.Command{
	Use:   "arborsync",
	Short: "Sync client for the Arbor diagram workspace",
	Long: `arborsync talks to the Notion-backed Arbor workspace through its
credential-holding proxy: pull record collections, probe reachability and
manage the offline write queue.`,
	SilenceUsage:      true,
	PersistentPreRunE: initCore,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.arborsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&watchConfig, "watch-config", false, "reload tunables when the config file changes")
}

// initCore loads configuration and builds the service graph. The version
// command works without any configuration at all.
func initCore(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".arborsync", "config.toml")
	}

	var err error
	cfg, err = file.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetVerbose(verbose || cfg.Verbose)

	route := notion.RouteDirect
	if cfg.Transport.Mode == "envelope" {
		route = notion.RouteEnvelope
	}
	client = notion.NewClient(notion.ClientOptions{
		BaseURL:           cfg.Transport.BaseURL,
		Route:             route,
		Retries:           cfg.Transport.Retries,
		RetryDelay:        time.Duration(cfg.Transport.RetryDelay),
		Timeout:           time.Duration(cfg.Transport.Timeout),
		RequestsPerSecond: cfg.Transport.RequestsPerSecond,
	})

	clock := driven.SystemClock{}
	status = services.NewStatusBroadcaster(time.Duration(cfg.Sync.RevertDelay), cfg.Sync.StatusSignal)
	queue = services.NewOfflineQueue(client, status, clock, cfg.Sync.OfflineQueue)
	cache = services.NewRecordCache(clock, time.Duration(cfg.Cache.TTL))
	svc = services.NewRecordService(services.RecordServiceOptions{
		Queue: queue,
		Cache: cache,
		Clock: clock,
		Databases: services.Databases{
			Nodes:      cfg.Databases.Nodes,
			Paths:      cfg.Databases.Paths,
			NodePaths:  cfg.Databases.NodePaths,
			Categories: cfg.Databases.Categories,
		},
		ValidateCategoryCycles: cfg.Sync.ValidateCategoryCycles,
	})
	records = svc

	if watchConfig {
		go func() {
			if err := file.Watch(cmd.Context(), path, applyReload); err != nil {
				logger.Warn("config watcher: %v", err)
			}
		}()
	}
	return nil
}

// applyReload pushes a freshly loaded config into the running tunables.
// Routing mode and base URL are fixed for the process lifetime; changing
// those needs a restart.
func applyReload(c file.Config) {
	cfg = c
	logger.SetVerbose(verbose || c.Verbose)
	client.SetRetryPolicy(c.Transport.Retries, time.Duration(c.Transport.RetryDelay), time.Duration(c.Transport.Timeout))
	client.SetRate(c.Transport.RequestsPerSecond)
	cache.SetTTL(time.Duration(c.Cache.TTL))
	queue.SetEnabled(c.Sync.OfflineQueue)
	status.SetEnabled(c.Sync.StatusSignal)
	svc.SetValidateCategoryCycles(c.Sync.ValidateCategoryCycles)
}
