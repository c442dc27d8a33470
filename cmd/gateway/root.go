package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	gateway "github.com/paulgrammer/local-gateway"
)

var (
	configArg string
	debugMode bool
	logger    = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:          "gateway",
	Short:        "gateway serves local files and proxies configured remote resources.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configArg, "config", "gateway.toml", "config file path (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "enable debug logging")
	cobra.OnInitialize(initLogger)
}

func initLogger() {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// loadSettings reads the configuration and validates it. Dropped entries are
// logged but do not fail.
func loadSettings(fast bool) (*gateway.Settings, error) {
	var (
		cfg *gateway.Config
		err error
	)
	if fast {
		cfg, err = gateway.FastConfig()
	} else {
		cfg, err = gateway.ParseConfig(configArg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.StartIn != "" {
		if err := os.Chdir(cfg.StartIn); err != nil {
			return nil, fmt.Errorf("failed to change to start_in directory '%s': %w", cfg.StartIn, err)
		}
		logger.Info("Changed working directory", "dir", cfg.StartIn)
	}

	settings, err := gateway.NewSettings(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if settings.Report != nil {
		logger.Warn("Some configuration entries were dropped", "report", settings.Report)
	}
	return settings, nil
}

// newGateway builds the fetch gateway for settings. The returned cleanup
// drains background writes and closes the snapshot store.
func newGateway(settings *gateway.Settings) (*gateway.Gateway, func(), error) {
	clientConfig := gateway.DefaultClientConfig()
	clientConfig.Timeout = settings.RequestTimeout

	opts := []gateway.GatewayOption{
		gateway.WithHTTPClient(gateway.NewHTTPClient(clientConfig)),
		gateway.WithUserAgent(settings.UserAgent),
		gateway.WithGatewayLogger(logger),
	}

	var store *gateway.SnapshotStore
	if settings.SnapshotPath != "" {
		s, err := gateway.OpenSnapshotStore(settings.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		store = s
		opts = append(opts, gateway.WithRecorder(store))
	}

	gw := gateway.NewGateway(settings.Resources, opts...)
	cleanup := func() {
		if err := gw.Close(); err != nil {
			logger.Warn("Failed to close gateway", "error", err)
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close snapshot store", "error", err)
			}
		}
	}
	return gw, cleanup, nil
}
