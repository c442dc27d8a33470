package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	gateway "github.com/paulgrammer/local-gateway"
)

var fastMode bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings(fastMode)
		if err != nil {
			return err
		}
		if settings.RunMode != "" && settings.RunMode != "headless" {
			logger.Warn("Only headless run mode is supported", "run_mode", settings.RunMode)
		}

		gw, cleanup, err := newGateway(settings)
		if err != nil {
			return err
		}
		defer cleanup()

		srv, err := gateway.NewServer(settings, gw, gateway.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(ctx); err != nil {
			return err
		}
		srv.Wait()

		logger.Info("Gateway stopped")
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&fastMode, "fast", false, "serve the working directory on port 9000 without a config file")
	rootCmd.AddCommand(startCmd)
}
