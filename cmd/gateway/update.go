package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const updateResource = "update"

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the update resource once and write its file_target",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings(false)
		if err != nil {
			return err
		}

		res, ok := settings.Resources[updateResource]
		if !ok {
			return fmt.Errorf("no %q resource is configured", updateResource)
		}
		if res.WriteTarget() == "" {
			logger.Warn("Update resource has no file_target, result is not persisted")
		}

		gw, cleanup, err := newGateway(settings)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := gw.Fetch(cmd.Context(), res, nil, nil)
		if err != nil {
			return err
		}

		logger.Info("Update fetched", "bytes", len(result.Data), "model", result.Model, "target", res.WriteTarget())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
