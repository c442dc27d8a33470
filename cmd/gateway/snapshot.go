package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	gateway "github.com/paulgrammer/local-gateway"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the last fetched body of each resource",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSnapshots()
		if err != nil {
			return err
		}
		defer store.Close()

		snaps, err := store.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RESOURCE\tMODEL\tFETCHED")
		for _, snap := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\n", snap.Resource, snap.Model, snap.FetchedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Print the stored body of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSnapshots()
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Get(args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(snap.Body)
		return err
	},
}

func openSnapshots() (*gateway.SnapshotStore, error) {
	cfg, err := gateway.ParseConfig(configArg)
	if err != nil {
		return nil, err
	}
	if cfg.SnapshotPath == "" {
		return nil, errors.New("snapshot_path is not configured")
	}
	return gateway.OpenSnapshotStore(cfg.SnapshotPath)
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd, snapshotShowCmd)
	rootCmd.AddCommand(snapshotCmd)
}
