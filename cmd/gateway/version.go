package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gateway "github.com/paulgrammer/local-gateway"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "local-gateway %s\n", gateway.Version)
		},
	})
}
