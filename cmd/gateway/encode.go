package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gateway "github.com/paulgrammer/local-gateway"
	"github.com/paulgrammer/local-gateway/cryptea"
)

var (
	sourceArg string
	keyArg    string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a credential value for the credentials table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := cryptea.Encode(sourceArg, keyArg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	encodeCmd.Flags().StringVarP(&sourceArg, "source", "s", "", "plain text to encode")
	encodeCmd.Flags().StringVarP(&keyArg, "key", "k", gateway.DefaultKey, "cipher key")
	_ = encodeCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(encodeCmd)
}
