package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mondb-dev/x402-wp/internal/address"
)

var normalizeNetwork string

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeNetwork, "network", "n", "base-mainnet", "network the address belongs to")

	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <address>",
	Short: "print the canonical form of a wallet address",
	Args:  cobra.ExactArgs(1),
	RunE:  doNormalize,
}

func doNormalize(cmd *cobra.Command, args []string) error {
	norm, ok := address.Normalize(args[0], normalizeNetwork)
	if !ok {
		return fmt.Errorf("invalid %s address %q", address.FamilyOf(normalizeNetwork), args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), norm)
	return nil
}
