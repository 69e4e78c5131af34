package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mondb-dev/x402-wp/internal/amount"
)

var (
	convertDecimals uint
	convertToHuman  bool
	convertPlaces   int32
)

func init() {
	convertCmd.Flags().UintVarP(&convertDecimals, "decimals", "d", 6, "token decimals")
	convertCmd.Flags().BoolVarP(&convertToHuman, "human", "", false, "convert atomic units to a decimal amount")
	convertCmd.Flags().Int32VarP(&convertPlaces, "places", "", 0, "pad decimal output to this many places")

	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert <amount>",
	Short: "convert between decimal amounts and atomic units",
	Args:  cobra.ExactArgs(1),
	RunE:  doConvert,
}

func doConvert(cmd *cobra.Command, args []string) error {
	if convertToHuman {
		if convertDecimals > amount.MaxDecimals {
			return fmt.Errorf("%w: %d", amount.ErrDecimalsOutOfRange, convertDecimals)
		}
		atomic, err := amount.NormalizeAtomic(args[0])
		if err != nil {
			return err
		}
		out := amount.ToDecimal(atomic, convertDecimals)
		if convertPlaces > 0 {
			out = amount.Display(atomic, convertDecimals, convertPlaces)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	atomic, err := amount.ToAtomic(args[0], convertDecimals)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), atomic)
	return nil
}
