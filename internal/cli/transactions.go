package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"goldbridge/internal/app"
)

var (
	transactionsWallet string
	transactionsLimit  int
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Display the ledger journal for a wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if transactionsWallet == "" {
			return errors.New("--wallet is required")
		}

		opts := app.TransactionsOptions{
			WalletID: transactionsWallet,
			Limit:    transactionsLimit,
		}
		return getApp().Transactions(cmd.Context(), opts)
	},
}

func init() {
	transactionsCmd.Flags().StringVar(&transactionsWallet, "wallet", "", "Wallet id to inspect")
	transactionsCmd.Flags().IntVar(&transactionsLimit, "limit", 50, "Number of ledger entries to display")
}
