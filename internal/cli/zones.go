package cli

import (
	"github.com/spf13/cobra"

	"goldbridge/internal/app"
)

var zonesAmount float64

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Display market zones and their stability adjustments",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ZonesOptions{
			Amount: zonesAmount,
		}
		return getApp().Zones(cmd.Context(), opts)
	},
}

func init() {
	zonesCmd.Flags().Float64Var(&zonesAmount, "amount", 1000, "Amount used to compute the sample adjustment")
}
