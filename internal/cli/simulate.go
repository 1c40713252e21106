package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"goldbridge/internal/app"
)

var (
	simulateKind   string
	simulateAmount float64
	simulateZone   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "模拟一次完整的桥接操作 (内存 Provider)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAmount <= 0 {
			return errors.New("--amount 必须大于 0")
		}

		opts := app.SimulateOptions{
			Kind:   simulateKind,
			Amount: simulateAmount,
			ZoneID: simulateZone,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", "lock", "操作类型 (lock/mint/burn/unlock/fiat_to_crypto/crypto_to_fiat/crypto_to_crypto/contract_execution)")
	simulateCmd.Flags().Float64Var(&simulateAmount, "amount", 0, "桥接金额")
	simulateCmd.Flags().StringVar(&simulateZone, "zone", "", "市场区域 id (留空使用全局模式)")
}
