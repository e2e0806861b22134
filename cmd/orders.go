package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/BondSpread/iol-arb/internal/models"
	"github.com/BondSpread/iol-arb/pkg/formatters"
)

func init() {
	ordersCmd.Flags().Int("limit", 0, "Show only the N most recent entries (0 = all)")

	orderCmd.Flags().String("pair", "", "pair ID the order belongs to")
	orderCmd.Flags().String("settlement", "t1", "settlement term (t0, t1, t2)")
	orderCmd.Flags().Bool("live", false, "place a real order instead of a sandbox one")

	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(orderCmd)
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Show the order log, newest first",
	RunE:  runOrders,
}

var orderCmd = &cobra.Command{
	Use:   "order [buy|sell] [symbol] [quantity] [price]",
	Short: "Place a limit order on one bond leg",
	Long: `Places a limit order through IOL. Orders run in sandbox mode by
default: they are validated and logged but never sent. Pass --live to
place a real order; you will be asked to confirm.`,
	Args: cobra.ExactArgs(4),
	RunE: runOrder,
}

func runOrders(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	entries := orderSvc.Log(limit)
	fmt.Printf("🧾 Order log (%d entries)\n", len(entries))
	fmt.Println(formatters.FormatOrderLogTable(entries))
	return nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	side := models.OrderSide(args[0])
	symbol := args[1]

	var quantity int64
	if _, err := fmt.Sscanf(args[2], "%d", &quantity); err != nil {
		return fmt.Errorf("invalid quantity %q: %w", args[2], err)
	}
	price, err := decimal.NewFromString(args[3])
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", args[3], err)
	}

	pairID, _ := cmd.Flags().GetString("pair")
	settlement, _ := cmd.Flags().GetString("settlement")
	live, _ := cmd.Flags().GetBool("live")

	if live {
		if err := confirmLive(); err != nil {
			return err
		}
	}

	req := models.OrderRequest{
		PairID:     pairID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Settlement: settlement,
		Sandbox:    !live,
	}

	resp, err := orderSvc.Execute(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("order failed: %w", err)
	}

	if resp.Sandbox {
		fmt.Printf("🧪 %s\n", resp.Message)
	} else {
		fmt.Printf("✅ %s\n", resp.Message)
	}
	return nil
}
