package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/settle"
)

func init() {
	rootCmd.AddCommand(settleCmd)
	settleCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	settleCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	settleCmd.Flags().String("min", "", "Minimum entry amount")
}

var settleCmd = &cobra.Command{
	Use:   "settle [participant]",
	Short: "Show per-counterparty net balances",
	Long: `Settle computes net balances across shared expenses. Without an
argument it prints the summary for every counterparty with a non-zero
balance; with a participant name it prints that counterparty's
transaction-level breakdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := settleFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.close()

		if len(args) == 1 {
			return printDetail(cmd, c, args[0], filter)
		}
		return printSummary(cmd, c, filter)
	},
}

func settleFilterFromFlags(cmd *cobra.Command) (settle.Filter, error) {
	var f settle.Filter
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		t, err := domain.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		t, err := domain.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	if v, _ := cmd.Flags().GetString("min"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, fmt.Errorf("invalid --min %q", v)
		}
		f.MinAmount = &d
	}
	return f, nil
}

func printSummary(cmd *cobra.Command, c *core, filter settle.Filter) error {
	balances, err := c.calculator.Summary(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		fmt.Println("all settled up")
		return nil
	}
	fmt.Printf("%-20s %12s %12s %12s %6s\n", "PARTICIPANT", "OWES YOU", "YOU OWE", "NET", "TXNS")
	for _, b := range balances {
		fmt.Printf("%-20s %12s %12s %12s %6d\n",
			b.Participant, b.OwedToOwner.StringFixed(2), b.OwnerOwes.StringFixed(2),
			b.NetBalance.StringFixed(2), b.TransactionCount)
	}
	return nil
}

func printDetail(cmd *cobra.Command, c *core, participant string, filter settle.Filter) error {
	detail, err := c.calculator.Detail(cmd.Context(), participant, filter)
	if err != nil {
		return err
	}
	fmt.Printf("%s: net balance %s\n", detail.Participant, detail.NetBalance.StringFixed(2))
	for _, line := range detail.Transactions {
		fmt.Printf("  %s  %-30s %10s  their share %s, yours %s, paid by %s\n",
			line.Date.Format(time.DateOnly), line.Description, line.Amount.StringFixed(2),
			line.ParticipantShare.StringFixed(2), line.OwnerShare.StringFixed(2), line.PaidBy)
	}
	return nil
}
