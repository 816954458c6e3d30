package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"banktransfer/internal/domain"
)

// history: authenticate and list recent transactions.
func historyCmd() *cobra.Command {
	var (
		account string
		limit   int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions",
		Args:  usageArgs(cobra.NoArgs),
		RunE: withWire(func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return usage(fmt.Errorf("--limit must be positive, got %d", limit))
			}
			q := domain.HistoryQuery{Limit: limit, Account: domain.AccountID(account)}
			history, err := appCtx.Workflow.History(cmd.Context(), q, refresh)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(w, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(w, "no transactions")
				return nil
			}
			renderHistory(w, history)
			return nil
		}),
	}
	cmd.Flags().StringVar(&account, "account", "", "only transactions touching this account")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "maximum number of transactions")
	cmd.Flags().BoolVar(&refresh, "refresh-token", false, "fetch a new token even if one is held")
	return cmd
}
