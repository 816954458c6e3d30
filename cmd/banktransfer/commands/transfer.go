package commands

import (
	"github.com/spf13/cobra"

	"banktransfer/internal/domain"
)

// transfer --from A --to B --amount N: run the transfer workflow.
func transferCmd() *cobra.Command {
	var (
		from, to, amount string
		opts             domain.Options
		historyAccount   string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds between two accounts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: withWire(func(cmd *cobra.Command, _ []string) error {
			amt, err := domain.ParseAmount(amount)
			if err != nil {
				return usage(err)
			}
			req, err := domain.NewTransferRequest(from, to, amt)
			if err != nil {
				return usage(err)
			}
			opts.HistoryAccount = domain.AccountID(historyAccount)

			out := appCtx.Workflow.Execute(cmd.Context(), req, opts)
			if err := renderOutcome(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return reported(out.Err())
		}),
	}

	f := cmd.Flags()
	f.StringVar(&from, "from", "", "source account (required)")
	f.StringVar(&to, "to", "", "destination account (required)")
	f.StringVar(&amount, "amount", "", "amount to transfer, at most two decimal places (required)")
	f.BoolVar(&opts.Authenticate, "auth", false, "obtain a bearer token before transferring")
	f.BoolVar(&opts.ForceRefresh, "refresh-token", false, "fetch a new token even if one is held")
	f.BoolVar(&opts.Validate, "validate", false, "check both accounts exist first")
	f.BoolVar(&opts.CheckBalance, "check-balance", false, "check the source balance covers the amount")
	f.BoolVar(&opts.History, "history", false, "show recent transactions afterwards (needs --auth)")
	f.IntVar(&opts.HistoryLimit, "history-limit", domain.DefaultHistoryLimit, "number of transactions to show")
	f.StringVar(&historyAccount, "history-account", "", "limit history to one account")
	return cmd
}
