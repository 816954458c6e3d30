package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"banktransfer/internal/domain"
)

// accounts: list the accounts the server knows about.
func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: withWire(func(cmd *cobra.Command, _ []string) error {
			accounts, err := appCtx.Accounts.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderAccounts(cmd.OutOrStdout(), accounts)
		}),
	}
}

// balance <account>: show one account balance.
func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the balance of an account",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: withWire(func(cmd *cobra.Command, args []string) error {
			snap, err := appCtx.Accounts.Balance(cmd.Context(), domain.AccountID(args[0]))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(w, snap)
			}
			renderSnapshot(w, snap)
			return nil
		}),
	}
}

// validate <account>: check that an account exists.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <account>",
		Short: "Check that an account exists",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: withWire(func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			ok, err := appCtx.Accounts.Validate(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(w, map[string]any{"account_id": id, "valid": ok}); err != nil {
					return err
				}
			} else if ok {
				fmt.Fprintf(w, "%s is valid\n", id)
			} else {
				fmt.Fprintf(w, "%s is not valid\n", id)
			}
			if !ok {
				return reported(domain.NewError(domain.KindInvalidAccount, "account %s is not valid", id))
			}
			return nil
		}),
	}
}
