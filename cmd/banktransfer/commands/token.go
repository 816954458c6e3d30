package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"banktransfer/internal/domain"
)

// token: obtain a bearer token and confirm the server accepts it. The token
// itself is never printed.
func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Authenticate and verify the issued token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: withWire(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cred, err := appCtx.Tokens.Authenticate(ctx)
			if err != nil {
				return err
			}
			ok, err := appCtx.Tokens.Verify(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				err = writeJSON(w, map[string]any{
					"claim":      appCtx.Config.TokenClaim,
					"issued_at":  cred.IssuedAt,
					"expires_at": cred.ExpiresAt,
					"accepted":   ok,
				})
			} else {
				fmt.Fprintf(w, "token issued for claim %q, expires %s (in %s)\n",
					appCtx.Config.TokenClaim, cred.ExpiresAt.Format(time.RFC3339),
					cred.ExpiresAt.Sub(appCtx.Tokens.Now()).Round(time.Second))
				if ok {
					fmt.Fprintln(w, "server accepted the token")
				} else {
					fmt.Fprintln(w, "server rejected the token")
				}
			}
			if err != nil {
				return err
			}
			if !ok {
				return reported(domain.NewError(domain.KindAuthFailed, "server rejected the issued token"))
			}
			return nil
		}),
	}
}
