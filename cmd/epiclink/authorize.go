// Authorize command: stores or removes the member API token.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagAuthStatus bool
	flagAuthRemove bool
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize [token]",
	Short: "Store the acting member's API token",
	Long: `Authorize stores the API token for the acting member, privately in the
organization scope. All other commands read it from there.

Example:
  epiclink authorize --member m1 --org o1 <token>
  epiclink authorize --member m1 --org o1 --status
  epiclink authorize --member m1 --org o1 --remove`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := memberContext()
		if err != nil {
			return err
		}
		engine, store, err := newEngine()
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()

		switch {
		case flagAuthStatus:
			authorized := engine.IsAuthorized(ctx, cc)
			if flagJSON {
				return printJSON(map[string]bool{"authorized": authorized})
			}
			fmt.Printf("authorized: %t\n", authorized)
			return nil
		case flagAuthRemove:
			if err := engine.Deauthorize(ctx, cc); err != nil {
				return err
			}
			fmt.Println("token removed")
			return nil
		default:
			if len(args) != 1 {
				return fmt.Errorf("token argument required")
			}
			if err := engine.Authorize(ctx, cc, args[0]); err != nil {
				return err
			}
			fmt.Println("token stored")
			return nil
		}
	},
}

func init() {
	authorizeCmd.Flags().BoolVar(&flagAuthStatus, "status", false, "report whether a token is stored")
	authorizeCmd.Flags().BoolVar(&flagAuthRemove, "remove", false, "remove the stored token")
}
