// Badge command: renders the card's badges after a reconcile pass.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

var flagBadgeDetail bool

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Render the card's EPIC and task badges",
	Long: `Badge reconciles the card in context and prints its badges: task
progress when the card is an EPIC, the owning EPIC when it is a task.
--detail selects the card-detail variant.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := cardContext()
		if err != nil {
			return err
		}
		engine, store, err := newEngine()
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()

		// Badges render after the reconcile pass, same order as the board.
		if err := engine.Reconcile(ctx, cc); err != nil {
			return err
		}

		kind := types.BadgeFront
		if flagBadgeDetail {
			kind = types.BadgeDetail
		}

		parentBadge, err := engine.ParentBadge(ctx, cc, kind)
		if err != nil {
			return err
		}
		childBadge, err := engine.ChildBadge(ctx, cc, kind)
		if err != nil {
			return err
		}

		badges := make([]types.Badge, 0, 2)
		for _, badge := range []types.Badge{parentBadge, childBadge} {
			if badge != (types.Badge{}) {
				badges = append(badges, badge)
			}
		}

		if flagJSON {
			return printJSON(badges)
		}
		if len(badges) == 0 {
			fmt.Println("no badges")
			return nil
		}
		for _, badge := range badges {
			if badge.Title != "" {
				fmt.Printf("%s: %s\n", badge.Title, badge.Text)
			} else {
				fmt.Println(badge.Text)
			}
		}
		return nil
	},
}

func init() {
	badgeCmd.Flags().BoolVar(&flagBadgeDetail, "detail", false, "render the card-detail badge variant")
}
