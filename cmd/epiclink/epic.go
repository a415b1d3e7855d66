// Epic commands: manage the EPIC relation from the task card's side.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var epicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Manage the EPIC the card in context belongs to",
}

var epicSetCmd = &cobra.Command{
	Use:   "set <card-url-or-id>",
	Short: "Relate the card in context to an EPIC",
	Long: `Set relates the card in context (the task) to the given EPIC card.
An existing EPIC relation is replaced.

Example:
  epiclink epic set --card c1 --board b1 --member m1 --org o1 https://trello.com/c/abc123`,
	Args: cobra.ExactArgs(1),
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

		parent, err := engine.ResolveCard(ctx, cc, args[0])
		if err != nil {
			return err
		}
		if err := engine.AddParent(ctx, cc, parent); err != nil {
			return err
		}
		fmt.Printf("card %s now belongs to EPIC %q\n", cc.CardID, parent.Name)
		return nil
	},
}

var epicRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Disconnect the card in context from its EPIC",
	Args:  cobra.NoArgs,
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

		if err := engine.RemoveParent(cmd.Context(), cc); err != nil {
			return err
		}
		fmt.Printf("card %s disconnected from its EPIC\n", cc.CardID)
		return nil
	},
}

func init() {
	epicCmd.AddCommand(epicSetCmd)
	epicCmd.AddCommand(epicRemoveCmd)
}
