// Reconcile command: the render-path pass, run explicitly.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Drain pending sync entries and repair the card's records",
	Long: `Reconcile runs the pass a card render would: copy detection, queue
drain for the card in context, staleness repair. Safe to run repeatedly;
drains converge on the same state.`,
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

		if err := engine.Reconcile(cmd.Context(), cc); err != nil {
			return err
		}
		fmt.Printf("card %s reconciled\n", cc.CardID)
		return nil
	},
}
