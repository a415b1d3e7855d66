// Candidates command: lists cards that can be related to the card in context.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates [search]",
	Short: "List cards that can be related to the card in context",
	Long: `Candidates lists relatable cards, the way the add-relation popup
would: a pasted card URL resolves directly, anything else filters the
board's cards by name, most recently active first.`,
	Args: cobra.MaximumNArgs(1),
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

		search := ""
		if len(args) == 1 {
			search = args[0]
		}

		refs, err := engine.Candidates(cmd.Context(), cc, search)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(refs)
		}
		if len(refs) == 0 {
			fmt.Println("no matching cards")
			return nil
		}
		for _, ref := range refs {
			fmt.Printf("%s  %s  %s\n", ref.ShortLink, ref.ID, ref.Name)
		}
		return nil
	},
}
