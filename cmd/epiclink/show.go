// Show command: dumps the card's stored relationship records.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the card's stored relationship records",
	Long: `Show prints the stored parent and children records of the card in
context exactly as persisted, without any derivation. Intended for
debugging drifted or stuck relations.`,
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

		lines, err := engine.Debug(cmd.Context(), cc)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(lines)
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}
