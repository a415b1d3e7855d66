// Version command for the epiclink CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/epiclink/pkg/epiclink"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the epiclink version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("epiclink", epiclink.Version)
	},
}
