// Package main provides the epiclink CLI: EPIC/task card linking against a
// Trello-style board product, driven from the terminal instead of the board
// panel.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "epiclink:", err)
		if isUserError(err) {
			os.Exit(exitUserError)
		}
		os.Exit(exitSysError)
	}
	os.Exit(exitSuccess)
}

// isUserError separates mistakes the user can fix from system failures.
func isUserError(err error) bool {
	return errors.Is(err, types.ErrNoRelation) ||
		errors.Is(err, types.ErrChildHasParent) ||
		errors.Is(err, types.ErrNotCard) ||
		errors.Is(err, types.ErrNotAuthorized)
}
