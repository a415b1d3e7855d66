// Task commands: manage task relations from the EPIC card's side.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the tasks of the EPIC card in context",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <card-url-or-id>",
	Short: "Relate a task to the EPIC card in context",
	Long: `Add relates the given card as a task of the card in context. A card
that already belongs to a different EPIC is rejected; remove that relation
first.

Example:
  epiclink task add --card e1 --board b1 --member m1 --org o1 https://trello.com/c/def456`,
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

		child, err := engine.ResolveCard(ctx, cc, args[0])
		if err != nil {
			return err
		}
		if err := engine.AddChild(ctx, cc, child); err != nil {
			return err
		}
		fmt.Printf("card %q is now a task of %s\n", child.Name, cc.CardID)
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <short-link>",
	Short: "Disconnect one task from the EPIC card in context",
	Args:  cobra.ExactArgs(1),
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

		if err := engine.RemoveChild(cmd.Context(), cc, args[0]); err != nil {
			return err
		}
		fmt.Printf("task %s disconnected from %s\n", args[0], cc.CardID)
		return nil
	},
}

var taskClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Disconnect every task and delete the checklist",
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

		if err := engine.RemoveChildren(cmd.Context(), cc); err != nil {
			return err
		}
		fmt.Printf("all tasks disconnected from %s\n", cc.CardID)
		return nil
	},
}

func init() {
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskClearCmd)
}
