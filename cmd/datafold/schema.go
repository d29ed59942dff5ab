package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/datafold/pkg/types"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and manage schema lifecycle state",
}

func init() {
	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaApproveCmd)
	schemaCmd.AddCommand(schemaBlockCmd)
	schemaCmd.AddCommand(schemaStateCmd)

	schemaListCmd.Flags().String("state", "", "Filter by state: available, approved, blocked")
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schema names, optionally filtered by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		var filter *types.SchemaState
		if v, _ := cmd.Flags().GetString("state"); v != "" {
			s := types.SchemaState(v)
			filter = &s
		}
		for _, name := range e.Registry().List(filter) {
			fmt.Println(name)
		}
		return nil
	},
}

var schemaApproveCmd = &cobra.Command{
	Use:   "approve <name>",
	Short: "Transition a schema to Approved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return e.Registry().Approve(args[0])
	},
}

var schemaBlockCmd = &cobra.Command{
	Use:   "block <name>",
	Short: "Transition a schema to Blocked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return e.Registry().Block(args[0])
	},
}

var schemaStateCmd = &cobra.Command{
	Use:   "state <name>",
	Short: "Print a schema's current lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		st, ok := e.Registry().StateOf(args[0])
		if !ok {
			return fmt.Errorf("schema %q not registered", args[0])
		}
		fmt.Println(st)
		return nil
	},
}
