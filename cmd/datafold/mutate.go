package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/datafold/pkg/executor"
	"github.com/cuemby/datafold/pkg/types"
)

var mutateCmd = &cobra.Command{
	Use:   "mutate",
	Short: "Create, update, or delete records on an Approved schema",
}

func init() {
	mutateCmd.AddCommand(mutateCreateCmd)
	mutateCmd.AddCommand(mutateUpdateCmd)
	mutateCmd.AddCommand(mutateDeleteCmd)

	for _, c := range []*cobra.Command{mutateCreateCmd, mutateUpdateCmd, mutateDeleteCmd} {
		c.Flags().String("schema", "", "Schema name to mutate")
		c.Flags().String("data", "", "JSON object of field=value data")
		c.Flags().String("filter", "", "JSON object of field=value filters")
		c.Flags().String("range-key", "", "Range key, for Range schemas")
		c.Flags().Int("trust-distance", 0, "Caller trust distance")
		c.Flags().String("public-key", "", "Caller public key id")
		_ = c.MarkFlagRequired("schema")
	}
}

var mutateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new record",
	RunE:  runMutation(types.MutationCreate),
}

var mutateUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update fields on records matching a filter",
	RunE:  runMutation(types.MutationUpdate),
}

var mutateDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Tombstone records matching a filter",
	RunE:  runMutation(types.MutationDelete),
}

func runMutation(kind types.MutationType) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		schemaName, _ := cmd.Flags().GetString("schema")
		dataRaw, _ := cmd.Flags().GetString("data")
		filterRaw, _ := cmd.Flags().GetString("filter")
		rangeKey, _ := cmd.Flags().GetString("range-key")

		data, err := decodeValueMap(dataRaw)
		if err != nil {
			return fmt.Errorf("invalid --data: %w", err)
		}
		filter, err := decodeValueMap(filterRaw)
		if err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}

		caller, err := callerFromFlags(cmd)
		if err != nil {
			return err
		}

		result, err := e.Executor().Mutation(executor.MutationRequest{
			Schema:       schemaName,
			MutationType: kind,
			Data:         data,
			Filter:       filter,
			RangeKey:     rangeKey,
		}, caller)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"success":        result.Success,
			"affected_count": result.AffectedCount,
		})
	}
}
