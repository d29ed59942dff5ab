package main

import (
	"context"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run storage and consistency checks and print their results",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		results := e.Health(context.Background())
		out := make(map[string]interface{}, len(results))
		for checkType, r := range results {
			out[string(checkType)] = map[string]interface{}{
				"healthy":  r.Healthy,
				"message":  r.Message,
				"duration": r.Duration.String(),
			}
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
