package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/datafold/pkg/executor"
	"github.com/cuemby/datafold/pkg/policy"
	"github.com/cuemby/datafold/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a read against an Approved schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		schemaName, _ := cmd.Flags().GetString("schema")
		fieldsRaw, _ := cmd.Flags().GetString("fields")
		filterRaw, _ := cmd.Flags().GetString("filter")
		rangeKey, _ := cmd.Flags().GetString("range-key")

		var fields []string
		if fieldsRaw != "" {
			fields = strings.Split(fieldsRaw, ",")
		}

		filter, err := decodeValueMap(filterRaw)
		if err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}

		caller, err := callerFromFlags(cmd)
		if err != nil {
			return err
		}

		result, err := e.Executor().Query(executor.QueryRequest{
			Schema:   schemaName,
			Fields:   fields,
			Filter:   filter,
			RangeKey: rangeKey,
		}, caller)
		if err != nil {
			return err
		}
		return printJSON(queryResultToJSON(result))
	},
}

func init() {
	queryCmd.Flags().String("schema", "", "Schema name to query")
	queryCmd.Flags().String("fields", "", "Comma-separated field names to read")
	queryCmd.Flags().String("filter", "", "JSON object of field=value filters")
	queryCmd.Flags().String("range-key", "", "Range key, for Range schemas")
	queryCmd.Flags().Int("trust-distance", 0, "Caller trust distance")
	queryCmd.Flags().String("public-key", "", "Caller public key id")
	_ = queryCmd.MarkFlagRequired("schema")
}

func callerFromFlags(cmd *cobra.Command) (policy.Caller, error) {
	dist, _ := cmd.Flags().GetInt("trust-distance")
	key, _ := cmd.Flags().GetString("public-key")
	return policy.Caller{TrustDistance: dist, PublicKeyID: key}, nil
}

func decodeValueMap(raw string) (map[string]types.Value, error) {
	if raw == "" {
		return nil, nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, err
	}
	out := make(map[string]types.Value, len(generic))
	for k, v := range generic {
		out[k] = types.FromInterface(v)
	}
	return out, nil
}

func queryResultToJSON(r executor.QueryResult) interface{} {
	docs := make([]map[string]interface{}, 0, len(r.Results))
	for _, rec := range r.Results {
		doc := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			doc[k] = v.ToInterface()
		}
		docs = append(docs, doc)
	}
	return map[string]interface{}{"count": r.Count, "results": docs}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
