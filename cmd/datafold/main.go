package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/datafold/pkg/engine"
	"github.com/cuemby/datafold/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "datafold",
	Short:   "DataFold - schema-governed, content-addressed atomic storage",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("datafold version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("store-dir", "", "Store directory (defaults to DATAFOLD_STORE_DIR or ./data)")
	rootCmd.PersistentFlags().String("schema-dir", "", "Schema discovery directory (defaults to DATAFOLD_SCHEMA_DIR or ./schemas)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (defaults to DATAFOLD_LOG_LEVEL or info)")

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(mutateCmd)
}

// openEngine builds a Config from the environment, overridden by any
// persistent flag the caller set, then constructs and returns an Engine.
// Callers are responsible for calling Close.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg := engine.ConfigFromEnv()
	if v, _ := cmd.Flags().GetString("store-dir"); v != "" {
		cfg.StoreDir = v
	}
	if v, _ := cmd.Flags().GetString("schema-dir"); v != "" {
		cfg.SchemaDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	e, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	log.WithComponent("cli").Debug().Str("store_dir", cfg.StoreDir).Str("schema_dir", cfg.SchemaDir).Msg("engine opened")
	return e, nil
}
