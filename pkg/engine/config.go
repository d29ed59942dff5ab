package engine

import "os"

// Config holds the three environment inputs that influence correctness:
// where atoms/refs/schemas persist, where schema definitions are
// discovered from, and how verbose logging should be.
type Config struct {
	StoreDir  string
	SchemaDir string
	LogLevel  string
}

// ConfigFromEnv builds a Config from DATAFOLD_STORE_DIR, DATAFOLD_SCHEMA_DIR,
// and DATAFOLD_LOG_LEVEL, falling back to sane defaults for an unset value.
func ConfigFromEnv() Config {
	cfg := Config{
		StoreDir:  "./data",
		SchemaDir: "./schemas",
		LogLevel:  "info",
	}
	if v := os.Getenv("DATAFOLD_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("DATAFOLD_SCHEMA_DIR"); v != "" {
		cfg.SchemaDir = v
	}
	if v := os.Getenv("DATAFOLD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}
