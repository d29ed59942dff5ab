package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
)

// serveCmd starts an operator-facing sidecar exposing Prometheus metrics
// and liveness/readiness probes. This is deliberately separate from the
// kernel's own data plane: DataFold has no embedded HTTP/TCP request
// surface for query/mutation (that stays out of scope), but an ops
// sidecar for scraping and orchestrator health checks is its own
// long-lived ambient concern.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metrics/health HTTP sidecar (does not serve query/mutation traffic)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		addr, _ := cmd.Flags().GetString("addr")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				e.Health(context.Background())
			}
		}()

		log.WithComponent("cli").Info().Str("addr", addr).Msg("serving metrics and health endpoints")
		srv := &http.Server{Addr: addr, Handler: mux}
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":9090", "Listen address for the metrics/health sidecar")
	rootCmd.AddCommand(serveCmd)
}
