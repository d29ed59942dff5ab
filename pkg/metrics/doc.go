/*
Package metrics provides Prometheus instrumentation for DataFold's storage
kernel: atom/ref counts and latencies, schema state gauges and transition
counters, policy gate decision and payment distributions, and executor
query/mutation latencies. Metrics are registered at package init against
the default Prometheus registry and exposed via Handler() for scraping.

A small HealthChecker (health.go) tracks liveness/readiness independently
of Prometheus: RegisterComponent/UpdateComponent record per-component
status ("kv", "atom", "schema"), and GetHealth/GetReadiness aggregate it
for a process supervisor. This observability surface is deliberately kept
separate from the query/mutation operations in pkg/executor — it reports
on the kernel, it never drives it.
*/
package metrics
