package metrics

import (
	"time"
)

// SchemaSource is the minimal view of the Schema Registry the collector
// needs. It is defined here (rather than importing pkg/schema) so this
// package stays a leaf: pkg/schema and pkg/atom import pkg/metrics to
// instrument their own operations, so the dependency cannot run the other
// way.
type SchemaSource interface {
	CountByState() map[string]int
}

// AtomSource is the minimal view of the Atom Manager the collector needs.
type AtomSource interface {
	CountAtoms() int
	CountRefs() int
}

// Collector periodically samples the registry and atom manager into the
// gauge metrics in metrics.go, the way a Prometheus exporter samples
// slowly-changing aggregate state instead of updating gauges inline on
// every operation.
type Collector struct {
	schemas SchemaSource
	atoms   AtomSource
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(schemas SchemaSource, atoms AtomSource) *Collector {
	return &Collector{
		schemas: schemas,
		atoms:   atoms,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSchemaMetrics()
	c.collectAtomMetrics()
}

func (c *Collector) collectSchemaMetrics() {
	if c.schemas == nil {
		return
	}
	for state, count := range c.schemas.CountByState() {
		SchemasTotal.WithLabelValues(state).Set(float64(count))
	}
}

func (c *Collector) collectAtomMetrics() {
	if c.atoms == nil {
		return
	}
	AtomsTotal.Set(float64(c.atoms.CountAtoms()))
	RefsTotal.Set(float64(c.atoms.CountRefs()))
}
