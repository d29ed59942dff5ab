package reconciler

import (
	"sync"
	"time"

	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/schema"
	"github.com/rs/zerolog"
)

// interval is deliberately short: schema discovery is cheap (a directory
// scan plus in-memory lookups) so there is no need for a slower cycle here.
const interval = 10 * time.Second

// Reconciler periodically re-runs schema discovery against registry.
type Reconciler struct {
	registry  *schema.Registry
	schemaDir string
	logger    zerolog.Logger
	mu        sync.Mutex
	stopCh    chan struct{}
}

// New creates a Reconciler that calls registry.Discover(schemaDir) on
// every cycle once started.
func New(registry *schema.Registry, schemaDir string) *Reconciler {
	return &Reconciler{
		registry:  registry,
		schemaDir: schemaDir,
		logger:    log.WithComponent("reconciler"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop ends the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	if err := r.registry.Discover(r.schemaDir); err != nil {
		r.logger.Error().Err(err).Msg("reconciliation cycle failed")
	}
}
