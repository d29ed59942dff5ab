package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/datafold/pkg/atom"
	"github.com/cuemby/datafold/pkg/events"
	"github.com/cuemby/datafold/pkg/health"
	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/policy"
	"github.com/cuemby/datafold/pkg/reconciler"
	"github.com/cuemby/datafold/pkg/schema"

	"github.com/cuemby/datafold/pkg/executor"
)

// Engine is a single DataFold node: one KV backend fronted by the Schema
// Registry, Atom Manager, and Policy Gate, with Query/Mutation exposed
// through an Executor. It holds no domain state beyond those components.
type Engine struct {
	cfg Config

	store    kv.Backend
	registry *schema.Registry
	atoms    *atom.Manager
	gate     *policy.Gate
	executor *executor.Executor

	bus        *events.Broker
	collector  *metrics.Collector
	reconciler *reconciler.Reconciler
	checkers   []health.Checker
}

// New opens store at cfg.StoreDir, initializes every component, and runs
// schema discovery once before returning. Callers that want periodic
// re-discovery call StartReconciler afterward.
func New(cfg Config) (*Engine, error) {
	log.Init(log.Config{Level: log.Level(cfg.LogLevel)})

	if err := os.MkdirAll(cfg.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: failed to create store directory: %w", err)
	}
	store, err := kv.NewBoltBackend(cfg.StoreDir)
	if err != nil {
		metrics.RegisterComponent("kv", false, err.Error())
		return nil, fmt.Errorf("engine: failed to open store: %w", err)
	}
	metrics.RegisterComponent("kv", true, "")

	bus := events.NewBroker()
	bus.Start()

	registry := schema.NewRegistry(store, bus)
	atoms := atom.NewManager(store)
	gate := policy.NewGate()
	exec := executor.New(registry, atoms, gate, bus)

	if err := registry.Discover(cfg.SchemaDir); err != nil {
		metrics.RegisterComponent("schema", false, err.Error())
		store.Close()
		return nil, fmt.Errorf("engine: schema discovery failed: %w", err)
	}
	metrics.RegisterComponent("schema", true, "")
	metrics.RegisterComponent("atom", true, "")

	collector := metrics.NewCollector(registry, atoms)
	collector.Start()

	e := &Engine{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		atoms:      atoms,
		gate:       gate,
		executor:   exec,
		bus:        bus,
		collector:  collector,
		reconciler: reconciler.New(registry, cfg.SchemaDir),
		checkers: []health.Checker{
			health.NewStorageChecker(store),
			health.NewConsistencyChecker(atoms),
		},
	}
	return e, nil
}

// Health runs every configured checker once and returns its result keyed by
// check type. Callers (the CLI, a future liveness probe) decide what to do
// with an unhealthy result; the Engine does not act on it itself.
func (e *Engine) Health(ctx context.Context) map[health.CheckType]health.Result {
	results := make(map[health.CheckType]health.Result, len(e.checkers))
	for _, c := range e.checkers {
		r := c.Check(ctx)
		results[c.Type()] = r
		metrics.UpdateComponent(componentForCheck(c.Type()), r.Healthy, r.Message)
	}
	return results
}

func componentForCheck(t health.CheckType) string {
	if t == health.CheckTypeStorage {
		return "kv"
	}
	return "atom"
}

// StartReconciler begins the periodic schema-directory reconciliation loop.
func (e *Engine) StartReconciler() { e.reconciler.Start() }

// Executor exposes the Query/Mutation entry points.
func (e *Engine) Executor() *executor.Executor { return e.executor }

// Registry exposes schema lifecycle operations.
func (e *Engine) Registry() *schema.Registry { return e.registry }

// Events returns the engine's event broker, useful for callers that want
// to observe schema transitions, atom writes, or permission denials as
// they happen.
func (e *Engine) Events() *events.Broker { return e.bus }

// Close stops the background collector and reconciler and closes storage.
func (e *Engine) Close() error {
	e.reconciler.Stop()
	e.collector.Stop()
	e.bus.Stop()
	return e.store.Close()
}
