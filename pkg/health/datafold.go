package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/datafold/pkg/atom"
	"github.com/cuemby/datafold/pkg/kv"
)

// StorageChecker probes the kv.Backend with a cheap read: it proves the
// storage dependency is reachable without touching any domain state.
type StorageChecker struct {
	store kv.Backend
}

// NewStorageChecker wires a StorageChecker over the engine's backend.
func NewStorageChecker(store kv.Backend) *StorageChecker {
	return &StorageChecker{store: store}
}

func (c *StorageChecker) Type() CheckType { return CheckTypeStorage }

func (c *StorageChecker) Check(ctx context.Context) Result {
	start := time.Now()
	_, _, err := c.store.Get("health/probe")
	if err != nil {
		return Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	return Result{Healthy: true, Message: "storage reachable", CheckedAt: start, Duration: time.Since(start)}
}

// ConsistencyChecker runs the atom manager's background consistency
// check and reports unhealthy if any ref resolves to a missing atom.
type ConsistencyChecker struct {
	atoms *atom.Manager
}

// NewConsistencyChecker wires a ConsistencyChecker over the engine's atom manager.
func NewConsistencyChecker(atoms *atom.Manager) *ConsistencyChecker {
	return &ConsistencyChecker{atoms: atoms}
}

func (c *ConsistencyChecker) Type() CheckType { return CheckTypeConsistency }

func (c *ConsistencyChecker) Check(ctx context.Context) Result {
	start := time.Now()
	dangling, err := c.atoms.CheckConsistency()
	if err != nil {
		return Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	if len(dangling) > 0 {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%d dangling ref(s): %v", len(dangling), dangling),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: "no dangling refs", CheckedAt: start, Duration: time.Since(start)}
}
