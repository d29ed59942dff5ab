package policy

import (
	"sync"
)

// UsageTracker tracks remaining explicit per-key allowances for field
// access. Durable accounting is out of scope; it holds counts
// in-process only, the same in-memory-map-behind-a-mutex shape the
// teacher's join-token manager uses for its own ephemeral counters.
type UsageTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewUsageTracker creates an empty tracker. Counts are seeded lazily from
// a field's ExplicitReadPolicy/ExplicitWritePolicy the first time a key is
// consulted, since that is the only source of truth for the initial value.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{counts: make(map[string]int)}
}

func usageKey(schema, field, access, publicKeyID string) string {
	return schema + "\x00" + field + "\x00" + access + "\x00" + publicKeyID
}

// Remaining returns the remaining allowance for (schema, field, access,
// publicKeyID), seeding it from initial on first use.
func (t *UsageTracker) Remaining(schema, field, access, publicKeyID string, initial int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := usageKey(schema, field, access, publicKeyID)
	if _, seen := t.counts[key]; !seen {
		t.counts[key] = initial
	}
	return t.counts[key]
}

// Decrement records one use against (schema, field, access, publicKeyID).
// It is a no-op if the count is already at or below zero.
func (t *UsageTracker) Decrement(schema, field, access, publicKeyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := usageKey(schema, field, access, publicKeyID)
	if t.counts[key] > 0 {
		t.counts[key]--
	}
}
