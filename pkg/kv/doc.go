/*
Package kv provides the embedded ordered key-value store the rest of the
core treats as a black box: get/put/delete plus prefix scan, atomic and
durable per single-key write, no multi-key transactions.

# Architecture

	┌──────────────────────── KV BACKEND ───────────────────────┐
	│                                                             │
	│  Backend interface                                         │
	│    Get(key) (value, ok, error)                             │
	│    Put(key, value) error                                   │
	│    Delete(key) error                                       │
	│    Scan(prefix) (Iterator, error)                          │
	│                                                             │
	│  BoltBackend   — bbolt-backed, one file, fsync on commit   │
	│  MemBackend    — in-process map, used by unit tests        │
	│                                                             │
	└─────────────────────────────────────────────────────────────┘

Every other component addresses this package only through flat string keys
built with Join, e.g. Join("atoms", atomID) or Join("schema_field_refs",
schema, field) — the key-space layout is owned by the callers (pkg/atom,
pkg/schema), not by this package.

# Durability

BoltBackend commits each Put/Delete in its own bbolt write transaction,
which fsyncs before returning: a caller that has received a nil error from
Put has a durable write. The core's own atom-before-ref ordering is what
keeps a crash mid-mutation from producing an inconsistent ref; this
package only promises that each individual key is never partially written.

# See Also

  - pkg/atom for the atoms/ and refs/ key prefixes
  - pkg/schema for the schemas/, schema_states/, and schema_field_refs/ prefixes
*/
package kv
