/*
Package events provides an in-memory, non-blocking pub/sub broker used to
observe kernel activity without coupling the Atom Manager, Schema Registry,
and Policy Gate to any particular consumer.

	Publisher → incoming (buffer 256) → broadcast loop → per-subscriber
	channel (default buffer 32, drops on overflow rather than blocking a publisher)

The engine publishes schema lifecycle transitions (schema.discovered,
schema.approved, schema.blocked, schema.unloaded), atom-layer activity
(atom.created, ref.advanced, field.tombstoned), and policy denials
(permission.denied). None of this is required by any core invariant; it
exists so an operator-facing tool (the CLI, a metrics collector) can
observe the kernel without the kernel importing that tool.
*/
package events
