/*
Package engine wires the Atom Manager, Schema Registry, and Policy Gate
into a single Executor-fronted component over one KV backend, assembling
storage, schema state, and the event broker into one running node. New
opens storage and runs schema discovery; Close closes it cleanly.
Callers only ever talk to Query/Mutation and the schema lifecycle
methods the Engine exposes.
*/
package engine
