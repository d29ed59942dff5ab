/*
Package schema implements the Schema Registry: schema storage, the
Available/Approved/Blocked state machine, structural validation, and
field-mapper evaluation.

Discovery (discover.go) loads persisted schemas and state, then scans a
schema directory for JSON or YAML definitions and reconciles newly-found
ones in as Available. Validate (validate.go) enforces structural rules —
required fields, payment configuration, and depth-first cycle detection
over the rename/map graph. Mapper evaluation (mapper.go) computes a
schema's effective field set on demand and caches it per registry
version, invalidated on every mutation.
*/
package schema
