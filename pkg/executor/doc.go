/*
Package executor implements Query and Mutation, the only entry points
into the storage kernel. Both resolve the target schema's effective
field set through pkg/schema, gate every touched field through pkg/policy,
then read or write through pkg/atom.

Mutation Create/Update always creates every new atom before advancing any
ref, both in lexical field-name order, so a failed create never leaves a
partially-advanced write. Delete writes a tombstone atom per field
instead of removing anything.
*/
package executor
