/*
Package types defines the core data structures shared across DataFold's
storage kernel.

This package contains the fundamental domain model: the dynamically-typed
Value tree, immutable Atoms and the mutable AtomRefs that point at them,
Schemas with their field policies and payment configuration, field mappers,
schema lifecycle state, and the structured error taxonomy every component
returns through.

# Architecture

	┌──────────────────────── DOMAIN MODEL ─────────────────────────┐
	│                                                                 │
	│  Value  (Null|Bool|Int|Float|Text|List|Map)                    │
	│    └── the dynamically-typed payload every Atom carries        │
	│                                                                 │
	│  Atom ──PrevAtomID──> Atom ──PrevAtomID──> nil                 │
	│    └── immutable, content-addressed, never rewritten            │
	│                                                                 │
	│  AtomRef { RefID, CurrentAtomID }                               │
	│    └── mutable pointer to the head of one Atom chain            │
	│                                                                 │
	│  Schema { Fields, PaymentConfig, SchemaMappers, SchemaType }    │
	│    └── FieldSpec { PermissionPolicy, PaymentConfig, RefAtomUUID}│
	│                                                                 │
	│  SchemaState: Available | Approved | Blocked                    │
	│                                                                 │
	└─────────────────────────────────────────────────────────────────┘

# Design Patterns

Value as a closed sum type:

	Schema fields are user-defined, so field content stays dynamically
	typed; Value is a small closed variant (never an interface{}) so every
	consumer pattern-matches on Kind() instead of doing type assertions.

Enumeration pattern:

	All enums use typed string constants, matching the rest of the
	codebase: SchemaState, FieldType, ScalingKind, MutationType.

Structured errors:

	Every error the core returns is a *Error carrying an ErrorKind plus
	the schema/field/ref identifiers involved, never a bare string. Callers
	compare kinds with errors.Is(err, types.ErrSchemaNotApproved.Sentinel()).

Optional fields:

	Pointer fields mean "absent", matching the rest of the codebase:
	*float64 MinPayment (nil = no floor), *RangeConfig (nil = Single schema).

# Thread Safety

Value, Atom, and AtomRef are immutable once constructed and safe to share
by value or pointer across goroutines. Schema is mutated only by the
registry under its own lock (see pkg/schema); callers should treat a
*Schema obtained from the registry as a read-only snapshot.

# See Also

  - pkg/atom for Atom/AtomRef persistence
  - pkg/schema for Schema lifecycle and field-mapper evaluation
  - pkg/policy for permission and payment evaluation against these types
  - pkg/executor for query/mutation execution over these types
*/
package types
