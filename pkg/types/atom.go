package types

import "time"

// AtomStatus marks whether an Atom holds live content or a logical deletion.
type AtomStatus string

const (
	AtomStatusActive    AtomStatus = "active"
	AtomStatusTombstone AtomStatus = "tombstone"
)

// Atom is an immutable, content-addressed value version. Once persisted an
// Atom is never mutated, deleted, or rewritten; a new write always produces
// a new Atom linked to its predecessor via PrevAtomID.
type Atom struct {
	AtomID     string     `json:"atom_id"`
	Content    Value      `json:"content"`
	PrevAtomID string     `json:"prev_atom_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Status     AtomStatus `json:"status"`
}

func (a *Atom) IsTombstone() bool {
	return a.Status == AtomStatusTombstone
}

// AtomRef is a mutable named pointer to the head Atom of a chain. Advancing
// a ref is a single logical step: it must never be observed pointing at an
// Atom that does not exist.
type AtomRef struct {
	RefID         string    `json:"ref_id"`
	CurrentAtomID string    `json:"current_atom_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}
