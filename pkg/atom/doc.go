/*
Package atom implements the Atom Manager: immutable, content-addressed
Atoms linked by prev_atom_id, and mutable AtomRefs pointing at chain heads.

	CreateAtom(content, prev) → atom_id      (persisted before any ref move)
	AdvanceRef(ref_id, atom_id)              (fails UnknownAtom if atom absent)
	ResolveRef(ref_id) → atom                (UnknownRef | DanglingRef)
	WalkHistory(ref_id) → []atom             (head first, acyclic by construction)

Every write goes through persistAtom before AdvanceRef is ever called by a
caller; the manager itself never reorders these two steps. AdvanceRef holds
mu for its whole body so two concurrent advances of the same ref cannot
interleave their atom-existence check and their ref write.
*/
package atom
