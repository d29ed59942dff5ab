// Package atom owns Atoms and AtomRefs: the content-addressed value chain
// and the mutable head pointers into it.
package atom

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/types"
)

const (
	atomPrefix = "atoms/"
	refPrefix  = "refs/"
)

// Manager persists Atoms and AtomRefs against a kv.Backend. Atom writes may
// proceed concurrently (atom ids are unique, never contended); ref advances
// serialize behind mu so that "atom before ref" is never observed
// out of order across advances on the same ref racing each other.
type Manager struct {
	store kv.Backend

	mu sync.Mutex
}

// NewManager wires an Atom Manager over the given backend.
func NewManager(store kv.Backend) *Manager {
	return &Manager{store: store}
}

// CreateAtom persists a new immutable atom and returns its id. prevAtomID
// is empty for the first atom on a chain.
func (m *Manager) CreateAtom(content types.Value, prevAtomID string) (string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AtomCreateDuration)

	a := types.Atom{
		AtomID:     uuid.New().String(),
		Content:    content,
		PrevAtomID: prevAtomID,
		CreatedAt:  time.Now(),
		Status:     types.AtomStatusActive,
	}
	return m.persistAtom(&a)
}

// CreateTombstone persists a tombstone atom: same chain-linking rules as
// CreateAtom, but marks the field logically deleted while preserving history.
func (m *Manager) CreateTombstone(prevAtomID string) (string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AtomCreateDuration)

	a := types.Atom{
		AtomID:     uuid.New().String(),
		Content:    types.Null(),
		PrevAtomID: prevAtomID,
		CreatedAt:  time.Now(),
		Status:     types.AtomStatusTombstone,
	}
	return m.persistAtom(&a)
}

func (m *Manager) persistAtom(a *types.Atom) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", types.ErrInvalidContent.Wrap(err, "atom content could not be serialized")
	}
	if err := m.store.Put(atomPrefix+a.AtomID, data); err != nil {
		return "", types.ErrStorageUnavailable.Wrap(err, "failed to persist atom")
	}
	metrics.AtomsTotal.Inc()
	log.WithAtom(a.AtomID).Debug().Str("status", string(a.Status)).Msg("atom persisted")
	return a.AtomID, nil
}

// AdvanceRef points refID at newAtomID, creating the ref if it did not
// already exist. newAtomID must already be persisted: this is the "atom
// strictly before ref" ordering rule, enforced here because the
// executor always calls CreateAtom before AdvanceRef, never the reverse.
func (m *Manager) AdvanceRef(refID, newAtomID string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RefAdvanceDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok, err := m.store.Get(atomPrefix + newAtomID); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to check atom before advancing ref")
	} else if !ok {
		return types.ErrUnknownAtom.WithAtom(newAtomID, "cannot advance ref to an atom that was never persisted")
	}
	_, existed, err := m.store.Get(refPrefix + refID)
	if err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to read ref before advancing it")
	}

	ref := types.AtomRef{
		RefID:         refID,
		CurrentAtomID: newAtomID,
		UpdatedAt:     time.Now(),
	}
	data, err := json.Marshal(&ref)
	if err != nil {
		return types.ErrInvalidContent.Wrap(err, "ref could not be serialized")
	}
	if err := m.store.Put(refPrefix+refID, data); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to persist ref")
	}
	if !existed {
		metrics.RefsTotal.Inc()
	}
	log.WithRef(refID).Debug().Str("atom_id", newAtomID).Msg("ref advanced")
	return nil
}

// ResolveRef returns the atom a ref currently points at.
func (m *Manager) ResolveRef(refID string) (*types.Atom, error) {
	ref, ok, err := m.loadRef(refID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrUnknownRef.WithRef(refID, "ref has never been written")
	}
	a, ok, err := m.loadAtom(ref.CurrentAtomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.DanglingRefsTotal.Inc()
		return nil, types.ErrDanglingRef.WithRef(refID, "ref points at an atom that cannot be read")
	}
	return a, nil
}

// CurrentAtomID returns just the head atom id for refID, or "" if the ref
// does not exist yet. Used by the executor to compute prev_atom_id without
// paying for a full atom read.
func (m *Manager) CurrentAtomID(refID string) (string, error) {
	ref, ok, err := m.loadRef(refID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return ref.CurrentAtomID, nil
}

// WalkHistory returns the chain of atoms reachable from refID, head first,
// by following PrevAtomID until it hits an empty string. The chain is
// acyclic by construction, so this always terminates.
func (m *Manager) WalkHistory(refID string) ([]*types.Atom, error) {
	ref, ok, err := m.loadRef(refID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrUnknownRef.WithRef(refID, "ref has never been written")
	}

	var chain []*types.Atom
	atomID := ref.CurrentAtomID
	for atomID != "" {
		a, ok, err := m.loadAtom(atomID)
		if err != nil {
			return nil, err
		}
		if !ok {
			metrics.DanglingRefsTotal.Inc()
			return nil, types.ErrDanglingRef.WithRef(refID, "chain references an atom that cannot be read")
		}
		chain = append(chain, a)
		atomID = a.PrevAtomID
	}
	return chain, nil
}

// ListRefs enumerates every persisted ref id.
func (m *Manager) ListRefs() ([]string, error) {
	it, err := m.store.Scan(refPrefix)
	if err != nil {
		return nil, types.ErrStorageUnavailable.Wrap(err, "failed to scan refs")
	}
	var ids []string
	for {
		key, _, ok := it.Next()
		if !ok {
			break
		}
		ids = append(ids, key[len(refPrefix):])
	}
	return ids, nil
}

// CountAtoms and CountRefs back metrics.AtomSource for the periodic collector.
func (m *Manager) CountAtoms() int {
	it, err := m.store.Scan(atomPrefix)
	if err != nil {
		return 0
	}
	return countIterator(it)
}

func (m *Manager) CountRefs() int {
	it, err := m.store.Scan(refPrefix)
	if err != nil {
		return 0
	}
	return countIterator(it)
}

func countIterator(it kv.Iterator) int {
	n := 0
	for {
		_, _, ok := it.Next()
		if !ok {
			return n
		}
		n++
	}
}

// CheckConsistency scans every persisted ref and reports any that dangle
// (point at an atom that cannot be read). It never mutates state.
func (m *Manager) CheckConsistency() ([]string, error) {
	ids, err := m.ListRefs()
	if err != nil {
		return nil, err
	}
	var dangling []string
	for _, refID := range ids {
		if _, err := m.ResolveRef(refID); err != nil {
			if kind, ok := types.KindOf(err); ok && kind == types.ErrDanglingRef {
				dangling = append(dangling, refID)
			}
		}
	}
	return dangling, nil
}

func (m *Manager) loadRef(refID string) (*types.AtomRef, bool, error) {
	data, ok, err := m.store.Get(refPrefix + refID)
	if err != nil {
		return nil, false, types.ErrStorageUnavailable.Wrap(err, "failed to read ref")
	}
	if !ok {
		return nil, false, nil
	}
	var ref types.AtomRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, false, types.ErrStorageUnavailable.Wrap(err, "ref record is corrupt")
	}
	return &ref, true, nil
}

func (m *Manager) loadAtom(atomID string) (*types.Atom, bool, error) {
	data, ok, err := m.store.Get(atomPrefix + atomID)
	if err != nil {
		return nil, false, types.ErrStorageUnavailable.Wrap(err, "failed to read atom")
	}
	if !ok {
		return nil, false, nil
	}
	var a types.Atom
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false, types.ErrStorageUnavailable.Wrap(err, "atom record is corrupt")
	}
	return &a, true, nil
}
