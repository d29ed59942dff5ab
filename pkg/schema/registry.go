// Package schema implements the Schema Registry: the source of truth for
// schema definitions and their Available/Approved/Blocked lifecycle
// state, plus field-mapper evaluation.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/datafold/pkg/events"
	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/types"
)

const (
	schemaPrefix      = "schemas/"
	schemaStatePrefix = "schema_states/"
	fieldRefPrefix    = "schema_field_refs/"
)

// Registry owns every Schema and its SchemaState. Writes (add/approve/
// block/unload) are infrequent and serialize behind mu; reads take mu's
// read lock and serve from the in-memory maps without touching the backend.
// Writes modify the stored *types.Schema values in place; entries are not
// copied before being changed.
type Registry struct {
	store kv.Backend
	bus   *events.Broker

	mu      sync.RWMutex
	schemas map[string]*types.Schema
	states  map[string]types.SchemaState

	mapperCache   map[string]*effectiveFields
	mapperVersion uint64
}

// NewRegistry constructs an empty registry over store. Call Discover to
// populate it from persisted state and the schema directory.
func NewRegistry(store kv.Backend, bus *events.Broker) *Registry {
	return &Registry{
		store:       store,
		bus:         bus,
		schemas:     make(map[string]*types.Schema),
		states:      make(map[string]types.SchemaState),
		mapperCache: make(map[string]*effectiveFields),
	}
}

// Get returns the registry's own pointer to the named schema, or nil if
// absent. It is not a copy: Approve sets field refs on this same Schema
// in place, and changes made through the pointer reach the registry.
func (r *Registry) Get(name string) *types.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// StateOf returns the named schema's state and whether it exists.
func (r *Registry) StateOf(name string) (types.SchemaState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[name]
	return s, ok
}

// List returns schema names, optionally filtered to a single state.
func (r *Registry) List(state *types.SchemaState) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, st := range r.states {
		if state == nil || st == *state {
			names = append(names, name)
		}
	}
	return names
}

// FieldSpecFor resolves the FieldSpec governing policy and payment for an
// effective field on targetSchema: targetSchema's own declaration if it
// has one under that name, otherwise the origin schema's declaration. The
// executor uses this so policy gating always prefers a schema's own field
// policy while still functioning for a purely-renamed field the target
// schema never redeclares.
func (r *Registry) FieldSpecFor(targetSchema string, effectiveField string, origin FieldOrigin) (types.FieldSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.schemas[targetSchema]; ok {
		if spec, ok := s.Fields[effectiveField]; ok {
			return spec, true
		}
	}
	if s, ok := r.schemas[origin.SourceSchema]; ok {
		if spec, ok := s.Fields[origin.SourceField]; ok {
			return spec, true
		}
	}
	return types.FieldSpec{}, false
}

// CanQuery and CanMutate are both true iff the schema is Approved.
func (r *Registry) CanQuery(name string) bool  { return r.approved(name) }
func (r *Registry) CanMutate(name string) bool { return r.approved(name) }

func (r *Registry) approved(name string) bool {
	st, ok := r.StateOf(name)
	return ok && st == types.SchemaApproved
}

// CountByState backs metrics.SchemaSource for the periodic collector.
func (r *Registry) CountByState() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{
		string(types.SchemaAvailable): 0,
		string(types.SchemaApproved):  0,
		string(types.SchemaBlocked):   0,
	}
	for _, st := range r.states {
		counts[string(st)]++
	}
	return counts
}

// AddOrReplace inserts schema as Available, or, if a schema with that name
// already exists in a non-Available state, re-validates the replacement
// and preserves the existing state on success. Fields the replacement
// shares with the previous definition (same name and field type) keep
// their bound refs. A replacement for a
// schema that is already Approved has its new fields' refs allocated
// immediately, the same as Approve does on first approval, so an
// Approved schema never carries a field with an empty ref.
func (r *Registry) AddOrReplace(s *types.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := Validate(s, r.resolverIncluding(s)); err != nil {
		metrics.SchemaValidationFailuresTotal.Inc()
		return err
	}

	existingState, existed := r.states[s.Name]
	if prev, ok := r.schemas[s.Name]; ok {
		for fieldName, spec := range s.Fields {
			if old, ok := prev.Fields[fieldName]; ok && spec.RefAtomUUID == "" && old.FieldType == spec.FieldType {
				spec.RefAtomUUID = old.RefAtomUUID
				s.Fields[fieldName] = spec
			}
		}
	}
	r.schemas[s.Name] = s
	if !existed {
		r.states[s.Name] = types.SchemaAvailable
	} else {
		r.states[s.Name] = existingState
		if existingState == types.SchemaApproved {
			if err := r.allocateFieldRefsLocked(s.Name, s); err != nil {
				return err
			}
		}
	}
	r.invalidateMapperCacheLocked()

	if err := r.persistSchemaLocked(s); err != nil {
		return err
	}
	if !existed {
		if err := r.persistStateLocked(s.Name, types.SchemaAvailable); err != nil {
			return err
		}
		r.publish(events.EventSchemaDiscovered, s.Name)
	}
	return nil
}

// Approve transitions name to Approved, allocating any unbound field refs
// first. Idempotent: approving an already-Approved schema performs no new
// allocations.
func (r *Registry) Approve(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schemas[name]
	if !ok {
		return types.ErrSchemaNotFound.WithSchema(name, "schema not registered")
	}
	current, ok := r.states[name]
	if !ok {
		current = types.SchemaAvailable
	}
	if current == types.SchemaApproved {
		return nil
	}
	if !current.CanTransition(types.SchemaApproved) {
		return types.ErrInvalidTransition.WithSchema(name, fmt.Sprintf("cannot approve from state %q", current))
	}

	if err := Validate(s, r.resolveSourceLocked); err != nil {
		metrics.SchemaValidationFailuresTotal.Inc()
		return err
	}

	if err := r.allocateFieldRefsLocked(name, s); err != nil {
		return err
	}

	if err := r.persistSchemaLocked(s); err != nil {
		return err
	}
	if err := r.persistStateLocked(name, types.SchemaApproved); err != nil {
		return err
	}
	r.states[name] = types.SchemaApproved
	r.invalidateMapperCacheLocked()
	metrics.SchemaTransitionsTotal.WithLabelValues(string(types.SchemaApproved)).Inc()
	r.publish(events.EventSchemaApproved, name)
	return nil
}

// allocateFieldRefsLocked binds a RefAtomUUID to every single/collection
// field on s that does not already have one, persisting each allocation.
// Range fields resolve their ref per-key and are never schema-scoped.
// Called both when a schema is first approved and when a replacement
// schema for an already-Approved schema adds new fields, so a field is
// never left with an empty ref once its schema is Approved.
func (r *Registry) allocateFieldRefsLocked(name string, s *types.Schema) error {
	for fieldName, spec := range s.Fields {
		if spec.FieldType == types.FieldTypeRange {
			continue
		}
		if spec.RefAtomUUID != "" {
			continue
		}
		refID := uuid.New().String()
		spec.RefAtomUUID = refID
		s.Fields[fieldName] = spec
		if err := r.store.Put(fieldRefPrefix+name+"/"+fieldName, []byte(refID)); err != nil {
			return types.ErrStorageUnavailable.Wrap(err, "failed to persist field ref allocation")
		}
	}
	return nil
}

// Block transitions name to Blocked.
func (r *Registry) Block(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.states[name]
	if !ok {
		return types.ErrSchemaNotFound.WithSchema(name, "schema not registered")
	}
	if !current.CanTransition(types.SchemaBlocked) {
		return types.ErrInvalidTransition.WithSchema(name, fmt.Sprintf("cannot block from state %q", current))
	}
	if err := r.persistStateLocked(name, types.SchemaBlocked); err != nil {
		return err
	}
	r.states[name] = types.SchemaBlocked
	r.invalidateMapperCacheLocked()
	metrics.SchemaTransitionsTotal.WithLabelValues(string(types.SchemaBlocked)).Inc()
	r.publish(events.EventSchemaBlocked, name)
	return nil
}

// Unload removes name from the registry entirely (atoms are untouched).
// Legal from any state.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[name]; !ok {
		return types.ErrSchemaNotFound.WithSchema(name, "schema not registered")
	}
	delete(r.schemas, name)
	delete(r.states, name)
	if err := r.store.Delete(schemaPrefix + name); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to remove persisted schema")
	}
	if err := r.store.Delete(schemaStatePrefix + name); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to remove persisted schema state")
	}
	r.invalidateMapperCacheLocked()
	r.publish(events.EventSchemaUnloaded, name)
	return nil
}

// RefIDFor resolves the AtomRef identifier backing (schema, field) for
// Single/Collection fields, or a deterministic per-key ref for Range
// fields so repeated writes with the same range key target one chain.
func (r *Registry) RefIDFor(schemaName, field, rangeKey string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[schemaName]
	if !ok {
		return "", types.ErrSchemaNotFound.WithSchema(schemaName, "schema not registered")
	}
	spec, ok := s.Fields[field]
	if !ok {
		return "", types.ErrUnknownField.WithField(schemaName, field, "field not declared on schema")
	}
	if spec.FieldType == types.FieldTypeRange {
		if rangeKey == "" {
			return "", types.NewError(types.ErrFilterRequired, "range field access requires a range_key")
		}
		return rangeRefID(schemaName, field, rangeKey), nil
	}
	if spec.RefAtomUUID == "" {
		return "", types.ErrUnknownField.WithField(schemaName, field, "field has no bound ref; schema not yet approved")
	}
	return spec.RefAtomUUID, nil
}

// rangeRefID derives a stable ref id from (schema, field, range_key) using
// a name-based UUID so two writes with the same key always agree on the
// chain without a separate allocation table.
func rangeRefID(schemaName, field, rangeKey string) string {
	name := schemaName + "\x00" + field + "\x00" + rangeKey
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (r *Registry) persistSchemaLocked(s *types.Schema) error {
	data, err := json.Marshal(s)
	if err != nil {
		return types.ErrInvalidContent.Wrap(err, "schema could not be serialized")
	}
	if err := r.store.Put(schemaPrefix+s.Name, data); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to persist schema")
	}
	return nil
}

func (r *Registry) persistStateLocked(name string, state types.SchemaState) error {
	if err := r.store.Put(schemaStatePrefix+name, []byte(state)); err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to persist schema state")
	}
	return nil
}

// resolveSourceLocked looks up a schema by name for mapper/validation
// purposes without re-acquiring mu (callers already hold it, or the
// registry is not yet concurrently accessed during discovery).
func (r *Registry) resolveSourceLocked(name string) (*types.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// resolverIncluding returns a resolver that also sees candidate even though
// it has not been inserted into r.schemas yet, so a schema's own mapper
// blocks can reference itself (or, once inserted, another schema can
// reference it) during the Validate call that gates AddOrReplace.
func (r *Registry) resolverIncluding(candidate *types.Schema) sourceResolver {
	return func(name string) (*types.Schema, bool) {
		if name == candidate.Name {
			return candidate, true
		}
		return r.resolveSourceLocked(name)
	}
}

func (r *Registry) publish(kind events.EventType, schemaName string) {
	if r.bus != nil {
		r.bus.Publish(&events.Event{
			Type:    kind,
			Schema:  schemaName,
			Message: string(kind),
		})
	}
	log.WithSchema(schemaName).Info().Str("event", string(kind)).Msg("schema event")
}
