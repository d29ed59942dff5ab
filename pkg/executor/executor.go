// Package executor implements the Query and Mutation entry points: the
// only place callers reach the Atom Manager and Schema Registry from.
package executor

import (
	"fmt"
	"sort"

	"github.com/cuemby/datafold/pkg/atom"
	"github.com/cuemby/datafold/pkg/events"
	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/policy"
	"github.com/cuemby/datafold/pkg/schema"
	"github.com/cuemby/datafold/pkg/types"
)

// Executor wires the registry, atom manager, and policy gate together. It
// holds no persistent state of its own.
type Executor struct {
	registry *schema.Registry
	atoms    *atom.Manager
	gate     *policy.Gate
	bus      *events.Broker
}

// New constructs an Executor over the given components. bus may be nil,
// in which case the executor simply runs without publishing events.
func New(registry *schema.Registry, atoms *atom.Manager, gate *policy.Gate, bus *events.Broker) *Executor {
	return &Executor{registry: registry, atoms: atoms, gate: gate, bus: bus}
}

func (e *Executor) publish(kind events.EventType, schemaName, message string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(&events.Event{Type: kind, Schema: schemaName, Message: message})
}

// QueryRequest is the decoded form of a query's wire fields.
type QueryRequest struct {
	Schema   string
	Fields   []string
	Filter   map[string]types.Value
	RangeKey string // only meaningful for Range schemas
}

// QueryResult is the decoded form of a query's response.
type QueryResult struct {
	Results []map[string]types.Value
	Count   int
}

// Query executes a read against an Approved schema.
func (e *Executor) Query(req QueryRequest, caller policy.Caller) (QueryResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.QueryDuration, req.Schema)

	if !e.registry.CanQuery(req.Schema) {
		if _, ok := e.registry.StateOf(req.Schema); !ok {
			return QueryResult{}, types.ErrSchemaNotFound.WithSchema(req.Schema, "schema not registered")
		}
		return QueryResult{}, types.ErrSchemaNotApproved.WithSchema(req.Schema, "query requires an Approved schema")
	}

	effective, err := e.registry.EffectiveFields(req.Schema)
	if err != nil {
		return QueryResult{}, err
	}

	accesses, err := e.buildReadAccesses(req.Schema, req.Fields, effective)
	if err != nil {
		return QueryResult{}, err
	}

	schemaDefaults := e.registry.Get(req.Schema).PaymentConfig
	decision := e.gate.Evaluate(req.Schema, accesses, caller, schemaDefaults)
	if !decision.Admitted {
		e.publish(events.EventPermissionDenied, req.Schema, "query denied on field "+decision.DeniedField)
		return QueryResult{}, types.ErrPermissionDenied.WithField(req.Schema, decision.DeniedField, "policy gate denied "+string(decision.DeniedAccess))
	}

	rangeKeys := []string{req.RangeKey}
	s := e.registry.Get(req.Schema)
	if !s.IsRange() {
		rangeKeys = []string{""}
	}

	var results []map[string]types.Value
	for _, rk := range rangeKeys {
		record, absent, err := e.readRecord(req.Schema, req.Fields, effective, rk)
		if err != nil {
			return QueryResult{}, err
		}
		if absent {
			continue
		}
		if matchesFilter(record, req.Filter) {
			results = append(results, record)
		}
	}

	return QueryResult{Results: results, Count: len(results)}, nil
}

// readRecord resolves every requested field's current atom for a single
// record (rangeKey is "" for Single schemas). absent is true when none of
// the requested fields has live content (each was never written or is
// tombstoned); otherwise the record is returned with its unwritten and
// tombstoned fields simply omitted from the map.
func (e *Executor) readRecord(schemaName string, fields []string, effective map[string]schema.FieldOrigin, rangeKey string) (map[string]types.Value, bool, error) {
	record := make(map[string]types.Value)
	anyLive := false

	for _, field := range fields {
		origin := effective[field]
		refID, err := e.registry.RefIDFor(origin.SourceSchema, origin.SourceField, rangeKey)
		if err != nil {
			if kind, ok := types.KindOf(err); ok && (kind == types.ErrUnknownField || kind == types.ErrFilterRequired) {
				continue
			}
			return nil, false, err
		}

		a, err := e.atoms.ResolveRef(refID)
		if err != nil {
			if kind, ok := types.KindOf(err); ok && kind == types.ErrUnknownRef {
				continue
			}
			return nil, false, err
		}
		if a.IsTombstone() {
			continue
		}
		record[field] = a.Content
		anyLive = true
	}

	if !anyLive {
		return nil, true, nil
	}
	return record, false, nil
}

func (e *Executor) buildReadAccesses(schemaName string, fields []string, effective map[string]schema.FieldOrigin) ([]policy.FieldAccess, error) {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)

	accesses := make([]policy.FieldAccess, 0, len(sorted))
	for _, field := range sorted {
		origin, ok := effective[field]
		if !ok {
			return nil, types.ErrUnknownField.WithField(schemaName, field, "field not in effective field set")
		}
		spec, ok := e.registry.FieldSpecFor(schemaName, field, origin)
		if !ok {
			return nil, types.ErrUnknownField.WithField(schemaName, field, "field has no resolvable policy")
		}
		accesses = append(accesses, policy.FieldAccess{Field: field, Type: types.AccessRead, Spec: spec})
	}
	return accesses, nil
}

func matchesFilter(record map[string]types.Value, filter map[string]types.Value) bool {
	for field, want := range filter {
		got, ok := record[field]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// MutationRequest is the decoded form of a mutation's wire fields.
type MutationRequest struct {
	Schema       string
	MutationType types.MutationType
	Data         map[string]types.Value
	Filter       map[string]types.Value
	RangeKey     string
}

// MutationResult is the decoded form of a mutation's response.
type MutationResult struct {
	Success       bool
	AffectedCount int
}

// Mutation executes a create, update, or delete against an Approved schema.
func (e *Executor) Mutation(req MutationRequest, caller policy.Caller) (MutationResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.MutationDuration, req.Schema, string(req.MutationType))

	if st, ok := e.registry.StateOf(req.Schema); !ok {
		e.recordOutcome(req, "schema_not_found")
		return MutationResult{}, types.ErrSchemaNotFound.WithSchema(req.Schema, "schema not registered")
	} else if st != types.SchemaApproved {
		e.recordOutcome(req, "schema_not_approved")
		return MutationResult{}, types.ErrSchemaNotApproved.WithSchema(req.Schema, "mutation requires an Approved schema")
	}

	effective, err := e.registry.EffectiveFields(req.Schema)
	if err != nil {
		e.recordOutcome(req, "error")
		return MutationResult{}, err
	}

	s := e.registry.Get(req.Schema)
	isRange := s.IsRange()
	if isRange && req.RangeKey == "" {
		e.recordOutcome(req, "error")
		return MutationResult{}, types.NewError(types.ErrFilterRequired, "range schema mutation requires a range_key")
	}
	if !isRange && req.MutationType != types.MutationCreate && len(req.Filter) == 0 {
		e.recordOutcome(req, "error")
		return MutationResult{}, types.NewError(types.ErrFilterRequired, "update/delete on a Single schema requires a non-empty filter")
	}

	accesses, err := e.buildMutationAccesses(req, effective)
	if err != nil {
		e.recordOutcome(req, "error")
		return MutationResult{}, err
	}

	decision := e.gate.Evaluate(req.Schema, accesses, caller, s.PaymentConfig)
	if !decision.Admitted {
		e.recordOutcome(req, "denied")
		e.publish(events.EventPermissionDenied, req.Schema, string(req.MutationType)+" denied on field "+decision.DeniedField)
		return MutationResult{}, types.ErrPermissionDenied.WithField(req.Schema, decision.DeniedField, "policy gate denied "+string(decision.DeniedAccess))
	}

	var affected int
	switch req.MutationType {
	case types.MutationCreate:
		affected, err = e.applyWrite(req, effective, req.Data)
	case types.MutationUpdate:
		if !isRange {
			matched, mErr := e.matches(req.Schema, effective, req.Filter)
			if mErr != nil {
				err = mErr
				break
			}
			if !matched {
				return MutationResult{Success: true, AffectedCount: 0}, nil
			}
		}
		affected, err = e.applyWrite(req, effective, req.Data)
	case types.MutationDelete:
		if !isRange {
			matched, mErr := e.matches(req.Schema, effective, req.Filter)
			if mErr != nil {
				err = mErr
				break
			}
			if !matched {
				return MutationResult{Success: true, AffectedCount: 0}, nil
			}
		}
		affected, err = e.applyTombstone(req, effective)
	default:
		err = fmt.Errorf("executor: unknown mutation type %q", req.MutationType)
	}

	if err != nil {
		e.recordOutcome(req, "error")
		return MutationResult{}, err
	}
	e.recordOutcome(req, "success")
	return MutationResult{Success: true, AffectedCount: affected}, nil
}

func (e *Executor) matches(schemaName string, effective map[string]schema.FieldOrigin, filter map[string]types.Value) (bool, error) {
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	record, absent, err := e.readRecord(schemaName, fields, effective, "")
	if err != nil {
		return false, err
	}
	if absent {
		return false, nil
	}
	return matchesFilter(record, filter), nil
}

// applyWrite creates every new atom first, in lexical field-name order,
// then advances every ref, also in lexical order: if any atom create
// fails, no ref has moved yet, so a failed write never leaves a record
// half-updated.
func (e *Executor) applyWrite(req MutationRequest, effective map[string]schema.FieldOrigin, data map[string]types.Value) (int, error) {
	fields := make([]string, 0, len(data))
	for f := range data {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	type pendingWrite struct {
		refID  string
		atomID string
	}
	pending := make([]pendingWrite, 0, len(fields))

	for _, field := range fields {
		origin, ok := effective[field]
		if !ok {
			return 0, types.ErrUnknownField.WithField(req.Schema, field, "field not in effective field set")
		}
		refID, err := e.registry.RefIDFor(origin.SourceSchema, origin.SourceField, req.RangeKey)
		if err != nil {
			return 0, err
		}
		prevID, err := e.atoms.CurrentAtomID(refID)
		if err != nil {
			return 0, err
		}
		atomID, err := e.atoms.CreateAtom(data[field], prevID)
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingWrite{refID: refID, atomID: atomID})
	}

	if len(pending) == 0 {
		return 0, nil
	}

	for _, w := range pending {
		if err := e.atoms.AdvanceRef(w.refID, w.atomID); err != nil {
			return 0, err
		}
	}
	e.publish(events.EventAtomCreated, req.Schema, string(req.MutationType)+" wrote "+fields[0])
	e.publish(events.EventRefAdvanced, req.Schema, string(req.MutationType))
	return 1, nil
}

// applyTombstone writes a tombstone atom for every field in the schema's
// effective field set that has ever been written (a delete clears the whole
// record), in lexical order, atoms-before-refs exactly as applyWrite.
func (e *Executor) applyTombstone(req MutationRequest, effective map[string]schema.FieldOrigin) (int, error) {
	fields := make([]string, 0, len(effective))
	for f := range effective {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	type pendingWrite struct {
		refID  string
		atomID string
	}
	pending := make([]pendingWrite, 0, len(fields))

	for _, field := range fields {
		origin := effective[field]
		refID, err := e.registry.RefIDFor(origin.SourceSchema, origin.SourceField, req.RangeKey)
		if err != nil {
			if kind, ok := types.KindOf(err); ok && kind == types.ErrUnknownField {
				continue
			}
			return 0, err
		}
		prevID, err := e.atoms.CurrentAtomID(refID)
		if err != nil {
			return 0, err
		}
		if prevID == "" {
			continue // field was never written; nothing to tombstone
		}
		atomID, err := e.atoms.CreateTombstone(prevID)
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingWrite{refID: refID, atomID: atomID})
	}

	if len(pending) == 0 {
		return 0, nil
	}

	for _, w := range pending {
		if err := e.atoms.AdvanceRef(w.refID, w.atomID); err != nil {
			return 0, err
		}
	}
	e.publish(events.EventFieldTombstoned, req.Schema, "delete")
	return 1, nil
}

func (e *Executor) buildMutationAccesses(req MutationRequest, effective map[string]schema.FieldOrigin) ([]policy.FieldAccess, error) {
	touched := make(map[string]types.AccessType)
	for field := range req.Data {
		touched[field] = types.AccessWrite
	}
	for field := range req.Filter {
		if _, writing := touched[field]; !writing {
			touched[field] = types.AccessRead
		}
	}
	if req.MutationType == types.MutationDelete {
		for field := range effective {
			if _, already := touched[field]; !already {
				touched[field] = types.AccessWrite
			}
		}
	}

	fields := make([]string, 0, len(touched))
	for f := range touched {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	accesses := make([]policy.FieldAccess, 0, len(fields))
	for _, field := range fields {
		origin, ok := effective[field]
		if !ok {
			return nil, types.ErrUnknownField.WithField(req.Schema, field, "field not in effective field set")
		}
		spec, ok := e.registry.FieldSpecFor(req.Schema, field, origin)
		if !ok {
			return nil, types.ErrUnknownField.WithField(req.Schema, field, "field has no resolvable policy")
		}
		accesses = append(accesses, policy.FieldAccess{Field: field, Type: touched[field], Spec: spec})
	}
	return accesses, nil
}

func (e *Executor) recordOutcome(req MutationRequest, outcome string) {
	metrics.MutationsTotal.WithLabelValues(req.Schema, string(req.MutationType), outcome).Inc()
	log.WithSchema(req.Schema).Debug().Str("mutation_type", string(req.MutationType)).Str("outcome", outcome).Msg("mutation executed")
}
