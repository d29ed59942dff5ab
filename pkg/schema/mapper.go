package schema

import (
	"github.com/cuemby/datafold/pkg/types"
)

// FieldOrigin names which schema and field actually backs an effective
// field on the schema under evaluation, after mapper rules redirect it.
type FieldOrigin struct {
	SourceSchema string
	SourceField  string
	FieldType    types.FieldType
}

// effectiveFields is the cached, fully-resolved projection of a schema's
// fields through its mapper blocks, keyed by the effective field name
// visible to callers.
type effectiveFields struct {
	version uint64
	fields  map[string]FieldOrigin
}

// sourceResolver looks up a schema by name, used by both validation and
// evaluation so mapper rules can see field declarations on other schemas
// regardless of that schema's own lifecycle state.
type sourceResolver func(name string) (*types.Schema, bool)

// EffectiveFields computes (or returns the cached) resolved field set for
// schemaName, applying its mapper blocks in declaration order over its own
// declared fields. Invalidated on any registry mutation (AddOrReplace,
// Approve, Block, Unload all bump mapperVersion).
func (r *Registry) EffectiveFields(schemaName string) (map[string]FieldOrigin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.mapperCache[schemaName]; ok && cached.version == r.mapperVersion {
		return cached.fields, nil
	}

	s, ok := r.schemas[schemaName]
	if !ok {
		return nil, types.ErrSchemaNotFound.WithSchema(schemaName, "schema not registered")
	}

	fields, err := evaluateMapper(s, r.resolveSourceLocked)
	if err != nil {
		return nil, err
	}

	r.mapperCache[schemaName] = &effectiveFields{version: r.mapperVersion, fields: fields}
	return fields, nil
}

// evaluateMapper computes s's effective field set: its own declared fields,
// then each mapper block's rules applied in order (rename/map redirect a
// field's origin, drop removes it).
func evaluateMapper(s *types.Schema, resolve sourceResolver) (map[string]FieldOrigin, error) {
	fields := make(map[string]FieldOrigin, len(s.Fields))
	for name, spec := range s.Fields {
		fields[name] = FieldOrigin{SourceSchema: s.Name, SourceField: name, FieldType: spec.FieldType}
	}

	for _, block := range s.SchemaMappers {
		src, ok := resolve(block.SourceSchemaName)
		if !ok {
			return nil, types.ErrSchemaInvalid.WithSchema(s.Name, "mapper references unknown source schema "+block.SourceSchemaName)
		}
		for _, rule := range block.Rules {
			switch rule.Kind {
			case types.MapperRuleDrop:
				delete(fields, rule.Field)
			case types.MapperRuleMap:
				spec, ok := src.Fields[rule.Field]
				if !ok {
					return nil, types.ErrSchemaInvalid.WithSchema(s.Name, "mapper map rule references unknown source field "+rule.Field)
				}
				fields[rule.Field] = FieldOrigin{SourceSchema: src.Name, SourceField: rule.Field, FieldType: spec.FieldType}
			case types.MapperRuleRename:
				spec, ok := src.Fields[rule.SourceField]
				if !ok {
					return nil, types.ErrSchemaInvalid.WithSchema(s.Name, "mapper rename rule references unknown source field "+rule.SourceField)
				}
				fields[rule.TargetField] = FieldOrigin{SourceSchema: src.Name, SourceField: rule.SourceField, FieldType: spec.FieldType}
			}
		}
	}
	return fields, nil
}

func (r *Registry) invalidateMapperCacheLocked() {
	r.mapperVersion++
}
