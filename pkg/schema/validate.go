package schema

import (
	"github.com/cuemby/datafold/pkg/types"
)

// Validate checks a schema's structure — required fields, payment
// configuration, and the rename/map rule graph — using resolve to look
// up mapper source schemas. It does not touch the registry itself, so it
// can be exercised standalone in tests.
func Validate(s *types.Schema, resolve sourceResolver) error {
	if s.Name == "" {
		return types.ErrSchemaInvalid.WithSchema(s.Name, "schema name must not be empty")
	}

	if s.PaymentConfig.MinPaymentThreshold < 0 {
		return types.ErrSchemaInvalid.WithSchema(s.Name, "min_payment_threshold must be >= 0")
	}

	for fieldName, spec := range s.Fields {
		if err := validatePaymentConfig(s.Name, fieldName, spec.PaymentConfig); err != nil {
			return err
		}
		if err := validatePolicyDistance(s.Name, fieldName, spec.PermissionPolicy); err != nil {
			return err
		}
	}

	if s.IsRange() {
		if s.Range == nil || s.Range.RangeKey == "" {
			return types.ErrSchemaInvalid.WithSchema(s.Name, "range schema must declare a range_key")
		}
		spec, ok := s.Fields[s.Range.RangeKey]
		if !ok {
			return types.ErrSchemaInvalid.WithSchema(s.Name, "range_key field "+s.Range.RangeKey+" not declared")
		}
		if spec.FieldType != types.FieldTypeRange {
			return types.ErrSchemaInvalid.WithSchema(s.Name, "range_key field "+s.Range.RangeKey+" must have field_type range")
		}
	}

	if err := validateMapperBlocks(s, resolve); err != nil {
		return err
	}

	if _, err := evaluateMapper(s, resolve); err != nil {
		return err
	}
	if err := detectMapperCycle(s, resolve); err != nil {
		return err
	}

	return nil
}

func validatePaymentConfig(schemaName, field string, pc types.PaymentConfig) error {
	if pc.BaseMultiplier <= 0 {
		return fieldErr(schemaName, field, "base_multiplier must be > 0")
	}
	switch pc.TrustDistanceScaling.Kind {
	case types.ScalingLinear:
		if pc.TrustDistanceScaling.MinFactor < 1 {
			return fieldErr(schemaName, field, "linear scaling min_factor must be >= 1")
		}
	case types.ScalingExponential:
		if pc.TrustDistanceScaling.MinFactor < 1 {
			return fieldErr(schemaName, field, "exponential scaling min_factor must be >= 1")
		}
		if pc.TrustDistanceScaling.Base <= 0 {
			return fieldErr(schemaName, field, "exponential scaling base must be > 0")
		}
	}
	if pc.MinPayment != nil && *pc.MinPayment < 0 {
		return fieldErr(schemaName, field, "min_payment must be >= 0 when present")
	}
	return nil
}

func validatePolicyDistance(schemaName, field string, pp types.PermissionPolicy) error {
	if pp.ReadPolicy.Kind == types.PolicyDistance && pp.ReadPolicy.Distance < 0 {
		return fieldErr(schemaName, field, "read distance must be non-negative")
	}
	if pp.WritePolicy.Kind == types.PolicyDistance && pp.WritePolicy.Distance < 0 {
		return fieldErr(schemaName, field, "write distance must be non-negative")
	}
	return nil
}

func validateMapperBlocks(s *types.Schema, resolve sourceResolver) error {
	for _, block := range s.SchemaMappers {
		src, ok := resolve(block.SourceSchemaName)
		if !ok {
			return types.ErrSchemaInvalid.WithSchema(s.Name, "mapper references unknown source schema "+block.SourceSchemaName)
		}
		for _, rule := range block.Rules {
			switch rule.Kind {
			case types.MapperRuleRename:
				if _, ok := src.Fields[rule.SourceField]; !ok {
					return types.ErrSchemaInvalid.WithSchema(s.Name, "mapper rename references unknown source field "+rule.SourceField)
				}
			case types.MapperRuleMap:
				if _, ok := src.Fields[rule.Field]; !ok {
					return types.ErrSchemaInvalid.WithSchema(s.Name, "mapper map rule references unknown source field "+rule.Field)
				}
			}
		}
	}
	return nil
}

// detectMapperCycle walks the rename/map graph starting at s: an edge goes
// from (schema, field) to the source (schema, field) it was redirected
// from. A depth-first walk that revisits a node in its own current path
// indicates a cycle.
func detectMapperCycle(s *types.Schema, resolve sourceResolver) error {
	visiting := make(map[string]bool)

	var walk func(schemaName, field string) error
	walk = func(schemaName, field string) error {
		node := schemaName + "\x00" + field
		if visiting[node] {
			return types.ErrSchemaInvalid.WithSchema(s.Name, "field mapper graph contains a cycle at "+node)
		}
		visiting[node] = true
		defer delete(visiting, node)

		cur, ok := resolve(schemaName)
		if !ok {
			return nil
		}
		for _, block := range cur.SchemaMappers {
			for _, rule := range block.Rules {
				switch rule.Kind {
				case types.MapperRuleRename:
					if rule.TargetField == field {
						if err := walk(block.SourceSchemaName, rule.SourceField); err != nil {
							return err
						}
					}
				case types.MapperRuleMap:
					if rule.Field == field {
						if err := walk(block.SourceSchemaName, rule.Field); err != nil {
							return err
						}
					}
				}
			}
		}
		return nil
	}

	for fieldName := range s.Fields {
		if err := walk(s.Name, fieldName); err != nil {
			return err
		}
	}
	for _, block := range s.SchemaMappers {
		for _, rule := range block.Rules {
			target := rule.TargetField
			if rule.Kind == types.MapperRuleMap {
				target = rule.Field
			}
			if target == "" {
				continue
			}
			if err := walk(s.Name, target); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldErr(schemaName, field, msg string) error {
	if field == "" {
		return types.ErrSchemaInvalid.WithSchema(schemaName, msg)
	}
	return types.ErrSchemaInvalid.WithField(schemaName, field, msg)
}
