package types

// MapperRuleKind selects how a single field-mapper rule projects a field.
type MapperRuleKind string

const (
	MapperRuleRename MapperRuleKind = "rename"
	MapperRuleDrop   MapperRuleKind = "drop"
	MapperRuleMap    MapperRuleKind = "map"
)

// FieldMapperRule is one declarative projection rule inside a mapper block.
type FieldMapperRule struct {
	Kind MapperRuleKind `json:"kind"`

	// Rename: SourceField on the source schema becomes TargetField on
	// the owning schema.
	SourceField string `json:"source_field,omitempty"`
	TargetField string `json:"target_field,omitempty"`

	// Drop/Map: Field names the field the rule applies to.
	Field string `json:"field,omitempty"`
}

func RenameRule(sourceField, targetField string) FieldMapperRule {
	return FieldMapperRule{Kind: MapperRuleRename, SourceField: sourceField, TargetField: targetField}
}

func DropRule(field string) FieldMapperRule {
	return FieldMapperRule{Kind: MapperRuleDrop, Field: field}
}

func MapRule(field string) FieldMapperRule {
	return FieldMapperRule{Kind: MapperRuleMap, Field: field}
}

// FieldMapperBlock declares a single-source projection: the owning schema
// is always the (implicit) target, so a block names only its source.
type FieldMapperBlock struct {
	SourceSchemaName string            `json:"source_schema_name"`
	Rules            []FieldMapperRule `json:"rules"`
}
