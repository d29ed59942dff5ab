package types

// SchemaType distinguishes a document-per-ref schema from one whose records
// are keyed by the string value of a designated range_key field.
type SchemaType string

const (
	SchemaTypeSingle SchemaType = "single"
	SchemaTypeRange  SchemaType = "range"
)

// FieldType describes the cardinality of a field's storage.
type FieldType string

const (
	FieldTypeSingle     FieldType = "single"
	FieldTypeCollection FieldType = "collection"
	FieldTypeRange      FieldType = "range"
)

// PolicyRequirement is either NoRequirement or a minimum trust Distance.
type PolicyRequirementKind string

const (
	PolicyNoRequirement PolicyRequirementKind = "no_requirement"
	PolicyDistance      PolicyRequirementKind = "distance"
)

type PolicyRequirement struct {
	Kind     PolicyRequirementKind `json:"kind"`
	Distance int                   `json:"distance,omitempty"`
}

func NoRequirement() PolicyRequirement { return PolicyRequirement{Kind: PolicyNoRequirement} }
func DistanceRequirement(n int) PolicyRequirement {
	return PolicyRequirement{Kind: PolicyDistance, Distance: n}
}

// PermissionPolicy carries the read/write admission rules for a field,
// plus optional per-key explicit allowances that bypass distance checks.
type PermissionPolicy struct {
	ReadPolicy  PolicyRequirement `json:"read_policy"`
	WritePolicy PolicyRequirement `json:"write_policy"`

	// ExplicitReadPolicy/ExplicitWritePolicy map a caller public-key
	// identifier to the number of operations that key may perform when
	// ReadPolicy/WritePolicy alone would deny it; the gate tracks the
	// remaining count in-process. A key absent from the map has no
	// explicit allowance.
	ExplicitReadPolicy  map[string]int `json:"explicit_read_policy,omitempty"`
	ExplicitWritePolicy map[string]int `json:"explicit_write_policy,omitempty"`
}

// ScalingKind selects how a field's payment factor grows with trust distance.
type ScalingKind string

const (
	ScalingNone        ScalingKind = "none"
	ScalingLinear      ScalingKind = "linear"
	ScalingExponential ScalingKind = "exponential"
)

// TrustDistanceScaling computes a payment multiplier from trust distance.
type TrustDistanceScaling struct {
	Kind ScalingKind `json:"kind"`

	// Linear: factor = max(min_factor, slope*distance + intercept)
	Slope     float64 `json:"slope,omitempty"`
	Intercept float64 `json:"intercept,omitempty"`

	// Exponential: factor = max(min_factor, base^(scale*distance))
	Base  float64 `json:"base,omitempty"`
	Scale float64 `json:"scale,omitempty"`

	MinFactor float64 `json:"min_factor,omitempty"`
}

// PaymentConfig describes how a field (or a schema's default) is priced.
type PaymentConfig struct {
	BaseMultiplier       float64              `json:"base_multiplier"`
	TrustDistanceScaling TrustDistanceScaling `json:"trust_distance_scaling"`
	MinPayment           *float64             `json:"min_payment,omitempty"`

	// MinPaymentThreshold is only meaningful on a schema-level PaymentConfig:
	// it lower-bounds the aggregate payment required for an operation.
	MinPaymentThreshold float64 `json:"min_payment_threshold,omitempty"`
}

// FieldSpec is the full declaration of a single field on a Schema.
type FieldSpec struct {
	FieldType        FieldType         `json:"field_type"`
	PermissionPolicy PermissionPolicy  `json:"permission_policy"`
	PaymentConfig    PaymentConfig     `json:"payment_config"`

	// RefAtomUUID is the AtomRef identifier currently holding this field's
	// head. It resolves lazily for Available schemas and is bound at
	// Approval time for single/collection fields.
	RefAtomUUID string `json:"ref_atom_uuid,omitempty"`
}

// Writable reports whether the field's write policy is ever reachable.
// A Distance requirement is always reachable (distance 0 qualifies);
// only an explicit-write-policy-only configuration with zero allowances
// everywhere would be unwritable, which this core does not attempt to
// detect structurally — writability is therefore derived from the policy
// kind alone, false only for the cases the registry can determine
// statically.
func (f FieldSpec) Writable() bool {
	switch f.PermissionPolicy.WritePolicy.Kind {
	case PolicyNoRequirement, PolicyDistance:
		return true
	default:
		return false
	}
}

// RangeConfig names the field that keys a Range schema's records.
type RangeConfig struct {
	RangeKey string `json:"range_key"`
}

// Schema is a field-typed document definition: the unit the registry,
// policy gate, and executor all operate on.
type Schema struct {
	Name          string               `json:"name"`
	Fields        map[string]FieldSpec `json:"fields"`
	PaymentConfig PaymentConfig        `json:"payment_config"`
	SchemaMappers []FieldMapperBlock   `json:"schema_mappers,omitempty"`

	SchemaType SchemaType   `json:"schema_type,omitempty"`
	Range      *RangeConfig `json:"range,omitempty"`
}

func (s *Schema) IsRange() bool {
	return s.SchemaType == SchemaTypeRange
}
