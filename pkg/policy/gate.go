// Package policy implements the Policy Gate: per-field admission
// and payment computation for every query and mutation the executor runs.
package policy

import (
	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/metrics"
	"github.com/cuemby/datafold/pkg/types"
)

// Caller identifies the trust context an operation runs under.
type Caller struct {
	TrustDistance int
	PublicKeyID   string
}

// FieldAccess names one field touched by an operation and how.
type FieldAccess struct {
	Field string
	Type  types.AccessType
	Spec  types.FieldSpec
}

// Decision is the aggregate outcome of gating every field an operation
// touches: either admitted with a total required payment, or denied at
// the first field that failed admission. Admission is all-or-nothing:
// one denied field aborts the whole operation.
type Decision struct {
	Admitted        bool
	DeniedField     string
	DeniedAccess    types.AccessType
	RequiredPayment float64
}

// Gate evaluates admission and payment against a schema's field policies.
type Gate struct {
	usage *UsageTracker
}

// NewGate constructs a Policy Gate backed by its own usage tracker.
func NewGate() *Gate {
	return &Gate{usage: NewUsageTracker()}
}

// Evaluate admits or denies schemaName's operation across every field in
// accesses, then sums the required payment, floored by
// schemaPaymentConfig.MinPaymentThreshold. A field that appears in more
// than one entry of accesses (e.g. a filter field also being written) is
// admitted against every entry but charged once: payment is summed per
// distinct field name.
func (g *Gate) Evaluate(schemaName string, accesses []FieldAccess, caller Caller, schemaPaymentConfig types.PaymentConfig) Decision {
	var total float64
	seen := make(map[string]bool)

	for _, fa := range accesses {
		if !g.admit(schemaName, fa, caller) {
			metrics.GateDecisionsTotal.WithLabelValues(string(fa.Type), "denied").Inc()
			log.WithSchema(schemaName).Info().Str("field", fa.Field).Str("access", string(fa.Type)).Msg("policy gate denied access")
			return Decision{Admitted: false, DeniedField: fa.Field, DeniedAccess: fa.Type}
		}
		if seen[fa.Field] {
			continue
		}
		seen[fa.Field] = true
		total += requiredPayment(caller.TrustDistance, fa.Spec.PaymentConfig)
	}

	if schemaPaymentConfig.MinPaymentThreshold > total {
		total = schemaPaymentConfig.MinPaymentThreshold
	}

	for _, fa := range accesses {
		metrics.GateDecisionsTotal.WithLabelValues(string(fa.Type), "admitted").Inc()
	}
	metrics.GatePaymentRequired.Observe(total)
	return Decision{Admitted: true, RequiredPayment: total}
}

func (g *Gate) admit(schemaName string, fa FieldAccess, caller Caller) bool {
	policy := fa.Spec.PermissionPolicy.ReadPolicy
	explicit := fa.Spec.PermissionPolicy.ExplicitReadPolicy
	if fa.Type == types.AccessWrite {
		policy = fa.Spec.PermissionPolicy.WritePolicy
		explicit = fa.Spec.PermissionPolicy.ExplicitWritePolicy
	}

	switch policy.Kind {
	case types.PolicyNoRequirement:
		return true
	case types.PolicyDistance:
		if caller.TrustDistance <= policy.Distance {
			return true
		}
	}

	if explicit != nil && caller.PublicKeyID != "" {
		if initial, ok := explicit[caller.PublicKeyID]; ok {
			remaining := g.usage.Remaining(schemaName, fa.Field, string(fa.Type), caller.PublicKeyID, initial)
			if remaining > 0 {
				g.usage.Decrement(schemaName, fa.Field, string(fa.Type), caller.PublicKeyID)
				return true
			}
		}
	}

	return false
}

// requiredPayment computes a single field's payment contribution.
func requiredPayment(trustDistance int, pc types.PaymentConfig) float64 {
	factor := scale(trustDistance, pc.TrustDistanceScaling)
	required := pc.BaseMultiplier * factor
	if pc.MinPayment != nil && *pc.MinPayment > required {
		required = *pc.MinPayment
	}
	return required
}
