package policy

import (
	"math"

	"github.com/cuemby/datafold/pkg/types"
)

// scale computes the trust-distance payment factor for a field.
func scale(trustDistance int, s types.TrustDistanceScaling) float64 {
	d := float64(trustDistance)
	switch s.Kind {
	case types.ScalingLinear:
		return math.Max(s.MinFactor, s.Slope*d+s.Intercept)
	case types.ScalingExponential:
		return math.Max(s.MinFactor, math.Pow(s.Base, s.Scale*d))
	default:
		return 1.0
	}
}
