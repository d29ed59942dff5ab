/*
Package policy implements the Policy Gate: per-field admission and payment
computation applied to every query and mutation. Evaluate admits a
field if its policy is NoRequirement, the caller's trust distance satisfies
a Distance requirement, or an explicit per-key allowance remains (tracked
in-process by UsageTracker, which the gate decrements on each granted use).
Admitted fields accumulate a required payment via scale(), floored by the
schema's min_payment_threshold; any single denial aborts the whole
operation before payment is computed, matching the all-or-nothing rule.
*/
package policy
