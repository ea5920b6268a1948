package gate

import "fmt"

// Policy names.
const (
	PolicyThreshold  = "threshold"
	PolicyConfidence = "confidence"
)

// Select returns the named policy. There is no default: an empty name is
// an error so the canonical policy is always an explicit choice.
func Select(name string, minConfidence float64) (Policy, error) {
	switch name {
	case PolicyThreshold:
		return NewThresholdPolicy(), nil
	case PolicyConfidence:
		return NewConfidencePolicy(minConfidence), nil
	case "":
		return nil, fmt.Errorf("no canonical gate policy selected")
	}
	return nil, fmt.Errorf("unknown gate policy %q", name)
}

// All returns one instance of every policy, for comparison reports.
func All(minConfidence float64) []Policy {
	return []Policy{NewThresholdPolicy(), NewConfidencePolicy(minConfidence)}
}
