package gate

import "scoreloop/internal/domain"

// Policy maps bucket statistics to a verdict. Implementations are pure.
type Policy interface {
	// Name is the stable policy identifier written to decisions.
	Name() string

	// Hash identifies the policy and its parameters.
	Hash() string

	// Decide evaluates one bucket. baseSize is the caller's base position size.
	Decide(stats domain.BucketStats, baseSize float64) Verdict
}

// Criterion is one evaluated rule of a policy.
// Pass=false on a blocking rule is what produced the verdict.
type Criterion struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Verdict is a policy's answer for one bucket.
type Verdict struct {
	Policy         string
	Code           string
	Action         domain.Action
	SizeMultiplier float64
	Reason         string
	Checks         []Criterion
}

// Allow reports whether the verdict permits trading.
func (v Verdict) Allow() bool {
	return v.Action == domain.ActionAllow
}
