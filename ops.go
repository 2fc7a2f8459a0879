package assign

import "github.com/awused/go-assign/internal"

// Op is implemented only by the operator types below.
type Op = internal.Op

type (
	BernoulliTrial  = internal.BernoulliTrial
	BernoulliFilter = internal.BernoulliFilter
	RandomFloat     = internal.RandomFloat
	RandomInteger   = internal.RandomInteger
	UniformChoice   = internal.UniformChoice
	WeightedChoice  = internal.WeightedChoice
	Sample          = internal.Sample
)

type Outcome = internal.Outcome

// Density returns the exact distribution of op when it has a closed form.
func Density(op Op) ([]Outcome, bool) {
	return internal.Density(op)
}

// Evaluate runs op outside of any Assignment, exactly as Set would for name.
func Evaluate(scheme Scheme, experimentID, name string, op Op) (any, error) {
	return internal.Evaluate(scheme, experimentID, name, op)
}
