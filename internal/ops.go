package internal

import (
	"math"
	"reflect"
)

// Op is a randomization operator. The set of implementations is closed: every
// Op is one of the structs in this package.
type Op interface {
	OpName() string
	// Validate rejects malformed configuration before anything is hashed.
	Validate() error

	salting() (Units, Salting)
	eval(src source) (any, error)
}

// Evaluate runs op for the variable name of an experiment. Nothing is hashed
// unless the configuration is valid.
func Evaluate(scheme Scheme, experimentID, name string, op Op) (any, error) {
	if isNilOp(op) {
		return nil, ErrNilOp
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	units, s := op.salting()
	unit, err := JoinUnits(units)
	if err != nil {
		return nil, err
	}

	return op.eval(newSource(scheme, ComposeSalt(experimentID, name, s, unit)))
}

// Also catches typed nil pointers such as (*UniformChoice)(nil), whose value
// methods would panic.
func isNilOp(op Op) bool {
	if op == nil {
		return true
	}
	v := reflect.ValueOf(op)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func validateUnits(units Units) error {
	_, err := JoinUnits(units)
	return err
}

func validateP(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return ErrInvalidP
	}
	return nil
}

// Returns the total weight
func validateWeights(weights []float64) (float64, error) {
	total := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return 0, ErrInvalidWeight
		}
		total += w
	}
	if total <= 0 || math.IsInf(total, 0) {
		return 0, ErrZeroWeights
	}
	return total, nil
}

/*
Walks the cumulative weights and returns the first index whose cumulative
weight exceeds u * total.

A zero weight leaves the running sum unchanged, so its index can never be the
first to exceed r but still keeps its position in the table. When rounding
pushes r up to the total, the last positively weighted index is returned.
*/
func pickWeighted(weights []float64, total float64, u float64) int {
	r := u * total
	cum, last := 0.0, -1
	for i, w := range weights {
		cum += w
		if w > 0 {
			last = i
		}
		if cum > r {
			return i
		}
	}
	return last
}

// BernoulliTrial returns 1 with probability P and 0 otherwise.
type BernoulliTrial struct {
	P        float64
	Unit     Units
	Salt     string
	FullSalt string
}

func (o BernoulliTrial) OpName() string { return "bernoulliTrial" }

func (o BernoulliTrial) Validate() error {
	if err := validateP(o.P); err != nil {
		return err
	}
	return validateUnits(o.Unit)
}

func (o BernoulliTrial) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o BernoulliTrial) eval(src source) (any, error) {
	u := src.float64()
	switch {
	case o.P <= 0:
		return 0, nil
	case o.P >= 1:
		return 1, nil
	case u < o.P:
		return 1, nil
	}
	return 0, nil
}

// BernoulliFilter keeps every element of Choices independently with
// probability P. Element i is decided by the i-th re-salted hash.
type BernoulliFilter struct {
	P        float64
	Choices  []any
	Unit     Units
	Salt     string
	FullSalt string
}

func (o BernoulliFilter) OpName() string { return "bernoulliFilter" }

func (o BernoulliFilter) Validate() error {
	if err := validateP(o.P); err != nil {
		return err
	}
	return validateUnits(o.Unit)
}

func (o BernoulliFilter) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o BernoulliFilter) eval(src source) (any, error) {
	out := make([]any, 0, len(o.Choices))
	for i, c := range o.Choices {
		u := src.float64At(i)
		if o.P >= 1 || (o.P > 0 && u < o.P) {
			out = append(out, c)
		}
	}
	return out, nil
}

// RandomFloat returns a float64 in [Min, Max).
type RandomFloat struct {
	Min, Max float64
	Unit     Units
	Salt     string
	FullSalt string
}

func (o RandomFloat) OpName() string { return "randomFloat" }

func (o RandomFloat) Validate() error {
	for _, f := range []float64{o.Min, o.Max} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidRange
		}
	}
	if o.Max < o.Min {
		return ErrInvalidRange
	}
	return validateUnits(o.Unit)
}

func (o RandomFloat) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o RandomFloat) eval(src source) (any, error) {
	return o.Min + src.float64()*(o.Max-o.Min), nil
}

// RandomInteger returns an int64 in [Min, Max].
type RandomInteger struct {
	Min, Max int64
	Unit     Units
	Salt     string
	FullSalt string
}

func (o RandomInteger) OpName() string { return "randomInteger" }

func (o RandomInteger) Validate() error {
	if o.Max < o.Min {
		return ErrInvalidRange
	}
	return validateUnits(o.Unit)
}

func (o RandomInteger) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o RandomInteger) eval(src source) (any, error) {
	// Two's complement wraparound gives the exact difference.
	span := uint64(o.Max) - uint64(o.Min)
	h := src.hash()
	if span == math.MaxUint64 {
		// The whole int64 range: every hash value is its own offset.
		return int64(uint64(o.Min) + h), nil
	}
	return int64(uint64(o.Min) + h%(span+1)), nil
}

// UniformChoice returns one element of Choices with equal probability.
type UniformChoice struct {
	Choices  []any
	Unit     Units
	Salt     string
	FullSalt string
}

func (o UniformChoice) OpName() string { return "uniformChoice" }

func (o UniformChoice) Validate() error {
	if len(o.Choices) == 0 {
		return ErrEmptyChoices
	}
	return validateUnits(o.Unit)
}

func (o UniformChoice) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o UniformChoice) eval(src source) (any, error) {
	return o.Choices[src.intn(len(o.Choices))], nil
}

// WeightedChoice returns Choices[i] with probability Weights[i] / sum(Weights).
type WeightedChoice struct {
	Choices  []any
	Weights  []float64
	Unit     Units
	Salt     string
	FullSalt string
}

func (o WeightedChoice) OpName() string { return "weightedChoice" }

func (o WeightedChoice) Validate() error {
	if len(o.Choices) == 0 {
		return ErrEmptyChoices
	}
	if len(o.Choices) != len(o.Weights) {
		return ErrWeightsMismatch
	}
	if _, err := validateWeights(o.Weights); err != nil {
		return err
	}
	return validateUnits(o.Unit)
}

func (o WeightedChoice) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

func (o WeightedChoice) eval(src source) (any, error) {
	total, err := validateWeights(o.Weights)
	if err != nil {
		return nil, err
	}
	return o.Choices[pickWeighted(o.Weights, total, src.float64())], nil
}

// Outcome is one possible result of an operator and its probability.
type Outcome struct {
	Value any
	P     float64
}

// Density returns the exact outcome distribution for operators that have a
// closed form and a valid configuration. Equal values are not merged.
func Density(op Op) ([]Outcome, bool) {
	switch o := op.(type) {
	case BernoulliTrial:
		if validateP(o.P) != nil {
			return nil, false
		}
		return []Outcome{{Value: 0, P: 1 - o.P}, {Value: 1, P: o.P}}, true
	case UniformChoice:
		if len(o.Choices) == 0 {
			return nil, false
		}
		out := make([]Outcome, len(o.Choices))
		for i, c := range o.Choices {
			out[i] = Outcome{Value: c, P: 1 / float64(len(o.Choices))}
		}
		return out, true
	case WeightedChoice:
		total, err := validateWeights(o.Weights)
		if err != nil || len(o.Weights) != len(o.Choices) {
			return nil, false
		}
		out := make([]Outcome, len(o.Choices))
		for i, c := range o.Choices {
			out[i] = Outcome{Value: c, P: o.Weights[i] / total}
		}
		return out, true
	}
	return nil, false
}
