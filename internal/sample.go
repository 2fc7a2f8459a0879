package internal

// Sample draws Draws distinct positions of Choices without replacement. With
// Weights set, each position is picked proportionally to the weights of the
// positions not yet drawn.
type Sample struct {
	Choices  []any
	Draws    int
	Weights  []float64
	Unit     Units
	Salt     string
	FullSalt string
}

func (o Sample) OpName() string { return "sample" }

func (o Sample) Validate() error {
	if o.Draws < 0 {
		return ErrNegativeDraws
	}
	if o.Draws > len(o.Choices) {
		return ErrTooManyDraws
	}
	if o.Weights != nil {
		if len(o.Weights) != len(o.Choices) {
			return ErrWeightsMismatch
		}
		if _, err := validateWeights(o.Weights); err != nil {
			return err
		}
		positive := 0
		for _, w := range o.Weights {
			if w > 0 {
				positive++
			}
		}
		if o.Draws > positive {
			return ErrTooManyDraws
		}
	}
	return validateUnits(o.Unit)
}

func (o Sample) salting() (Units, Salting) {
	return o.Unit, Salting{Salt: o.Salt, FullSalt: o.FullSalt}
}

// Use rejection when draws*rejectionRatio <= len(choices)
const rejectionRatio = 4

func (o Sample) eval(src source) (any, error) {
	switch {
	case o.Weights != nil:
		return sampleWeighted(src, o.Choices, o.Weights, o.Draws), nil
	case src.scheme == Legacy:
		return shuffleFull(src, o.Choices, o.Draws), nil
	case o.Draws*rejectionRatio <= len(o.Choices):
		return sampleRejection(src, o.Choices, o.Draws), nil
	}
	return shufflePartial(src, o.Choices, o.Draws), nil
}

// Fisher-Yates from the back over the whole list, keeping the head. Frozen
// for the legacy scheme.
func shuffleFull(src source, choices []any, draws int) []any {
	out := append([]any(nil), choices...)
	for i := len(out) - 1; i > 0; i-- {
		j := src.intnAt(i, i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out[:draws]
}

// Forward Fisher-Yates that stops once the first draws positions are fixed.
func shufflePartial(src source, choices []any, draws int) []any {
	out := append([]any(nil), choices...)
	n := len(out)
	for i := 0; i < draws && i < n-1; i++ {
		j := i + src.intnAt(i, n-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:draws]
}

/*
Draws indices directly and discards repeats. The attempt number, not the
output position, is appended to the salt, so a rejected index costs one extra
hash.

Attempts are capped so a pathological salt cannot spin; past the cap the
partial shuffle decides instead, which is just as deterministic.
*/
func sampleRejection(src source, choices []any, draws int) []any {
	limit := 64*draws + 64
	seen := make(map[int]struct{}, draws)
	out := make([]any, 0, draws)
	for attempt := 0; len(out) < draws; attempt++ {
		if attempt >= limit {
			return shufflePartial(src, choices, draws)
		}
		j := src.intnAt(attempt, len(choices))
		if _, dup := seen[j]; dup {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, choices[j])
	}
	return out
}

// Position k is a weighted choice over the remaining items using the k-th
// re-salted variate. A drawn item has its weight zeroed, which keeps every
// other index stable.
func sampleWeighted(src source, choices []any, weights []float64, draws int) []any {
	w := append([]float64(nil), weights...)
	out := make([]any, 0, draws)
	for k := 0; k < draws; k++ {
		total := 0.0
		for _, x := range w {
			total += x
		}
		i := pickWeighted(w, total, src.float64At(k))
		if i < 0 {
			break
		}
		out = append(out, choices[i])
		w[i] = 0
	}
	return out
}
