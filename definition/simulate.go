package definition

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	assign "github.com/awused/go-assign"
	"gonum.org/v1/gonum/stat/distuv"
)

// Bucket counts one distinct value. Values are keyed by their JSON encoding
// so that 0, "0", false and null stay apart.
type Bucket struct {
	Value string
	Count int
	// Expected probability, or -1 when the operator has no closed form
	Expected float64
}

type Histogram struct {
	Name    string
	OpName  string
	N       int
	Buckets []Bucket
	// Pearson chi-square statistic and its p-value against the operator's
	// exact distribution. PValue is NaN when there is nothing to test.
	ChiSquare float64
	PValue    float64
}

/*
Simulate evaluates the definition for n units produced by next and tallies
every variable.

For operators with a known distribution the histogram carries a chi-square
goodness of fit test; a value the distribution gives probability zero drives
the p-value to zero.
*/
func Simulate(d *Definition, n int, next func(i int) []string) ([]Histogram, error) {
	counts := make([]map[string]int, len(d.Variables))
	for i := range counts {
		counts[i] = make(map[string]int)
	}

	for i := 0; i < n; i++ {
		a, err := d.Assign(next(i))
		if err != nil {
			return nil, err
		}
		for j, v := range d.Variables {
			raw, _ := a.Get(v.Name).Get()
			key, err := valueKey(raw)
			if err != nil {
				return nil, err
			}
			counts[j][key]++
		}
	}

	out := make([]Histogram, len(d.Variables))
	for j, v := range d.Variables {
		h := Histogram{Name: v.Name, OpName: v.OpName, N: n, PValue: math.NaN()}
		expected, err := expectedDensity(d, v)
		if err != nil {
			return nil, err
		}

		keys := make(map[string]struct{}, len(counts[j])+len(expected))
		for k := range counts[j] {
			keys[k] = struct{}{}
		}
		for k := range expected {
			keys[k] = struct{}{}
		}
		for k := range keys {
			b := Bucket{Value: k, Count: counts[j][k], Expected: -1}
			if expected != nil {
				b.Expected = expected[k]
			}
			h.Buckets = append(h.Buckets, b)
		}
		sort.Slice(h.Buckets, func(a, b int) bool {
			return h.Buckets[a].Value < h.Buckets[b].Value
		})

		if expected != nil && n > 0 {
			h.ChiSquare, h.PValue = goodnessOfFit(h.Buckets, n)
		}
		out[j] = h
	}
	return out, nil
}

// nil when the variable has no closed form or is pinned by an override
func expectedDensity(d *Definition, v Variable) (map[string]float64, error) {
	if _, pinned := d.Overrides[v.Name]; pinned {
		return nil, nil
	}
	op := v.Op(assign.Units{""})
	if op == nil {
		return nil, nil
	}
	outcomes, ok := assign.Density(op)
	if !ok {
		return nil, nil
	}

	out := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		key, err := valueKey(o.Value)
		if err != nil {
			return nil, err
		}
		out[key] += o.P
	}
	return out, nil
}

func goodnessOfFit(buckets []Bucket, n int) (float64, float64) {
	chi, df := 0.0, -1
	for _, b := range buckets {
		if b.Expected <= 0 {
			if b.Count > 0 {
				return math.Inf(1), 0
			}
			continue
		}
		e := b.Expected * float64(n)
		diff := float64(b.Count) - e
		chi += diff * diff / e
		df++
	}
	if df < 1 {
		return chi, 1
	}
	return chi, 1 - distuv.ChiSquared{K: float64(df)}.CDF(chi)
}

func valueKey(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cannot tally %T: %w", v, err)
	}
	return string(b), nil
}
