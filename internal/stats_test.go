package internal

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat/distuv"
)

// Two-sided 99.9% bound, about 3.29 standard errors.
var z = distuv.UnitNormal.Quantile(1 - 0.001/2)

var schemes = []Scheme{Current, Legacy}

func assertProp(t *testing.T, observed, expected float64, n int, msg string) {
	t.Helper()
	se := z * math.Sqrt(expected*(1-expected)/float64(n))
	assert.LessOrEqualf(t, math.Abs(observed-expected), se,
		"%s: observed %.4f, expected %.4f", msg, observed, expected)
}

// Checks every observed value against its expected density. A value with no
// entry in density has expected density 0 and must never be observed.
func assertDensity(t *testing.T, xs []any, density map[any]float64, msg string) {
	t.Helper()
	counts := make(map[any]int)
	for _, x := range xs {
		counts[x]++
	}
	for v, c := range counts {
		assertProp(t, float64(c)/float64(len(xs)), density[v], len(xs),
			fmt.Sprintf("%s value %#v", msg, v))
	}
}

// Normalizes weights into densities, merging repeated values.
func massToDensity(values []any, mass []float64) map[any]float64 {
	total := 0.0
	for _, m := range mass {
		total += m
	}
	out := make(map[any]float64)
	for i, v := range values {
		out[v] += mass[i] / total
	}
	return out
}
