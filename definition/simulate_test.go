package definition

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simYAML = `
experiment: sim
inputs: [id]
overrides:
  pinned: fixed
variables:
  - {name: flag, op: bernoulliTrial, p: 0.5, unit: id}
  - {name: color, op: uniformChoice, choices: [red, green, blue], unit: id}
  - {name: size, op: weightedChoice, choices: [s, m, l], weights: [1, 2, 1], unit: id}
  - {name: slots, op: sample, choices: [1, 2, 3], draws: 2, unit: id}
  - {name: pinned, op: uniformChoice, choices: [a, b], unit: id}
  - {name: version, op: literal, value: 3}
`

func TestSimulate(t *testing.T) {
	d, err := Parse([]byte(simYAML), FormatYAML)
	require.NoError(t, err)

	hs, err := Simulate(d, 1000, func(i int) []string {
		return []string{strconv.Itoa(i)}
	})
	require.NoError(t, err)
	require.Len(t, hs, 6)

	byName := map[string]Histogram{}
	for _, h := range hs {
		assert.Equal(t, 1000, h.N)
		total := 0
		for _, b := range h.Buckets {
			total += b.Count
		}
		assert.Equal(t, 1000, total, h.Name)
		byName[h.Name] = h
	}

	flag := byName["flag"]
	assert.Equal(t, "bernoulliTrial", flag.OpName)
	assert.Equal(t, []Bucket{
		{Value: "0", Count: 503, Expected: 0.5},
		{Value: "1", Count: 497, Expected: 0.5},
	}, flag.Buckets)
	assert.InDelta(t, 0.036, flag.ChiSquare, 1e-9)

	color := byName["color"]
	require.Len(t, color.Buckets, 3)
	assert.Equal(t, `"blue"`, color.Buckets[0].Value)
	assert.Equal(t, 329, color.Buckets[0].Count)
	assert.InDelta(t, 1.0/3, color.Buckets[0].Expected, 1e-12)

	for _, name := range []string{"flag", "color", "size"} {
		assert.Greater(t, byName[name].PValue, 0.001, name)
	}

	// No closed form, so nothing to test against
	slots := byName["slots"]
	assert.True(t, math.IsNaN(slots.PValue))
	for _, b := range slots.Buckets {
		assert.Equal(t, -1.0, b.Expected)
	}

	pinned := byName["pinned"]
	assert.Equal(t, []Bucket{{Value: `"fixed"`, Count: 1000, Expected: -1}}, pinned.Buckets)
	assert.True(t, math.IsNaN(pinned.PValue))

	version := byName["version"]
	assert.Equal(t, []Bucket{{Value: "3", Count: 1000, Expected: -1}}, version.Buckets)
}

func TestGoodnessOfFit(t *testing.T) {
	chi, p := goodnessOfFit([]Bucket{
		{Value: "a", Count: 50, Expected: 0.5},
		{Value: "b", Count: 50, Expected: 0.5},
	}, 100)
	assert.Zero(t, chi)
	assert.InDelta(t, 1, p, 1e-12)

	// A value that should never appear
	chi, p = goodnessOfFit([]Bucket{
		{Value: "a", Count: 99, Expected: 1},
		{Value: "b", Count: 1, Expected: 0},
	}, 100)
	assert.True(t, math.IsInf(chi, 1))
	assert.Zero(t, p)

	// Unobserved zero-probability values are fine
	_, p = goodnessOfFit([]Bucket{
		{Value: "a", Count: 100, Expected: 1},
		{Value: "b", Count: 0, Expected: 0},
	}, 100)
	assert.Equal(t, 1.0, p)

	_, p = goodnessOfFit([]Bucket{
		{Value: "a", Count: 90, Expected: 0.5},
		{Value: "b", Count: 10, Expected: 0.5},
	}, 100)
	assert.Less(t, p, 0.001)
}

func TestValueKeyKeepsTypesApart(t *testing.T) {
	keys := map[string]bool{}
	for _, v := range []any{0, "0", false, nil, []any{0}} {
		k, err := valueKey(v)
		require.NoError(t, err)
		keys[k] = true
	}
	assert.Len(t, keys, 5)

	_, err := valueKey(math.NaN())
	assert.Error(t, err)
}
