package definition

import (
	"fmt"
	"math"

	assign "github.com/awused/go-assign"
	"github.com/go-viper/mapstructure/v2"
)

// Keys every operator accepts besides its own.
var commonKeys = []string{"name", "op", "unit", "salt", "full_salt"}

type salting struct {
	Salt     string `koanf:"salt"`
	FullSalt string `koanf:"full_salt"`
}

type builder func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error)

type opKind struct {
	required []string
	optional []string
	build    builder
}

var opKinds = map[string]opKind{
	"bernoulliTrial": {
		required: []string{"p"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				P float64 `koanf:"p"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.BernoulliTrial{P: c.P, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"bernoulliFilter": {
		required: []string{"p", "choices"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				P       float64 `koanf:"p"`
				Choices []any   `koanf:"choices"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.BernoulliFilter{
					P: c.P, Choices: c.Choices, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"randomFloat": {
		required: []string{"min", "max"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				Min float64 `koanf:"min"`
				Max float64 `koanf:"max"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.RandomFloat{
					Min: c.Min, Max: c.Max, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"randomInteger": {
		required: []string{"min", "max"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				Min float64 `koanf:"min"`
				Max float64 `koanf:"max"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			lo, err := integral("min", c.Min)
			if err != nil {
				return nil, err
			}
			hi, err := integral("max", c.Max)
			if err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.RandomInteger{
					Min: lo, Max: hi, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"uniformChoice": {
		required: []string{"choices"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				Choices []any `koanf:"choices"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.UniformChoice{
					Choices: c.Choices, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"weightedChoice": {
		required: []string{"choices", "weights"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				Choices []any     `koanf:"choices"`
				Weights []float64 `koanf:"weights"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.WeightedChoice{
					Choices: c.Choices, Weights: c.Weights, Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
	"sample": {
		required: []string{"choices", "draws"},
		optional: []string{"weights"},
		build: func(raw map[string]any, s salting) (func(assign.Units) assign.Op, error) {
			var c struct {
				Choices []any     `koanf:"choices"`
				Draws   float64   `koanf:"draws"`
				Weights []float64 `koanf:"weights"`
			}
			if err := decode(raw, &c); err != nil {
				return nil, err
			}
			draws, err := integral("draws", c.Draws)
			if err != nil {
				return nil, err
			}
			return func(u assign.Units) assign.Op {
				return assign.Sample{
					Choices: c.Choices, Draws: int(draws), Weights: c.Weights,
					Unit: u, Salt: s.Salt, FullSalt: s.FullSalt}
			}, nil
		},
	},
}

func parseVariable(raw map[string]any) (Variable, error) {
	name, _ := raw["name"].(string)
	if name == "" {
		return Variable{}, fmt.Errorf("%w: name", ErrMissingKey)
	}
	op, _ := raw["op"].(string)
	where := fmt.Sprintf("variable %q", name)

	if op == "literal" {
		if err := checkKeys(where, raw, keySet("name", "op", "value"), keySet("name", "op", "value")); err != nil {
			return Variable{}, err
		}
		return Variable{Name: name, OpName: op, Value: raw["value"]}, nil
	}

	kind, ok := opKinds[op]
	if !ok {
		return Variable{}, fmt.Errorf("%w %q in %s", ErrUnknownOp, op, where)
	}

	allowed := keySet(append(append(append([]string(nil), commonKeys...), kind.required...), kind.optional...)...)
	required := keySet(append([]string{"name", "op", "unit"}, kind.required...)...)
	if err := checkKeys(where, raw, allowed, required); err != nil {
		return Variable{}, err
	}

	unit, err := stringList("unit", raw["unit"])
	if err != nil {
		return Variable{}, err
	}
	if len(unit) == 0 || unit[0] == "" {
		return Variable{}, fmt.Errorf("%w: unit in %s", ErrMissingKey, where)
	}

	var s salting
	if err := decode(raw, &s); err != nil {
		return Variable{}, fmt.Errorf("%s: %w", where, err)
	}

	build, err := kind.build(raw, s)
	if err != nil {
		return Variable{}, fmt.Errorf("%s: %w", where, err)
	}

	// Catch empty choices, bad weights and the like now. The placeholder
	// unit is always valid.
	if err := build(assign.Units{""}).Validate(); err != nil {
		return Variable{}, &assign.ConfigError{Name: name, Op: op, Err: err}
	}

	return Variable{Name: name, OpName: op, Unit: unit, build: build}, nil
}

// decode copies the keys target declares out of raw without weak typing, so
// a string where a number belongs is an error rather than a conversion.
func decode(raw map[string]any, target any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		Result:           target,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return nil
}

func integral(key string, f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidKey, key)
	}
	return int64(f), nil
}
