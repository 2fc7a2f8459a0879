// Package definition loads experiment definitions from YAML or JSON and
// evaluates them into Assignments.
//
// A definition names an experiment, its hash scheme, the inputs that make up
// a unit and an ordered list of variables:
//
//	experiment: button_test
//	scheme: current
//	inputs: [userid]
//	variables:
//	  - {name: color, op: uniformChoice, choices: [red, blue], unit: userid}
//	  - {name: size, op: weightedChoice, choices: [s, m], weights: [1, 2], unit: [userid, color]}
//
// Unknown or missing keys are rejected when the file is loaded, not when a
// unit is evaluated.
package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	assign "github.com/awused/go-assign"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrUnsupportedFormat = errors.New("assign: unsupported definition format")
	ErrParse             = errors.New("assign: cannot parse definition")
	ErrInputCount        = errors.New("assign: wrong number of unit inputs")

	ErrUnknownOp    = fmt.Errorf("%w: unknown op", assign.ErrConfig)
	ErrUnknownKey   = fmt.Errorf("%w: unknown key", assign.ErrConfig)
	ErrMissingKey   = fmt.Errorf("%w: missing key", assign.ErrConfig)
	ErrInvalidKey   = fmt.Errorf("%w: invalid value", assign.ErrConfig)
	ErrUnknownInput = fmt.Errorf("%w: unit refers to an unknown input or variable", assign.ErrConfig)
)

type Definition struct {
	Experiment string
	Scheme     assign.Scheme
	Inputs     []string
	Overrides  map[string]any
	Variables  []Variable
}

// Variable is either a literal or an operator whose unit is resolved from
// inputs and earlier variables at evaluation time.
type Variable struct {
	Name   string
	OpName string
	Unit   []string
	Value  any

	build func(assign.Units) assign.Op
}

// Op returns the variable's operator for units, or nil for a literal.
func (v Variable) Op(units assign.Units) assign.Op {
	if v.build == nil {
		return nil
	}
	return v.build(units)
}

// Load reads a definition file, picking the format from its extension.
func Load(path string) (*Definition, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// koanf splits keys on its delimiter. Names may contain dots, so use one that
// no YAML or JSON key written by hand will hold.
const keyDelim = "\x00"

var topLevelKeys = keySet("experiment", "scheme", "inputs", "overrides", "variables")

func Parse(data []byte, format Format) (*Definition, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(keyDelim)
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	raw := k.Raw()
	if err := checkKeys("definition", raw, topLevelKeys, keySet("experiment", "variables")); err != nil {
		return nil, err
	}

	d := &Definition{Experiment: k.String("experiment")}
	if d.Experiment == "" {
		return nil, fmt.Errorf("%w: experiment", ErrMissingKey)
	}

	scheme, err := assign.SchemeByName(k.String("scheme"))
	if err != nil {
		return nil, err
	}
	d.Scheme = scheme

	if k.Exists("inputs") {
		if d.Inputs, err = stringList("inputs", raw["inputs"]); err != nil {
			return nil, err
		}
	}

	known := keySet(d.Inputs...)
	if ov, ok := raw["overrides"]; ok && ov != nil {
		m, ok := ov.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: overrides must be a map", ErrInvalidKey)
		}
		d.Overrides = m
		for n := range m {
			known[n] = struct{}{}
		}
	}

	vars, ok := raw["variables"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: variables must be a list", ErrInvalidKey)
	}
	for i, rv := range vars {
		m, ok := rv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: variables[%d] must be a map", ErrInvalidKey, i)
		}
		v, err := parseVariable(m)
		if err != nil {
			return nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
		for _, u := range v.Unit {
			if _, ok := known[u]; !ok {
				return nil, fmt.Errorf("variables[%d]: %w: %q", i, ErrUnknownInput, u)
			}
		}
		known[v.Name] = struct{}{}
		d.Variables = append(d.Variables, v)
	}

	return d, nil
}

// Assign evaluates every variable for one unit. inputs are matched to
// Definition.Inputs by position.
func (d *Definition) Assign(inputs []string, opts ...assign.Option) (assign.Assignment, error) {
	if len(inputs) != len(d.Inputs) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputCount, len(inputs), len(d.Inputs))
	}
	in := make(map[string]string, len(inputs))
	for i, n := range d.Inputs {
		in[n] = inputs[i]
	}

	opts = append([]assign.Option{
		assign.WithScheme(d.Scheme),
		assign.WithOverrides(d.Overrides),
	}, opts...)
	a := assign.New(d.Experiment, opts...)

	for _, v := range d.Variables {
		if v.build == nil {
			if err := a.Set(v.Name, v.Value); err != nil {
				return nil, err
			}
			continue
		}

		units := make(assign.Units, len(v.Unit))
		for i, n := range v.Unit {
			if s, ok := in[n]; ok {
				units[i] = s
				continue
			}
			val, ok := a.Get(n).Get()
			if !ok {
				return nil, &assign.ConfigError{
					Name: v.Name, Op: v.OpName, Err: fmt.Errorf("%w: %q", ErrUnknownInput, n)}
			}
			units[i] = val
		}

		if err := a.Set(v.Name, v.build(units)); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func checkKeys(where string, m map[string]any, allowed, required map[string]struct{}) error {
	var unknown []string
	for k := range m {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w in %s: %s", ErrUnknownKey, where, strings.Join(unknown, ", "))
	}

	var missing []string
	for k := range required {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w in %s: %s", ErrMissingKey, where, strings.Join(missing, ", "))
	}
	return nil
}

func keySet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// Accepts a single string or a list of strings
func stringList(key string, v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: %s[%d] must be a non-empty string", ErrInvalidKey, key, i)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be a string or a list of strings", ErrInvalidKey, key)
}
