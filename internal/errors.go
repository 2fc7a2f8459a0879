package internal

import (
	"errors"
	"fmt"
)

// ErrConfig is the root of every configuration failure. All of the more
// specific errors below wrap it.
var ErrConfig = errors.New("assign: invalid operator configuration")

var (
	ErrEmptyName       = fmt.Errorf("%w: variable name must not be empty", ErrConfig)
	ErrEmptyChoices    = fmt.Errorf("%w: choices must not be empty", ErrConfig)
	ErrWeightsMismatch = fmt.Errorf("%w: choices and weights differ in length", ErrConfig)
	ErrInvalidWeight   = fmt.Errorf("%w: weights must be finite and non-negative", ErrConfig)
	ErrZeroWeights     = fmt.Errorf("%w: weights must not all be zero", ErrConfig)
	ErrTooManyDraws    = fmt.Errorf("%w: draws exceeds the number of choices", ErrConfig)
	ErrNegativeDraws   = fmt.Errorf("%w: draws must not be negative", ErrConfig)
	ErrInvalidRange    = fmt.Errorf("%w: invalid min/max range", ErrConfig)
	ErrInvalidP        = fmt.Errorf("%w: p must be in [0, 1]", ErrConfig)
	ErrEmptyUnit       = fmt.Errorf("%w: unit must not be empty", ErrConfig)
	ErrInvalidUnit     = fmt.Errorf("%w: unsupported unit value", ErrConfig)
	ErrUnknownScheme   = fmt.Errorf("%w: unknown hash scheme", ErrConfig)
	ErrNilOp           = fmt.Errorf("%w: nil operator", ErrConfig)
)

// ConfigError reports which variable and operator failed to evaluate.
type ConfigError struct {
	Name string
	Op   string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Name, e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
