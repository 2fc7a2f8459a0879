package assign

import (
	"encoding/json"

	"github.com/awused/go-assign/internal"
)

var (
	ErrConfig          = internal.ErrConfig
	ErrEmptyName       = internal.ErrEmptyName
	ErrEmptyChoices    = internal.ErrEmptyChoices
	ErrWeightsMismatch = internal.ErrWeightsMismatch
	ErrInvalidWeight   = internal.ErrInvalidWeight
	ErrZeroWeights     = internal.ErrZeroWeights
	ErrTooManyDraws    = internal.ErrTooManyDraws
	ErrNegativeDraws   = internal.ErrNegativeDraws
	ErrInvalidRange    = internal.ErrInvalidRange
	ErrInvalidP        = internal.ErrInvalidP
	ErrEmptyUnit       = internal.ErrEmptyUnit
	ErrInvalidUnit     = internal.ErrInvalidUnit
	ErrUnknownScheme   = internal.ErrUnknownScheme
	ErrNilOp           = internal.ErrNilOp
)

type ConfigError = internal.ConfigError

/*
Assignment is a named, ordered set of evaluated operator results for one
experiment.

Set evaluates operators eagerly and either stores the result or returns a
*ConfigError without changing anything. Get never fails; unset names are
reported as Absent.
*/
type Assignment interface {
	Set(name string, v any) error
	Get(name string) Value

	ExperimentID() string
	Scheme() Scheme
	Names() []string
	Entries() []Entry

	json.Marshaler
}
