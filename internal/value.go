package internal

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is the result of a lookup. A present value may itself be nil, 0,
// false or "".
type Value struct {
	v  any
	ok bool
}

var Absent = Value{}

func Present(v any) Value {
	return Value{v: v, ok: true}
}

func (v Value) Get() (any, bool) {
	return v.v, v.ok
}

func (v Value) IsPresent() bool {
	return v.ok
}

// Or returns def when v is absent.
func (v Value) Or(def any) any {
	if !v.ok {
		return def
	}
	return v.v
}

func (v Value) String() string {
	if !v.ok {
		return "<absent>"
	}
	return fmt.Sprint(v.v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// Units are the ordered values identifying whoever is being assigned.
type Units []any

const Separator = "."

// FormatUnit stringifies a single unit value. The format is part of the salt
// and therefore frozen.
func FormatUnit(u any) (string, error) {
	switch v := u.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrInvalidUnit, u)
}

// Shortest round-trip decimal, switching to exponent form outside
// [1e-6, 1e21) with an unpadded exponent.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidUnit, f)
	}
	if f == 0 {
		// Negative zero too
		return "0", nil
	}
	if a := math.Abs(f); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, bits), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, bits)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits, nil
}

// JoinUnits formats every unit and joins them with Separator.
func JoinUnits(units Units) (string, error) {
	if len(units) == 0 {
		return "", ErrEmptyUnit
	}
	parts := make([]string, len(units))
	for i, u := range units {
		s, err := FormatUnit(u)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, Separator), nil
}
