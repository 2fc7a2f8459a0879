package internal

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

/*
Schemes turn a composed salt into a hash value and a hash value into a
uniform variate.

Both schemes are frozen. Changing either one changes the bucket of every unit
that has already been assigned, so any new conversion must be added as a new
scheme rather than by editing these.
*/
type Scheme interface {
	Name() string
	// Hash is deterministic for every input, including "".
	Hash(s string) uint64
	// Uniform maps a value returned by Hash onto [0,1].
	Uniform(h uint64) float64
	// Max is the largest value Hash can return.
	Max() uint64
}

var (
	Current Scheme = currentScheme{}
	Legacy  Scheme = legacyScheme{}
)

func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "", Current.Name():
		return Current, nil
	case Legacy.Name():
		return Legacy, nil
	}
	return nil, ErrUnknownScheme
}

// Only the top 53 bits feed the uniform variate, so h / 2^53 is exact and
// never reaches 1. Integer draws use the whole 64-bit value.
const uniformBits = 53

// xxhash64 of the salt.
type currentScheme struct{}

func (currentScheme) Name() string { return "current" }

func (currentScheme) Hash(s string) uint64 {
	return xxhash.Sum64String(s)
}

func (currentScheme) Uniform(h uint64) float64 {
	return float64(h>>(64-uniformBits)) / (1 << uniformBits)
}

func (currentScheme) Max() uint64 { return math.MaxUint64 }

const (
	legacyDigits = 15
	legacyMax    = 0xFFFFFFFFFFFFFFF
)

// The first 15 hex digits of sha1, divided by 0xFFFFFFFFFFFFFFF. Only the
// all-ones hash maps to exactly 1.
type legacyScheme struct{}

func (legacyScheme) Name() string { return "legacy" }

func (legacyScheme) Hash(s string) uint64 {
	sum := sha1.Sum([]byte(s))
	var buf [sha1.Size * 2]byte
	hex.Encode(buf[:], sum[:])
	// 15 hex digits always fit in 60 bits
	h, _ := strconv.ParseUint(string(buf[:legacyDigits]), 16, 64)
	return h
}

func (legacyScheme) Uniform(h uint64) float64 {
	return float64(h) / float64(legacyMax)
}

func (legacyScheme) Max() uint64 { return legacyMax }
