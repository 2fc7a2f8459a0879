package internal

import "strconv"

// Salting holds an operator's salt overrides. Empty strings mean unset.
type Salting struct {
	Salt     string
	FullSalt string
}

/*
ComposeSalt builds the exact string that is hashed for an operator.

	full salt set:  <fullSalt>.<unit>
	otherwise:      <experimentID>.<salt or name>.<unit>

where unit is the already joined unit string. FullSalt replaces the
experiment and the variable salt entirely, which is how two experiments
share a randomization.
*/
func ComposeSalt(experimentID, name string, s Salting, unit string) string {
	if s.FullSalt != "" {
		return s.FullSalt + Separator + unit
	}
	salt := s.Salt
	if salt == "" {
		salt = name
	}
	return experimentID + Separator + salt + Separator + unit
}

// appendIndex re-salts a composed salt for the i-th decision of a
// multi-draw operator.
func appendIndex(salt string, i int) string {
	return salt + Separator + strconv.Itoa(i)
}
