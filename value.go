package assign

import "github.com/awused/go-assign/internal"

// Value is either Present(v) or Absent. A present nil, 0, false or "" is
// still present.
type Value = internal.Value

var Absent = internal.Absent

func Present(v any) Value {
	return internal.Present(v)
}

// Entry is one name/value pair of an Assignment.
type Entry = internal.Entry

// Units identify the unit being assigned. Multiple values are joined in
// order.
type Units = internal.Units

// Separator joins the parts of a salt and the values of a unit.
const Separator = internal.Separator

// FormatUnit returns the string a unit value contributes to a salt.
func FormatUnit(u any) (string, error) {
	return internal.FormatUnit(u)
}

// ComposeSalt returns the exact string hashed for an operator evaluated as
// name in experimentID. unit is the joined unit string.
func ComposeSalt(experimentID, name, salt, fullSalt, unit string) string {
	return internal.ComposeSalt(experimentID, name,
		internal.Salting{Salt: salt, FullSalt: fullSalt}, unit)
}
