package assign

import "github.com/awused/go-assign/internal"

// Scheme converts salts to hash values and uniform variates. Every
// evaluation within one Assignment uses the same Scheme.
type Scheme = internal.Scheme

var (
	// Current hashes with xxhash64 truncated to 53 bits.
	Current = internal.Current
	// Legacy reproduces the historical sha1-based conversion bit for bit.
	Legacy = internal.Legacy
)

// SchemeByName accepts "current" (or "") and "legacy".
func SchemeByName(name string) (Scheme, error) {
	return internal.SchemeByName(name)
}
