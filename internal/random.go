package internal

// Stateless source of hash-derived decisions for one composed salt.
//
// Every method is a pure function of (scheme, salt, index), so the same
// source can be shared freely and two calls with the same index always agree.
type source struct {
	scheme Scheme
	salt   string
}

func newSource(scheme Scheme, salt string) source {
	return source{scheme: scheme, salt: salt}
}

func (s source) hash() uint64 {
	return s.scheme.Hash(s.salt)
}

func (s source) hashAt(i int) uint64 {
	return s.scheme.Hash(appendIndex(s.salt, i))
}

// Returns a float64 in [0,1], 1 only for the legacy all-ones hash
func (s source) float64() float64 {
	return s.scheme.Uniform(s.hash())
}

func (s source) float64At(i int) float64 {
	return s.scheme.Uniform(s.hashAt(i))
}

// Returns an int in [0, n) straight from the hash value, never through a
// float
func (s source) intn(n int) int {
	return int(s.hash() % uint64(n))
}

func (s source) intnAt(i, n int) int {
	return int(s.hashAt(i) % uint64(n))
}
