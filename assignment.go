package assign

import (
	"sort"

	"github.com/awused/go-assign/internal"
)

/**
An Assignment with no locking. Unsafe to use concurrently from multiple
goroutines; build it from one goroutine and share it only once it is
complete.
*/
type unsafe struct {
	b *internal.Base
}

// New returns an Assignment for experimentID that is not safe for
// concurrent use. Different Assignments never need coordination, even for the
// same experiment.
func New(experimentID string, opts ...Option) Assignment {
	return &unsafe{b: newBase(experimentID, opts)}
}

func newBase(experimentID string, opts []Option) *internal.Base {
	o := &options{scheme: Current}
	for _, opt := range opts {
		opt(o)
	}

	b := internal.NewBase(experimentID, o.scheme)
	b.SetLogger(o.logger)

	// Sorted so the initial order doesn't depend on map iteration
	names := make([]string, 0, len(o.overrides))
	for n := range o.overrides {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		b.Override(n, o.overrides[n])
	}
	return b
}

func (t *unsafe) Set(name string, v any) error {
	return t.b.Set(name, v)
}

func (t *unsafe) Get(name string) Value {
	return t.b.Get(name)
}

func (t *unsafe) ExperimentID() string {
	return t.b.ExperimentID()
}

func (t *unsafe) Scheme() Scheme {
	return t.b.Scheme()
}

func (t *unsafe) Names() []string {
	return t.b.Names()
}

func (t *unsafe) Entries() []Entry {
	return t.b.Entries()
}

func (t *unsafe) MarshalJSON() ([]byte, error) {
	return t.b.MarshalJSON()
}
