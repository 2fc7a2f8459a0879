package assign

import (
	"sync"

	"github.com/awused/go-assign/internal"
)

/**
An Assignment guarded by a mutex, safe for use from multiple goroutines.
*/
type synced struct {
	b *internal.Base
	m *sync.Mutex
}

func NewSynced(experimentID string, opts ...Option) Assignment {
	return &synced{b: newBase(experimentID, opts), m: &sync.Mutex{}}
}

func (t *synced) Set(name string, v any) error {
	t.m.Lock()
	err := t.b.Set(name, v)
	t.m.Unlock()
	return err
}

func (t *synced) Get(name string) Value {
	t.m.Lock()
	v := t.b.Get(name)
	t.m.Unlock()
	return v
}

// Fixed at construction, no lock needed
func (t *synced) ExperimentID() string {
	return t.b.ExperimentID()
}

func (t *synced) Scheme() Scheme {
	return t.b.Scheme()
}

func (t *synced) Names() []string {
	t.m.Lock()
	ns := t.b.Names()
	t.m.Unlock()
	return ns
}

func (t *synced) Entries() []Entry {
	t.m.Lock()
	es := t.b.Entries()
	t.m.Unlock()
	return es
}

func (t *synced) MarshalJSON() ([]byte, error) {
	t.m.Lock()
	defer t.m.Unlock()
	return t.b.MarshalJSON()
}
