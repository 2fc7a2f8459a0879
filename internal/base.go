package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

/**
The base implementation for all assignments.

Not safe for concurrent use; the synced wrapper in the root package provides
its own locking.
*/
type Base struct {
	experimentID string
	scheme       Scheme
	logger       *slog.Logger

	names     []string
	data      map[string]any
	overrides map[string]struct{}
}

func NewBase(experimentID string, scheme Scheme) *Base {
	if scheme == nil {
		scheme = Current
	}
	return &Base{
		experimentID: experimentID,
		scheme:       scheme,
		data:         make(map[string]any),
		overrides:    make(map[string]struct{}),
	}
}

func (b *Base) SetLogger(l *slog.Logger) {
	b.logger = l
}

// Override pins name to v. Later calls to Set for name are ignored. Only
// meant to be called while the assignment is being constructed.
func (b *Base) Override(name string, v any) {
	b.store(name, v)
	b.overrides[name] = struct{}{}
}

/*
Set stores a literal, or evaluates an Op and stores its result. The Op is
salted with name unless it carries its own salt.

Either the value is stored or an error is returned and nothing changes.
*/
func (b *Base) Set(name string, v any) error {
	if name == "" {
		return &ConfigError{Err: ErrEmptyName}
	}
	if _, ok := b.overrides[name]; ok {
		return nil
	}

	op, isOp := v.(Op)
	if !isOp {
		b.store(name, v)
		return nil
	}

	out, err := Evaluate(b.scheme, b.experimentID, name, op)
	if err != nil {
		return &ConfigError{Name: name, Op: opName(op), Err: err}
	}
	if b.logger != nil {
		b.logger.Debug("evaluated operator",
			slog.String("experiment", b.experimentID),
			slog.String("scheme", b.scheme.Name()),
			slog.String("name", name),
			slog.String("op", op.OpName()),
			slog.Any("value", out))
	}
	b.store(name, out)
	return nil
}

func opName(op Op) string {
	if isNilOp(op) {
		return ""
	}
	return op.OpName()
}

// Overwriting keeps the original position.
func (b *Base) store(name string, v any) {
	if _, ok := b.data[name]; !ok {
		b.names = append(b.names, name)
	}
	b.data[name] = v
}

func (b *Base) Get(name string) Value {
	v, ok := b.data[name]
	if !ok {
		return Absent
	}
	return Present(v)
}

func (b *Base) ExperimentID() string {
	return b.experimentID
}

func (b *Base) Scheme() Scheme {
	return b.scheme
}

// Names returns the assigned names in insertion order.
func (b *Base) Names() []string {
	return append([]string(nil), b.names...)
}

type Entry struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.names))
	for i, n := range b.names {
		out[i] = Entry{Name: n, Value: b.data[n]}
	}
	return out
}

// MarshalJSON writes the assignment as a JSON object in insertion order.
func (b *Base) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range b.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(b.data[n])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
