package assign

import "log/slog"

type options struct {
	scheme    Scheme
	overrides map[string]any
	logger    *slog.Logger
}

type Option func(*options)

// WithScheme selects the hash scheme. The default is Current.
func WithScheme(s Scheme) Option {
	return func(o *options) {
		if s != nil {
			o.scheme = s
		}
	}
}

// WithOverrides pins names to fixed values. Set on an overridden name is a
// no-op.
func WithOverrides(overrides map[string]any) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

// WithLogger logs every operator evaluation at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
