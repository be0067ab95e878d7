package svdgo

import "github.com/hupe1980/svdgo/codec"

type options struct {
	components  int
	iterations  int
	logger      *Logger
	codec       codec.Codec
	compression Compression
}

func defaultOptions() options {
	return options{
		components:  0, // keep all
		iterations:  10,
		logger:      NoopLogger(),
		codec:       codec.Default,
		compression: CompressionNone,
	}
}

// Option configures estimator constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithComponents sets the number of components to retain.
//
// If k <= 0 (the default), all min(samples, features) components are kept.
// A k exceeding the available rank is clamped to min(samples, features)
// at fit time; the clamp is logged at debug level.
func WithComponents(k int) Option {
	return func(o *options) {
		o.components = k
	}
}

// WithIterations sets the number of federated refinement iterations.
//
// Only FederatedSVD reads this value. The current aggregation is a
// single statistics pass; the iteration count is stored for interface
// compatibility and reported via Iterations but does not change the
// result. See the FederatedSVD documentation.
func WithIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// WithLogger configures structured logging for the estimator.
//
// If nil is passed, logging stays disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec configures the codec used when saving model snapshots.
//
// If nil is passed, codec.Default is used. Loading ignores this option:
// snapshots record their codec name in the header and the matching codec
// is selected by name.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures snapshot body compression used when saving.
//
// Loading ignores this option: the compression used at save time is
// recorded in the snapshot header.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}
