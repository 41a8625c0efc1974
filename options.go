package rangebitmap

import (
	"log/slog"

	"github.com/hupe1980/rangebitmap/resource"
)

// Strategy selects how range queries walk the slice containers.
type Strategy int

const (
	// StrategyHorizontal evaluates block by block with per-block state.
	// Fast-forwards (absent/full container skips, deferred state, context
	// pruning) apply per block. This is the default.
	StrategyHorizontal Strategy = iota

	// StrategyVertical evaluates slice by slice over the whole row space,
	// assembling each full-width slice bitmap on demand. Simpler, with fewer
	// shortcuts; useful for small stores and differential testing.
	StrategyVertical
)

type options struct {
	strategy         Strategy
	parallelism      int
	runOptimize      bool
	capacityHint     int
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
}

// Option configures Appender and RangeBitmap behavior.
//
// Options exist to avoid exploding the API surface with constructor variants;
// the zero-option path is always valid.
type Option func(*options)

// WithStrategy selects the evaluation strategy for queries.
//
// StrategyHorizontal (default) processes one block at a time and applies all
// per-block fast-forwards. StrategyVertical materializes whole-column slices
// and is mainly useful for verification.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithParallelism bounds the number of workers evaluating blocks concurrently
// under StrategyHorizontal.
//
// n = 1 (default) evaluates serially. n <= 0 uses one worker per CPU. Results
// are merged in block order, so output is identical regardless of n.
//
// Parallel evaluation pays off once a store spans many blocks (hundreds of
// thousands of rows); for small stores the merge overhead dominates.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithRunOptimize controls run-length compression of containers at build time.
// Enabled by default; disable only when build latency matters more than the
// size of the serialized index.
func WithRunOptimize(enabled bool) Option {
	return func(o *options) {
		o.runOptimize = enabled
	}
}

// WithCapacityHint preallocates the appender's ordinal buffer for the expected
// number of rows. Purely an allocation hint.
func WithCapacityHint(rows int) Option {
	return func(o *options) {
		if rows > 0 {
			o.capacityHint = rows
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring builds,
// maps and queries. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rangebitmap.BasicMetricsCollector{}
//	app := rangebitmap.New(maxVal, rangebitmap.WithMetricsCollector(metrics))
//	// ... build and query ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rangebitmap.NewJSONLogger(slog.LevelInfo)
//	app := rangebitmap.New(maxVal, rangebitmap.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController accounts appender buffer growth against a shared
// resource controller. Useful when many partition indexes build concurrently
// inside one process.
//
// The appender reserves memory as its buffers grow and releases the
// reservation on Build and Reset. Add blocks while the reservation cannot be
// satisfied.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		strategy:         StrategyHorizontal,
		parallelism:      1,
		runOptimize:      true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
