package thickidx

import (
	"log/slog"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/resource"
)

type options struct {
	metricsCollector  MetricsCollector
	logger            *Logger
	compression       string
	memoryLimit       int64
	commitConcurrency int64
	ioLimit           int64
	cacheSize         int64
	readOnly          bool
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &thickidx.BasicMetricsCollector{}
//	db, _ := thickidx.Open(ctx, thickidx.Memory(), thickidx.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Avg latency: %dns\n", stats.PutCount, stats.PutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := thickidx.NewJSONLogger(slog.LevelInfo)
//	db, _ := thickidx.Open(ctx, thickidx.Local("./data"), thickidx.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

// WithCompression selects the compressor for newly written object pages by
// name: "none", "lz4" or "zstd". Defaults to zstd.
func WithCompression(name string) Option {
	return func(o *options) {
		o.compression = name
	}
}

// WithMemoryLimit bounds the memory used by the read cache of remote
// backends. If 0, memory is unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithCommitConcurrency sets how many object pages a commit writes in
// parallel. Defaults to 1.
func WithCommitConcurrency(n int) Option {
	return func(o *options) {
		o.commitConcurrency = int64(n)
	}
}

// WithIOLimit throttles commit writes to the given bytes per second.
// If 0, unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithCacheSize sets the capacity of the read cache placed in front of
// remote backends. Defaults to blobstore.DefaultCacheSize.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// ReadOnly opens the database in read-only mode.
// In this mode:
//   - Mutations return ErrReadOnly
//   - Local directories are locked shared, so several readers can coexist
//   - A missing catalog yields an empty database instead of creating one
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      "zstd",
		cacheSize:        blobstore.DefaultCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) resourceController() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:     o.memoryLimit,
		MaxBackgroundWorkers: o.commitConcurrency,
		IOLimitBytesPerSec:   o.ioLimit,
	})
}
