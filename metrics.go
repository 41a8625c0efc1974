package rangebitmap

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    queryCounter   *prometheus.CounterVec
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(op string, matches uint64, duration time.Duration) {
//	    p.queryCounter.WithLabelValues(op).Inc()
//	    p.queryHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordBuild is called after each Build.
	// rows is the number of appended rows, err is nil if successful.
	RecordBuild(rows uint64, duration time.Duration, err error)

	// RecordQuery is called after each range query.
	// op is one of "lt", "lte", "gt", "gte", "between".
	RecordQuery(op string, matches uint64, duration time.Duration)

	// RecordBlocks is called per query with block-level counters.
	// scanned is the number of blocks evaluated, skipped the number pruned
	// by an empty context or an all-rows fast path.
	RecordBlocks(scanned, skipped int)

	// RecordMap is called after each Map attempt.
	RecordMap(bytes int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(uint64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordQuery(string, uint64, time.Duration) {}
func (NoopMetricsCollector) RecordBlocks(int, int)                     {}
func (NoopMetricsCollector) RecordMap(int, error)                      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildRows       atomic.Int64
	BuildTotalNanos atomic.Int64
	QueryCount      atomic.Int64
	QueryMatches    atomic.Int64
	QueryTotalNanos atomic.Int64
	BlocksScanned   atomic.Int64
	BlocksSkipped   atomic.Int64
	MapCount        atomic.Int64
	MapErrors       atomic.Int64
	MapBytes        atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(rows uint64, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildRows.Add(int64(rows))
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(op string, matches uint64, duration time.Duration) {
	b.QueryCount.Add(1)
	b.QueryMatches.Add(int64(matches))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
}

// RecordBlocks implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlocks(scanned, skipped int) {
	b.BlocksScanned.Add(int64(scanned))
	b.BlocksSkipped.Add(int64(skipped))
}

// RecordMap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMap(bytes int, err error) {
	b.MapCount.Add(1)
	b.MapBytes.Add(int64(bytes))
	if err != nil {
		b.MapErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:    b.BuildCount.Load(),
		BuildErrors:   b.BuildErrors.Load(),
		BuildRows:     b.BuildRows.Load(),
		BuildAvgNanos: b.getAvgBuildNanos(),
		QueryCount:    b.QueryCount.Load(),
		QueryMatches:  b.QueryMatches.Load(),
		QueryAvgNanos: b.getAvgQueryNanos(),
		BlocksScanned: b.BlocksScanned.Load(),
		BlocksSkipped: b.BlocksSkipped.Load(),
		MapCount:      b.MapCount.Load(),
		MapErrors:     b.MapErrors.Load(),
		MapBytes:      b.MapBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBuildNanos() int64 {
	count := b.BuildCount.Load()
	if count == 0 {
		return 0
	}
	return b.BuildTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount    int64
	BuildErrors   int64
	BuildRows     int64
	BuildAvgNanos int64
	QueryCount    int64
	QueryMatches  int64
	QueryAvgNanos int64
	BlocksScanned int64
	BlocksSkipped int64
	MapCount      int64
	MapErrors     int64
	MapBytes      int64
}
