package polyalloc

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordDDL is called after each verb. err is nil if successful.
	RecordDDL(verb string, duration time.Duration, err error)

	// RecordMigration is called after each data copy with the number of
	// rows written.
	RecordMigration(rows int64, duration time.Duration, err error)

	// RecordConstraintRejection is called when a verb is refused by a
	// placement rule.
	RecordConstraintRejection(verb string)

	// RecordCommit is called after each transaction commit.
	RecordCommit(version uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDDL(string, time.Duration, error)      {}
func (NoopMetricsCollector) RecordMigration(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordConstraintRejection(string)            {}
func (NoopMetricsCollector) RecordCommit(uint64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	DDLCount             atomic.Int64
	DDLErrors            atomic.Int64
	DDLTotalNanos        atomic.Int64
	MigrationCount       atomic.Int64
	MigrationErrors      atomic.Int64
	MigratedRows         atomic.Int64
	ConstraintRejections atomic.Int64
	CommitCount          atomic.Int64
	CommitErrors         atomic.Int64
	CommitTotalNanos     atomic.Int64
	LastVersion          atomic.Uint64
}

// RecordDDL implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDDL(_ string, duration time.Duration, err error) {
	b.DDLCount.Add(1)
	b.DDLTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DDLErrors.Add(1)
	}
}

// RecordMigration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMigration(rows int64, _ time.Duration, err error) {
	b.MigrationCount.Add(1)
	b.MigratedRows.Add(rows)
	if err != nil {
		b.MigrationErrors.Add(1)
	}
}

// RecordConstraintRejection implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConstraintRejection(string) {
	b.ConstraintRejections.Add(1)
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(version uint64, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.LastVersion.Store(version)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		DDLCount:             b.DDLCount.Load(),
		DDLErrors:            b.DDLErrors.Load(),
		DDLAvgNanos:          avg(b.DDLTotalNanos.Load(), b.DDLCount.Load()),
		MigrationCount:       b.MigrationCount.Load(),
		MigrationErrors:      b.MigrationErrors.Load(),
		MigratedRows:         b.MigratedRows.Load(),
		ConstraintRejections: b.ConstraintRejections.Load(),
		CommitCount:          b.CommitCount.Load(),
		CommitErrors:         b.CommitErrors.Load(),
		CommitAvgNanos:       avg(b.CommitTotalNanos.Load(), b.CommitCount.Load()),
		LastVersion:          b.LastVersion.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	DDLCount             int64
	DDLErrors            int64
	DDLAvgNanos          int64
	MigrationCount       int64
	MigrationErrors      int64
	MigratedRows         int64
	ConstraintRejections int64
	CommitCount          int64
	CommitErrors         int64
	CommitAvgNanos       int64
	LastVersion          uint64
}
