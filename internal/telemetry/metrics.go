// Package telemetry holds in-process counters and latency samples for
// the search and indexing subsystems. No corpus repo imports a metrics
// client library (Prometheus, OpenTelemetry); counters are plain
// sync/atomic values read back through Read(), following the teacher's habit of pairing logging.Timer with ad hoc
// instrumentation rather than reaching for an external metrics SDK.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	writeAheadReconciled int64
	writeAheadRetried    int64
	writeAheadDeadLetter int64
	driftCount           int64
	truncatedGridQueries int64
	totalGridQueries     int64

	latencyMu      sync.Mutex
	queryLatencies []time.Duration
)

// IncWriteAheadReconciled records one successfully drained write-ahead record.
func IncWriteAheadReconciled() { atomic.AddInt64(&writeAheadReconciled, 1) }

// IncWriteAheadRetried records one write-ahead record that needed a retry.
func IncWriteAheadRetried() { atomic.AddInt64(&writeAheadRetried, 1) }

// IncWriteAheadDeadLettered records one write-ahead record that exceeded max_attempts.
func IncWriteAheadDeadLettered() { atomic.AddInt64(&writeAheadDeadLetter, 1) }

// IncDrift records one AnalyzerOrContentDrift or auditor-detected drift event.
func IncDrift() { atomic.AddInt64(&driftCount, 1) }

// RecordGridQuery counts grid queries and, separately, those whose
// actual total exceeded max_candidate_results. The actual total itself
// is not stored here; of the grid call's paging values, only SearchGrid's
// debug log line carries it, never the returned PageResult.
func RecordGridQuery(actualTotal, maxCandidateResults int) {
	atomic.AddInt64(&totalGridQueries, 1)
	if actualTotal > maxCandidateResults {
		atomic.AddInt64(&truncatedGridQueries, 1)
	}
}

// RecordQueryLatency appends a query's wall-clock duration to the
// in-memory latency sample, capped to the most recent 1000 entries so
// memory use stays bounded in a long-running process.
func RecordQueryLatency(d time.Duration) {
	latencyMu.Lock()
	defer latencyMu.Unlock()
	queryLatencies = append(queryLatencies, d)
	if len(queryLatencies) > 1000 {
		queryLatencies = queryLatencies[len(queryLatencies)-1000:]
	}
}

// Snapshot is a point-in-time read of every counter, returned by Read.
type Snapshot struct {
	WriteAheadReconciled int64
	WriteAheadRetried    int64
	WriteAheadDeadLetter int64
	DriftCount           int64
	TotalGridQueries     int64
	TruncatedGridQueries int64
	SampledQueryCount    int
	P50Latency           time.Duration
	P99Latency           time.Duration
}

// Read returns the current Snapshot.
func Read() Snapshot {
	latencyMu.Lock()
	samples := append([]time.Duration(nil), queryLatencies...)
	latencyMu.Unlock()

	return Snapshot{
		WriteAheadReconciled: atomic.LoadInt64(&writeAheadReconciled),
		WriteAheadRetried:    atomic.LoadInt64(&writeAheadRetried),
		WriteAheadDeadLetter: atomic.LoadInt64(&writeAheadDeadLetter),
		DriftCount:           atomic.LoadInt64(&driftCount),
		TotalGridQueries:     atomic.LoadInt64(&totalGridQueries),
		TruncatedGridQueries: atomic.LoadInt64(&truncatedGridQueries),
		SampledQueryCount:    len(samples),
		P50Latency:           percentile(samples, 0.50),
		P99Latency:           percentile(samples, 0.99),
	}
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
