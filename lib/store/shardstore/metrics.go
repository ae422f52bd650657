package shardstore

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// storeMetrics collects the store's operational counters in a private set,
// so multiple stores in one process never collide. The set is exported on
// demand through callers of WritePrometheus.
type storeMetrics struct {
	set *metrics.Set

	gets             *metrics.Counter
	commits          *metrics.Counter
	syncCommits      *metrics.Counter
	compactions      *metrics.Counter
	rangeCompactions *metrics.Counter
	queueMerges      *metrics.Counter
}

func newStoreMetrics(queueLen func() int, hashCount func() uint64) *storeMetrics {
	s := metrics.NewSet()
	m := &storeMetrics{
		set:              s,
		gets:             s.NewCounter("store_gets_total"),
		commits:          s.NewCounter("store_commits_total"),
		syncCommits:      s.NewCounter("store_sync_commits_total"),
		compactions:      s.NewCounter("store_compactions_total"),
		rangeCompactions: s.NewCounter("store_range_compactions_total"),
		queueMerges:      s.NewCounter("store_compact_queue_merges_total"),
	}
	s.NewGauge("store_compact_queue_length", func() float64 {
		return float64(queueLen())
	})
	s.NewGauge("store_shard_hash_picks_total", func() float64 {
		return float64(hashCount())
	})
	return m
}

// WritePrometheus writes the store's metrics in Prometheus text format.
func (m *storeMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
