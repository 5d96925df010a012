package cbforest

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Process-wide operation counters, exported in Prometheus format via
// the metrics package's default set.
var (
	metricReads     = metrics.NewCounter("cbforest_reads_total")
	metricWrites    = metrics.NewCounter("cbforest_writes_total")
	metricCommits   = metrics.NewCounter("cbforest_commits_total")
	metricRollbacks = metrics.NewCounter("cbforest_rollbacks_total")
)

// opStats are per-Database counters mirroring the process-wide metrics.
type opStats struct {
	ReadCount     atomic.Uint64
	WriteCount    atomic.Uint64
	CommitCount   atomic.Uint64
	RollbackCount atomic.Uint64
}

func (db *Database) noteRead() {
	db.stats.ReadCount.Add(1)
	metricReads.Inc()
}

func (db *Database) noteWrite() {
	db.stats.WriteCount.Add(1)
	metricWrites.Inc()
}

func (db *Database) noteCommit() {
	db.stats.CommitCount.Add(1)
	metricCommits.Inc()
}

func (db *Database) noteRollback() {
	db.stats.RollbackCount.Add(1)
	metricRollbacks.Inc()
}

// Stats returns a snapshot of this handle's operation counters.
func (db *Database) Stats() (reads, writes, commits, rollbacks uint64) {
	return db.stats.ReadCount.Load(), db.stats.WriteCount.Load(),
		db.stats.CommitCount.Load(), db.stats.RollbackCount.Load()
}
