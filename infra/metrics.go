package infra

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics counts the run's throughput with atomics, so the counters can be
// read while the single-threaded replay loop updates them.
type Metrics struct {
	RecordsProcessed atomic.Uint64
	ChunksEmitted    atomic.Uint64
	SnapshotsEmitted atomic.Uint64
	CrossingsStarted atomic.Uint64

	start time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

// LogSummary emits one line with totals and rates.
func (m *Metrics) LogSummary(log *slog.Logger) {
	elapsed := time.Since(m.start)
	records := m.RecordsProcessed.Load()
	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(records) / secs
	}
	log.Info("run summary",
		"records", records,
		"chunks", m.ChunksEmitted.Load(),
		"snapshots", m.SnapshotsEmitted.Load(),
		"crossings", m.CrossingsStarted.Load(),
		"elapsed", elapsed.String(),
		"records_per_sec", rate,
	)
}
