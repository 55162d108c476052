// Package progress logs the graph orchestrator's phase transitions and
// periodic acceptance counts. Grounded on the batch-archival progress
// idiom of a large offline-over-huge-data tool in the retrieved pack:
// k8s.io/klog/v2 for structured, leveled log lines and
// github.com/dustin/go-humanize to render large counts and byte sizes
// legibly (humanize.Comma, humanize.Bytes) instead of raw integers.
package progress

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"k8s.io/klog/v2"
)

// Phase announces a phase transition (Phase R / Phase M / Phase T).
func Phase(name string) {
	klog.Infof("phase %s: starting", name)
}

// Counter periodically logs "accepted N / total (rate)" lines for a
// long-running phase without flooding the log: it only emits once every
// interval accepted entries, plus unconditionally on the final call.
type Counter struct {
	label    string
	total    uint64
	interval uint64
	nextLog  uint64
	started  time.Time
}

// NewCounter builds a Counter that logs roughly 100 times over the run
// (total/100, floor 1), labeled with label in each log line.
func NewCounter(label string, total uint64) *Counter {
	interval := total / 100
	if interval == 0 {
		interval = 1
	}
	return &Counter{label: label, total: total, interval: interval, started: time.Now()}
}

// Update reports the current accepted count, logging if a full interval
// has elapsed since the last log line.
func (c *Counter) Update(n uint64) {
	if n < c.nextLog && n != c.total {
		return
	}
	c.nextLog = n + c.interval
	elapsed := time.Since(c.started)
	klog.Infof("%s: %s / %s (%.1f%%, %s elapsed)",
		c.label, humanize.Comma(int64(n)), humanize.Comma(int64(c.total)),
		100*float64(n)/float64(c.total), elapsed.Round(time.Second))
}

// Summary logs the final one-line report of a completed run.
func Summary(tip ginternals.Oid, objectCount uint32, packBytes int64, elapsed time.Duration) {
	klog.Infof("done: tip=%s objects=%s pack=%s elapsed=%s",
		tip.String(), humanize.Comma(int64(objectCount)), humanize.Bytes(uint64(packBytes)), elapsed.Round(time.Second))
}
