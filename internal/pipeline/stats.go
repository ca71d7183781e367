package pipeline

import "sync/atomic"

// Stats counts what happened to the keyframes of one run. Counters are
// updated by the reader and the workers while the run is in progress.
type Stats struct {
	read       atomic.Int64
	analyzed   atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
	queueHigh  atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Read          int64
	Analyzed      int64
	Dropped       int64
	Duplicates    int64
	QueueHighMark int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Read:          s.read.Load(),
		Analyzed:      s.analyzed.Load(),
		Dropped:       s.dropped.Load(),
		Duplicates:    s.duplicates.Load(),
		QueueHighMark: s.queueHigh.Load(),
	}
}

// Recorded returns the number of analyses that reached the store.
func (s Snapshot) Recorded() int64 {
	return s.Analyzed - s.Duplicates
}
