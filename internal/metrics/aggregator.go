// Package metrics aggregates notification lifecycle transitions per
// worker, channel and status.
package metrics

import (
	"sync"
	"time"

	"github.com/aliskhannn/notify-scheduler/internal/model"
)

const (
	// DefaultCapacity bounds the ring of timestamped transition
	// events retained for windowed queries.
	DefaultCapacity = 8192
	// DefaultMaxWindow is the largest trailing period a windowed
	// snapshot may cover.
	DefaultMaxWindow = 24 * time.Hour
)

type event struct {
	at      time.Time
	worker  string
	channel model.Channel
	status  model.Status
}

// Counts is the per-status counter set of one (worker, channel) pair.
type Counts map[model.Status]uint64

// WorkerCounts groups the counters of a single worker identity.
type WorkerCounts struct {
	Channels map[model.Channel]Counts `json:"channels"`
	Total    uint64                   `json:"total"`
}

// Snapshot is a point-in-time read of the aggregator. Channel and
// global totals are computed by summation at read time; the per-worker
// counters are the single source of truth.
type Snapshot struct {
	Timestamp     time.Time                `json:"timestamp"`
	PeriodSeconds int64                    `json:"period_seconds,omitempty"`
	Workers       map[string]WorkerCounts  `json:"workers"`
	Channels      map[model.Channel]Counts `json:"channels"`
	Total         Counts                   `json:"total"`
}

// Aggregator counts lifecycle transitions keyed by (worker, channel,
// status). Counters grow monotonically for the process lifetime; a
// bounded ring of recent transition events additionally supports
// snapshots restricted to a trailing window. Safe for concurrent use.
type Aggregator struct {
	mu        sync.RWMutex
	counts    map[string]map[model.Channel]Counts
	events    []event
	head      int
	size      int
	maxWindow time.Duration

	now func() time.Time
}

// New creates an Aggregator retaining up to capacity transition events
// no older than maxWindow for windowed snapshots. Non-positive
// arguments fall back to the defaults.
func New(capacity int, maxWindow time.Duration) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}

	return &Aggregator{
		counts:    make(map[string]map[model.Channel]Counts),
		events:    make([]event, capacity),
		maxWindow: maxWindow,
		now:       time.Now,
	}
}

// Record registers one observed transition. Called exactly once per
// state change, never per task dequeue.
func (a *Aggregator) Record(worker string, channel model.Channel, status model.Status) {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	byChannel, ok := a.counts[worker]
	if !ok {
		byChannel = make(map[model.Channel]Counts)
		a.counts[worker] = byChannel
	}

	byStatus, ok := byChannel[channel]
	if !ok {
		byStatus = make(Counts)
		byChannel[channel] = byStatus
	}

	byStatus[status]++

	a.push(event{at: now, worker: worker, channel: channel, status: status})
	a.evict(now)
}

// Snapshot reads the current counters. A positive period restricts the
// result to transitions observed within that trailing window (clamped
// to the aggregator's maximum window); otherwise lifetime counters are
// returned. Non-empty worker or channel narrow the result.
func (a *Aggregator) Snapshot(worker string, channel model.Channel, period time.Duration) Snapshot {
	now := a.now()

	snap := Snapshot{
		Timestamp: now,
		Workers:   make(map[string]WorkerCounts),
		Channels:  make(map[model.Channel]Counts),
		Total:     make(Counts),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if period <= 0 {
		for w, byChannel := range a.counts {
			if worker != "" && w != worker {
				continue
			}
			for ch, byStatus := range byChannel {
				if channel != "" && ch != channel {
					continue
				}
				for st, count := range byStatus {
					snap.add(w, ch, st, count)
				}
			}
		}

		return snap
	}

	if period > a.maxWindow {
		period = a.maxWindow
	}
	snap.PeriodSeconds = int64(period / time.Second)
	cutoff := now.Add(-period)

	for i := 0; i < a.size; i++ {
		e := a.events[(a.head+i)%len(a.events)]
		if e.at.Before(cutoff) {
			continue
		}
		if worker != "" && e.worker != worker {
			continue
		}
		if channel != "" && e.channel != channel {
			continue
		}

		snap.add(e.worker, e.channel, e.status, 1)
	}

	return snap
}

func (s *Snapshot) add(worker string, channel model.Channel, status model.Status, count uint64) {
	wc, ok := s.Workers[worker]
	if !ok {
		wc = WorkerCounts{Channels: make(map[model.Channel]Counts)}
	}

	byStatus, ok := wc.Channels[channel]
	if !ok {
		byStatus = make(Counts)
		wc.Channels[channel] = byStatus
	}

	byStatus[status] += count
	wc.Total += count
	s.Workers[worker] = wc

	chCounts, ok := s.Channels[channel]
	if !ok {
		chCounts = make(Counts)
		s.Channels[channel] = chCounts
	}
	chCounts[status] += count

	s.Total[status] += count
}

// push appends to the ring, overwriting the oldest event when full.
func (a *Aggregator) push(e event) {
	if a.size < len(a.events) {
		a.events[(a.head+a.size)%len(a.events)] = e
		a.size++
		return
	}

	a.events[a.head] = e
	a.head = (a.head + 1) % len(a.events)
}

// evict drops events older than the maximum supported window.
func (a *Aggregator) evict(now time.Time) {
	cutoff := now.Add(-a.maxWindow)
	for a.size > 0 && a.events[a.head].at.Before(cutoff) {
		a.head = (a.head + 1) % len(a.events)
		a.size--
	}
}
