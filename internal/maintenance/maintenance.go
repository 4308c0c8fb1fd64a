// Package maintenance implements the once-a-second background loop: it
// triggers Bloom ring rotation when due, and replenishes DNSBL/RHSBL
// tolerance counters on a ten-second cadence so a transient DNS outage
// self-heals (the exact cadence recovered from original_source/trunk's
// gross.c toleration handling; spec.md's distillation only says
// "periodically").
package maintenance

import (
	"time"

	"github.com/samettonyali/gross/internal/bloom"
	"github.com/samettonyali/gross/internal/checks/tolerance"
	"github.com/samettonyali/gross/internal/queue"
	"github.com/samettonyali/gross/internal/registry"
)

const toleranceCadence = 10 * time.Second

// rotateCmd is the sole message type carried on the update queue; its
// payload is irrelevant, only its arrival matters.
type rotateCmd struct{}

// Loop drives the periodic rotation and tolerance-replenishment work. The
// ticker goroutine never calls Ring.Rotate directly: it posts a rotateCmd
// via InstantMsg onto an update queue that a single dedicated bloom
// manager goroutine drains, keeping rotation single-writer even if a
// future version grows more triggers for it than just the ticker.
type Loop struct {
	Ring           *bloom.Ring
	RotateInterval time.Duration
	Counters       []*tolerance.Counter

	// ToleranceNames, if set, must be parallel to Counters and supplies the
	// zone label OnToleranceSample is called with.
	ToleranceNames []string

	// Registry, if set, is sampled once per tick so OnPoolSample can keep
	// pool occupancy metrics current.
	Registry *registry.Registry

	// OnPoolSample, OnToleranceSample and OnBloomSample are optional
	// metrics-publishing hooks; cmd/grossd wires them to metrics.Metrics so
	// gross_pool_threads, gross_tolerance_level and gross_bloom_* report
	// live values instead of staying at zero.
	OnPoolSample      func(name string, threads, idle int)
	OnToleranceSample func(zone string, value int32)
	OnBloomSample     func(inserts, queries uint64)

	onRotate func()
	updateQ  *queue.Queue[rotateCmd]
	stop     chan struct{}
}

// New builds a maintenance loop over ring, rotating every interval and
// replenishing every counter in counters on the ten-second cadence.
// onRotate, if non-nil, is invoked after every rotation (used to bump the
// rotation metric).
func New(ring *bloom.Ring, interval time.Duration, counters []*tolerance.Counter, onRotate func()) *Loop {
	return &Loop{
		Ring:           ring,
		RotateInterval: interval,
		Counters:       counters,
		onRotate:       onRotate,
		updateQ:        queue.New[rotateCmd](4),
		stop:           make(chan struct{}),
	}
}

// Run starts the bloom manager goroutine and ticks once a second until
// Stop is called. Meant to be run in its own goroutine.
func (l *Loop) Run() {
	managerDone := make(chan struct{})
	go l.bloomManager(managerDone)
	defer func() {
		l.updateQ.Shutdown()
		<-managerDone
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sinceTolerance := time.Duration(0)
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if time.Since(l.Ring.LastRotate()) >= l.RotateInterval {
				l.updateQ.InstantMsg(rotateCmd{})
			}
			l.samplePools()
			l.sampleBloom()
			sinceTolerance += time.Second
			if sinceTolerance >= toleranceCadence {
				sinceTolerance = 0
				for _, c := range l.Counters {
					c.Replenish()
				}
				l.sampleTolerance()
			}
		}
	}
}

// bloomManager is the sole caller of Ring.Rotate, draining rotateCmds off
// the update queue one at a time.
func (l *Loop) bloomManager(done chan struct{}) {
	defer close(done)
	for {
		_, outcome := l.updateQ.GetTimed(-1)
		if outcome == queue.Shutdown {
			return
		}
		l.Ring.Rotate()
		if l.onRotate != nil {
			l.onRotate()
		}
	}
}

// Stop halts the loop and its bloom manager.
func (l *Loop) Stop() {
	close(l.stop)
}

func (l *Loop) samplePools() {
	if l.OnPoolSample == nil || l.Registry == nil {
		return
	}
	for _, entry := range l.Registry.Entries() {
		stats := entry.Pool.Stats()
		l.OnPoolSample(entry.Name, stats.Threads, stats.Idle)
	}
}

func (l *Loop) sampleTolerance() {
	if l.OnToleranceSample == nil {
		return
	}
	for i, c := range l.Counters {
		name := "unnamed"
		if i < len(l.ToleranceNames) {
			name = l.ToleranceNames[i]
		}
		l.OnToleranceSample(name, c.Value())
	}
}

func (l *Loop) sampleBloom() {
	if l.OnBloomSample == nil {
		return
	}
	stats := l.Ring.Stats()
	l.OnBloomSample(stats.Inserts, stats.Queries)
}
