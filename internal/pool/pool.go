// Package pool implements the elastic per-check worker pool: one pool per
// check kind, growing eagerly whenever the last idle worker picks up a job
// so the work queue is never seen empty by a busy pool, and shrinking
// lazily so at least one idle worker always survives a departure.
//
// Grounded on the teacher's internal/ghostpool.PoolManager (elastic
// min/max population, background top-up) merged with
// internal/webhooks.Dispatcher's fixed worker-loop-over-a-channel shape.
package pool

import (
	"log"
	"sync"
	"time"

	"github.com/samettonyali/gross/internal/edict"
)

// idleTimeout is how long a worker blocks on the work queue before
// reconsidering whether the pool should shrink.
const idleTimeout = 60 * time.Second

// Routine is a check implementation. It must produce exactly one
// non-wait edict.ChkResult via e.SendResult before returning.
type Routine func(p *Pool, tc *ThreadContext, e *edict.Edict)

// ThreadContext carries per-worker state lazily initialized by the
// routine on first use, and a cleanup callback the pool invokes when the
// worker exits. Mirrors thread_ctx_t in the original thread pool.
type ThreadContext struct {
	State   any
	Cleanup func()
}

// Pool is one elastic worker pool dedicated to a single check kind.
type Pool struct {
	Name       string
	routine    Routine
	minThreads int
	maxThreads int
	logger     *log.Logger

	work chan *edict.Edict

	mu          sync.Mutex
	countThread int
	countIdle   int
	shutdown    bool
}

// New allocates a pool's work queue, counters, and spawns one initial
// worker, mirroring create_pool in the original.
func New(name string, routine Routine, minThreads, maxThreads int, logger *log.Logger) *Pool {
	if minThreads < 1 {
		minThreads = 1
	}
	if maxThreads < minThreads {
		maxThreads = minThreads
	}
	if logger == nil {
		logger = log.New(log.Writer(), "["+name+"] ", log.LstdFlags)
	}
	p := &Pool{
		Name:       name,
		routine:    routine,
		minThreads: minThreads,
		maxThreads: maxThreads,
		logger:     logger,
		work:       make(chan *edict.Edict, 1024),
	}
	p.spawn()
	return p
}

// Submit increments the edict's refcount and enqueues it for processing.
func (p *Pool) Submit(e *edict.Edict) {
	e.Link()
	p.mu.Lock()
	down := p.shutdown
	p.mu.Unlock()
	if down {
		e.Unlink()
		return
	}
	p.work <- e
}

// Stats reports the pool's current population for the status endpoint and
// metrics scrape.
type Stats struct {
	Threads int
	Idle    int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Threads: p.countThread, Idle: p.countIdle}
}

func (p *Pool) spawn() {
	p.mu.Lock()
	p.countThread++
	p.mu.Unlock()
	go p.worker()
}

// worker implements the exact tie-break rules from the original thread
// pool: growth is eager (a worker that picks up the last idle slot spawns
// a sibling before starting work), shrinkage is lazy (a worker only exits
// on timeout if another idle worker remains after it leaves).
func (p *Pool) worker() {
	tc := &ThreadContext{}
	defer func() {
		if tc.Cleanup != nil {
			tc.Cleanup()
		}
		if r := recover(); r != nil {
			p.logger.Printf("worker recovered from panic: %v", r)
		}
	}()

	p.mu.Lock()
	p.countIdle++
	p.mu.Unlock()

	for {
		select {
		case e, ok := <-p.work:
			if !ok {
				p.exit()
				return
			}
			p.mu.Lock()
			p.countIdle--
			if p.countIdle == 0 && p.countThread < p.maxThreads {
				p.spawnLocked()
			}
			p.mu.Unlock()

			p.run(tc, e)

			p.mu.Lock()
			p.countIdle++
			p.mu.Unlock()

		case <-time.After(idleTimeout):
			p.mu.Lock()
			p.countIdle--
			if p.countThread > p.minThreads && p.countIdle >= 1 {
				p.countThread--
				p.mu.Unlock()
				return
			}
			p.countIdle++
			p.mu.Unlock()
		}
	}
}

// spawnLocked must be called with p.mu held.
func (p *Pool) spawnLocked() {
	p.countThread++
	go p.worker()
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.countIdle--
	p.countThread--
	p.mu.Unlock()
}

func (p *Pool) run(tc *ThreadContext, e *edict.Edict) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("check routine %s panicked: %v", p.Name, r)
			e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: p.Name, Reason: "panic"})
		}
		e.Unlink()
	}()
	p.routine(p, tc, e)
}

// Shutdown closes the work channel; in-flight workers drain it and exit.
// New submissions after Shutdown are rejected.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.mu.Unlock()
	close(p.work)
}
