// Package edict implements the reference-counted job carrier that fans a
// single incoming request out to every registered check pool, and the
// per-edict result rendezvous the orchestrator drains to collect verdicts.
package edict

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samettonyali/gross/internal/queue"
)

// Judgment is a check's verdict on a single request.
type Judgment int

const (
	Undefined Judgment = iota
	Pass
	Suspicious
	Block
)

func (j Judgment) String() string {
	switch j {
	case Pass:
		return "PASS"
	case Suspicious:
		return "SUSPICIOUS"
	case Block:
		return "BLOCK"
	default:
		return "UNDEFINED"
	}
}

// ChkResult is a single check's verdict, produced by a check routine and
// read back by the orchestrator.
type ChkResult struct {
	Judgment Judgment
	Weight   int
	Reason   string
	// Wait tells the orchestrator that another async result from this
	// pool is still coming; do not finalize on this one alone.
	Wait bool
	// Pool identifies which check produced this result, so the
	// orchestrator can look up whether that check is registered as
	// definitive rather than trusting each routine to repeat the flag.
	Pool string
}

// Edict is the job envelope submitted to every registered check pool for a
// single incoming request. Its lifetime is reference counted: one reference
// for the orchestrator's own handle, one for every pool whose work queue
// currently holds it, and one for every worker currently processing it. The
// last release drains and destroys the result queue.
type Edict struct {
	ID        uuid.UUID
	Job       any
	Submitted time.Time
	TimeLimit time.Duration

	// Results is nil when the caller declared "fire-and-forget" at
	// construction time.
	Results *queue.Queue[ChkResult]

	mu       sync.Mutex
	refcount int
}

// New allocates an edict with refcount 1. When forget is true no result
// queue is created and SendResult becomes a silent no-op.
func New(job any, timeLimit time.Duration, forget bool) *Edict {
	e := &Edict{
		ID:        uuid.New(),
		Job:       job,
		Submitted: time.Now(),
		TimeLimit: timeLimit,
		refcount:  1,
	}
	if !forget {
		e.Results = queue.New[ChkResult](0)
	}
	return e
}

// Link atomically increments the reference count. Called by every pool
// submission.
func (e *Edict) Link() {
	e.mu.Lock()
	e.refcount++
	e.mu.Unlock()
}

// Unlink atomically decrements the reference count. When it reaches zero,
// any pending results are drained and the result queue is released.
// Unlink must be the only path that tears down an edict: the refcount and
// the result queue are inspected transactionally under the same mutex, not
// via naked atomics, so that a concurrent SendResult never races teardown.
func (e *Edict) Unlink() {
	e.mu.Lock()
	e.refcount--
	if e.refcount < 0 {
		panic("edict: refcount went negative")
	}
	if e.refcount > 0 {
		e.mu.Unlock()
		return
	}
	results := e.Results
	e.mu.Unlock()

	if results != nil {
		results.Drain()
		_ = results.Release()
	}
}

// SendResult enqueues a result onto the edict's result queue. It is a
// silent no-op for fire-and-forget edicts.
func (e *Edict) SendResult(r ChkResult) {
	if e.Results == nil {
		return
	}
	e.Results.Put(r)
}

// Elapsed returns the time since the edict was submitted.
func (e *Edict) Elapsed() time.Duration {
	return time.Since(e.Submitted)
}

// Remaining returns the time left before TimeLimit expires, never negative.
func (e *Edict) Remaining() time.Duration {
	left := e.TimeLimit - e.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}
