// Package greylist implements the greylisting check itself: query the
// Bloom ring for the triplet, PASS if already seen, otherwise insert and
// return SUSPICIOUS so the orchestrator defers the message.
package greylist

import (
	"context"
	"time"

	"github.com/samettonyali/gross/internal/bloom"
	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/peering"
	"github.com/samettonyali/gross/internal/pool"
)

// UpdatePolicy controls whether the ring is updated only on first sighting
// (Grey, the default) or unconditionally (Always).
type UpdatePolicy int

const (
	UpdateGrey UpdatePolicy = iota
	UpdateAlways
)

// Checker is the greylist check's state: a reference to the shared Bloom
// ring, the configured update policy, and a peer replicator for inserts.
type Checker struct {
	Ring       *bloom.Ring
	Update     UpdatePolicy
	Replicator peering.Replicator
}

func NewChecker(ring *bloom.Ring, update UpdatePolicy) *Checker {
	return &Checker{Ring: ring, Update: update, Replicator: peering.NoopReplicator{}}
}

// WithReplicator sets the peer replicator used on ring inserts.
func (c *Checker) WithReplicator(r peering.Replicator) *Checker {
	c.Replicator = r
	return c
}

// Routine is the pool.Routine for the greylist check. The verdict is
// always derived from the triplet's pre-state; UpdateAlways only changes
// whether the ring is written to on an already-seen triplet, never the
// judgment returned for it (the open question in the design notes is
// resolved this way deliberately).
func (c *Checker) Routine(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
	req, ok := e.Job.(request.Triplet)
	if !ok {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "greylist", Reason: "not a triplet"})
		return
	}

	key := req.Key(bloom.Canonicalize)
	seen := c.Ring.Query(key)

	if seen {
		if c.Update == UpdateAlways {
			c.Ring.Insert(key)
			c.replicate(key)
		}
		e.SendResult(edict.ChkResult{Judgment: edict.Pass, Pool: "greylist", Reason: "triplet previously seen"})
		return
	}

	c.Ring.Insert(key)
	c.replicate(key)
	e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "greylist", Reason: "first sighting of triplet"})
}

func (c *Checker) replicate(key string) {
	if c.Replicator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.Replicator.Replicate(ctx, key)
}
